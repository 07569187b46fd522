package mail

import (
	"errors"
	"net"
	"strconv"
)

// DefaultPort is the submission port used when none is configured.
const DefaultPort = 587

// ErrNotConfigured is returned when the SMTP server or sender is missing.
var ErrNotConfigured = errors.New("mail: smtp is not configured")

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// From defaults to Username.
	From string
	// StartTLS upgrades the connection when the server offers it.
	StartTLS bool
}

// Validate reports ErrNotConfigured when the host or sender address is missing.
func (c Config) Validate() error {
	if c.Host == "" || c.Sender() == "" {
		return ErrNotConfigured
	}
	if c.Password != "" && c.Username == "" {
		return errors.New("mail: password set without username")
	}
	return nil
}

// Sender returns the envelope and header sender address.
func (c Config) Sender() string {
	if c.From != "" {
		return c.From
	}
	return c.Username
}

// Addr returns host:port.
func (c Config) Addr() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// Provider is a well-known SMTP preset.
type Provider struct {
	Name        string
	Host        string
	Port        int
	Description string
	HelpURL     string
}

// Providers returns presets for common mail providers.
func Providers() []Provider {
	return []Provider{
		{
			Name:        "gmail",
			Host:        "smtp.gmail.com",
			Port:        587,
			Description: "Gmail (requires an app password)",
			HelpURL:     "https://support.google.com/accounts/answer/185833",
		},
		{Name: "outlook", Host: "smtp-mail.outlook.com", Port: 587, Description: "Outlook/Hotmail"},
		{Name: "yahoo", Host: "smtp.mail.yahoo.com", Port: 587, Description: "Yahoo Mail"},
	}
}
