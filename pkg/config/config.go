package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // timezone names resolve on hosts without zoneinfo

	yaml "go.yaml.in/yaml/v3"
)

// Config is the complete scheduler configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Engine   EngineConfig   `yaml:"engine"`
	Log      LogConfig      `yaml:"log"`
	// Timezone interprets scheduled_time values. Empty or "Local" uses the
	// host timezone.
	Timezone string `yaml:"timezone"`
}

type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string   `yaml:"driver"`
	DSN             string   `yaml:"dsn"`
	LogLevel        string   `yaml:"log_level"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
}

type BridgeConfig struct {
	URL        string  `yaml:"url"`
	RatePerSec float64 `yaml:"rate_per_sec"`
	Burst      int     `yaml:"burst"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	StartTLS bool   `yaml:"starttls"`
}

type EngineConfig struct {
	TextTimeout   Duration `yaml:"text_timeout"`
	VideoTimeout  Duration `yaml:"video_timeout"`
	EmailTimeout  Duration `yaml:"email_timeout"`
	StoreTimeout  Duration `yaml:"store_timeout"`
	SweepInterval Duration `yaml:"sweep_interval"`
	// Retention is how long finished jobs are kept. Zero keeps them forever.
	Retention Duration `yaml:"retention"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":5000",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "scheduler.db",
			LogLevel:     "warn",
			MaxOpenConns: 25,
			MaxIdleConns: 10,
		},
		Bridge: BridgeConfig{
			URL:        "http://localhost:3000",
			RatePerSec: 5,
			Burst:      5,
		},
		SMTP: SMTPConfig{
			Port:     587,
			StartTLS: true,
		},
		Engine: EngineConfig{
			TextTimeout:   Duration(30 * time.Second),
			VideoTimeout:  Duration(60 * time.Second),
			EmailTimeout:  Duration(45 * time.Second),
			StoreTimeout:  Duration(10 * time.Second),
			SweepInterval: Duration(30 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	return load(path, lookupEnv)
}

var lookupEnv = os.LookupEnv

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode strictly unmarshals YAML onto cfg; unknown keys are errors.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overlays the supported environment variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("SCHEDULER_HTTP_ADDR", &cfg.Server.Addr)
	str("SCHEDULER_DB_DRIVER", &cfg.Database.Driver)
	str("SCHEDULER_DB_DSN", &cfg.Database.DSN)
	str("SCHEDULER_BRIDGE_URL", &cfg.Bridge.URL)
	str("SCHEDULER_LOG_LEVEL", &cfg.Log.Level)
	str("SCHEDULER_TIMEZONE", &cfg.Timezone)
	str("SMTP_SERVER", &cfg.SMTP.Host)
	str("SMTP_USERNAME", &cfg.SMTP.Username)
	str("SMTP_PASSWORD", &cfg.SMTP.Password)
	str("SMTP_FROM", &cfg.SMTP.From)

	if v, ok := lookup("SMTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SMTP_PORT: invalid port %q", v)
		}
		cfg.SMTP.Port = port
	}
	return nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}

	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "sqlite3":
	case "postgres", "postgresql":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver))
	}

	if u, err := url.Parse(c.Bridge.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("bridge.url: invalid url %q", c.Bridge.URL))
	}
	if c.Bridge.RatePerSec < 0 {
		errs = append(errs, errors.New("bridge.rate_per_sec must be >= 0"))
	}

	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("smtp.port: out of range %d", c.SMTP.Port))
	}

	if c.Engine.SweepInterval.D() <= 0 {
		errs = append(errs, errors.New("engine.sweep_interval must be > 0"))
	}

	if _, ok := ParseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format))
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}

	return errors.Join(errs...)
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// ParseLevel reports whether s names a log level.
func ParseLevel(s string) (string, bool) {
	switch l := strings.ToLower(strings.TrimSpace(s)); l {
	case "debug", "info", "warn", "error":
		return l, true
	case "warning":
		return "warn", true
	}
	return "", false
}
