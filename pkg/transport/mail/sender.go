package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"time"
)

// DeliverFunc hands a rendered message to the mail server.
type DeliverFunc func(ctx context.Context, cfg Config, from, to string, msg []byte) error

// Sender implements core.EmailSender over SMTP.
type Sender struct {
	cfg     Config
	logger  *slog.Logger
	deliver DeliverFunc
	now     func() time.Time
}

// Option configures a Sender.
type Option interface {
	applySender(*Sender)
}

type senderOptionFunc func(*Sender)

func (f senderOptionFunc) applySender(s *Sender) { f(s) }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return senderOptionFunc(func(s *Sender) {
		if l != nil {
			s.logger = l
		}
	})
}

// WithDeliverFunc replaces the SMTP session, mainly for tests.
func WithDeliverFunc(fn DeliverFunc) Option {
	return senderOptionFunc(func(s *Sender) {
		if fn != nil {
			s.deliver = fn
		}
	})
}

// NewSender creates a sender for cfg. The configuration is checked at send
// time so a missing server fails the job, not the process.
func NewSender(cfg Config, opts ...Option) *Sender {
	s := &Sender{
		cfg:     cfg,
		logger:  slog.Default(),
		deliver: smtpDeliver,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt.applySender(s)
	}
	return s
}

// Config returns the sender's SMTP configuration.
func (s *Sender) Config() Config {
	return s.cfg
}

// SendEmail builds and sends one message.
func (s *Sender) SendEmail(ctx context.Context, to, subject, body string, attachments []string) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	from := s.cfg.Sender()
	msg, attached, err := Build(Message{
		From:        from,
		To:          to,
		Subject:     subject,
		Body:        body,
		Attachments: attachments,
		Date:        s.now(),
	}, s.logger)
	if err != nil {
		return err
	}

	if err := s.deliver(ctx, s.cfg, from, to, msg); err != nil {
		return err
	}
	s.logger.Info("email sent", "to", to, "attachments", len(attached))
	return nil
}

// Check connects, negotiates TLS and authenticates without sending anything.
func (s *Sender) Check(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	c, err := dial(ctx, s.cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Quit()
}

func smtpDeliver(ctx context.Context, cfg Config, from, to string, msg []byte) error {
	c, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Mail(from); err != nil {
		return fmt.Errorf("mail: MAIL FROM: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("mail: recipient refused: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("mail: DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("mail: write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mail: message rejected: %w", err)
	}
	return c.Quit()
}

// dial opens an SMTP session bounded by ctx, upgrading to TLS when offered
// and authenticating when credentials are configured.
func dial(ctx context.Context, cfg Config) (*smtp.Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("mail: connect %s: %w", cfg.Addr(), err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("mail: handshake: %w", err)
	}

	if ok, _ := c.Extension("STARTTLS"); ok && cfg.StartTLS {
		if err := c.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("mail: starttls: %w", err)
		}
	}

	if cfg.Username != "" {
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		if err := c.Auth(auth); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("mail: authentication failed: %w", err)
		}
	}
	return c, nil
}
