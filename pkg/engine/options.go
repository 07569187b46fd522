package engine

import (
	"log/slog"
	"time"

	"github.com/jdziat/simple-message-scheduler/pkg/core"
	"github.com/jdziat/simple-message-scheduler/pkg/security"
)

// Default delivery and store timeouts.
const (
	DefaultTextTimeout  = 30 * time.Second
	DefaultVideoTimeout = 60 * time.Second
	DefaultEmailTimeout = 45 * time.Second
	DefaultStoreTimeout = 10 * time.Second
)

// Config holds engine configuration.
type Config struct {
	Timeouts     map[core.Kind]time.Duration
	StoreTimeout time.Duration
	Retry        RetryConfig
	Logger       *slog.Logger
	Now          func() time.Time
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Timeouts: map[core.Kind]time.Duration{
			core.KindText:  DefaultTextTimeout,
			core.KindVideo: DefaultVideoTimeout,
			core.KindEmail: DefaultEmailTimeout,
		},
		StoreTimeout: DefaultStoreTimeout,
		Retry:        DefaultRetryConfig(),
		Logger:       slog.Default(),
		Now:          time.Now,
	}
}

// Timeout returns the delivery timeout for kind.
func (c Config) Timeout(kind core.Kind) time.Duration {
	if d, ok := c.Timeouts[kind]; ok && d > 0 {
		return d
	}
	return DefaultTextTimeout
}

// Option configures an Engine.
type Option interface {
	ApplyEngine(*Config)
}

type engineOptionFunc func(*Config)

func (f engineOptionFunc) ApplyEngine(c *Config) { f(c) }

// WithTimeout sets the delivery timeout for one kind. Non-positive values are ignored.
func WithTimeout(kind core.Kind, d time.Duration) Option {
	return engineOptionFunc(func(c *Config) {
		if d > 0 {
			c.Timeouts[kind] = d
		}
	})
}

// WithStoreTimeout bounds every store call made while firing.
func WithStoreTimeout(d time.Duration) Option {
	return engineOptionFunc(func(c *Config) {
		if d > 0 {
			c.StoreTimeout = d
		}
	})
}

// WithRetry sets the retry policy for store calls. MaxAttempts is clamped
// to security.MaxStorageAttempts.
func WithRetry(r RetryConfig) Option {
	return engineOptionFunc(func(c *Config) {
		r.MaxAttempts = security.ClampAttempts(r.MaxAttempts)
		c.Retry = r
	})
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return engineOptionFunc(func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	})
}

// WithClock overrides the clock used to classify overdue jobs.
func WithClock(now func() time.Time) Option {
	return engineOptionFunc(func(c *Config) {
		if now != nil {
			c.Now = now
		}
	})
}
