package service

import (
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often pending jobs are checked for a timer.
const DefaultSweepInterval = 30 * time.Second

type serviceConfig struct {
	logger        *slog.Logger
	sweepInterval time.Duration
	retention     time.Duration
	location      *time.Location
}

// Option configures a Service.
type Option interface {
	applyService(*serviceConfig)
}

type serviceOptionFunc func(*serviceConfig)

func (f serviceOptionFunc) applyService(c *serviceConfig) { f(c) }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return serviceOptionFunc(func(c *serviceConfig) {
		if l != nil {
			c.logger = l
		}
	})
}

// WithSweepInterval sets how often the orphan sweep runs.
func WithSweepInterval(d time.Duration) Option {
	return serviceOptionFunc(func(c *serviceConfig) {
		if d > 0 {
			c.sweepInterval = d
		}
	})
}

// WithRetention purges finished jobs older than d once a day. Zero disables it.
func WithRetention(d time.Duration) Option {
	return serviceOptionFunc(func(c *serviceConfig) {
		if d >= 0 {
			c.retention = d
		}
	})
}

// WithLocation sets the timezone of the housekeeping cron.
func WithLocation(loc *time.Location) Option {
	return serviceOptionFunc(func(c *serviceConfig) {
		if loc != nil {
			c.location = loc
		}
	})
}
