package engine

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jdziat/simple-message-scheduler/pkg/core"
)

// RetryConfig holds configuration for retrying status writes.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	// Default: 5
	MaxAttempts int

	// InitialBackoff is the wait after the first failure.
	// Default: 100ms
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts.
	// Default: 5s
	MaxBackoff time.Duration

	// BackoffMultiplier grows the wait after each attempt.
	// Default: 2.0
	BackoffMultiplier float64

	// JitterFraction is the fraction of the wait to randomize (0.0 to 1.0).
	// Default: 0.1
	JitterFraction float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
	}
}

// jittered returns d shifted by up to ±JitterFraction.
func (c RetryConfig) jittered(d time.Duration) time.Duration {
	if c.JitterFraction <= 0 {
		return d
	}
	j := time.Duration(float64(d) * c.JitterFraction * (rand.Float64()*2 - 1))
	if d+j < 0 {
		return d
	}
	return d + j
}

func (c RetryConfig) next(d time.Duration) time.Duration {
	d = time.Duration(float64(d) * c.BackoffMultiplier)
	if c.MaxBackoff > 0 && d > c.MaxBackoff {
		d = c.MaxBackoff
	}
	return d
}

// retryWithBackoff runs op until it succeeds, returns a non-retryable error,
// runs out of attempts, or ctx is done. The last error is returned.
func retryWithBackoff(ctx context.Context, config RetryConfig, op func(context.Context) error) error {
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	wait := config.InitialBackoff

	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx); err == nil || !IsRetryableError(err) || attempt >= attempts {
			return err
		}

		timer := time.NewTimer(config.jittered(wait))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait = config.next(wait)
	}
}

// IsRetryableError determines if a store error is worth retrying.
// Context errors and validation failures are permanent; everything else is
// assumed to be a transient database problem such as a lock timeout.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, core.ErrValidation) || errors.Is(err, core.ErrNotFound) {
		return false
	}
	return true
}
