package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/jdziat/simple-message-scheduler/pkg/core"
	"github.com/jdziat/simple-message-scheduler/pkg/dispatch"
	"github.com/jdziat/simple-message-scheduler/pkg/events"
)

// Outcome is the result of one delivery attempt.
type Outcome struct {
	JobID    uint64
	Status   core.JobStatus // sent or failed
	Err      error
	Duration time.Duration
}

// Reconciler writes delivery outcomes back to the store.
type Reconciler struct {
	store        core.Storage
	registry     *dispatch.Registry
	bus          *events.Bus
	retry        RetryConfig
	storeTimeout time.Duration
	logger       *slog.Logger
}

// NewReconciler creates a reconciler. bus may be nil.
func NewReconciler(store core.Storage, registry *dispatch.Registry, bus *events.Bus, cfg Config) *Reconciler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Reconciler{
		store:        store,
		registry:     registry,
		bus:          bus,
		retry:        cfg.Retry,
		storeTimeout: cfg.StoreTimeout,
		logger:       cfg.Logger,
	}
}

// Reconcile records o with a conditional write and drops the job's timer.
// It reports whether the write applied. A job that was cancelled, already
// finished or deleted is left untouched.
func (r *Reconciler) Reconcile(ctx context.Context, o Outcome) bool {
	errMsg := ""
	if o.Err != nil {
		errMsg = o.Err.Error()
	}

	var applied bool
	err := retryWithBackoff(ctx, r.retry, func(ctx context.Context) error {
		sctx, cancel := r.storeContext(ctx)
		defer cancel()
		var setErr error
		applied, setErr = r.store.SetStatus(sctx, o.JobID, o.Status, errMsg)
		return setErr
	})
	r.registry.Unschedule(o.JobID)

	if err != nil {
		r.logger.Error("failed to record job outcome after retries",
			"job_id", o.JobID, "status", o.Status, "error", err)
		return false
	}
	if !applied {
		r.logger.Debug("job outcome not recorded, no longer pending",
			"job_id", o.JobID, "status", o.Status)
		return false
	}

	if r.bus != nil {
		now := time.Now()
		switch o.Status {
		case core.StatusSent:
			r.bus.Emit(ctx, &core.JobSent{JobID: o.JobID, Duration: o.Duration, Timestamp: now})
		case core.StatusFailed:
			r.bus.Emit(ctx, &core.JobFailed{JobID: o.JobID, Error: o.Err, Timestamp: now})
		}
	}
	return true
}

func (r *Reconciler) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.storeTimeout)
}
