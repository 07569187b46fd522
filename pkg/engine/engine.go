package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/simple-message-scheduler/pkg/core"
	"github.com/jdziat/simple-message-scheduler/pkg/dispatch"
	"github.com/jdziat/simple-message-scheduler/pkg/events"
)

// ErrShutdown is returned by Arm once Shutdown has started.
var ErrShutdown = errors.New("scheduler: engine is shut down")

// Engine arms timers for pending jobs and delivers them when they fire.
type Engine struct {
	store      core.Storage
	registry   *dispatch.Registry
	transports core.Transports
	bus        *events.Bus
	reconciler *Reconciler
	config     Config
	logger     *slog.Logger

	// lifetime ends at Shutdown. It bounds waits for a rate-limit turn.
	lifetime context.Context
	stop     context.CancelFunc

	mu       sync.Mutex
	closed   bool
	inflight map[uint64]bool // value is true once the send has started
	wg       sync.WaitGroup
}

// New creates an engine. bus may be nil.
func New(store core.Storage, registry *dispatch.Registry, transports core.Transports, bus *events.Bus, opts ...Option) *Engine {
	config := DefaultConfig()
	for _, opt := range opts {
		opt.ApplyEngine(&config)
	}

	lifetime, stop := context.WithCancel(context.Background())
	return &Engine{
		lifetime:   lifetime,
		stop:       stop,
		store:      store,
		registry:   registry,
		transports: transports,
		bus:        bus,
		reconciler: NewReconciler(store, registry, bus, config),
		config:     config,
		logger:     config.Logger,
		inflight:   make(map[uint64]bool),
	}
}

// Registry returns the timer registry.
func (e *Engine) Registry() *dispatch.Registry {
	return e.registry
}

// Reconciler returns the reconciler used for delivery outcomes.
func (e *Engine) Reconciler() *Reconciler {
	return e.reconciler
}

// Armed returns the number of armed timers.
func (e *Engine) Armed() int {
	return e.registry.Len()
}

// Arm registers a timer for job at its scheduled time, replacing any timer
// already armed for it.
func (e *Engine) Arm(job *core.Job) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrShutdown
	}

	id := job.ID
	if err := e.registry.Schedule(id, job.ScheduledTime, func() { e.fire(id) }); err != nil {
		if errors.Is(err, dispatch.ErrClosed) {
			return ErrShutdown
		}
		return err
	}
	e.logger.Debug("job armed", "job_id", id, "kind", job.Kind, "fire_at", job.ScheduledTime)
	return nil
}

// Disarm removes the timer for id and reports whether one was armed.
func (e *Engine) Disarm(id uint64) bool {
	return e.registry.Unschedule(id)
}

// InFlight reports whether a delivery for id is currently running.
func (e *Engine) InFlight(id uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inflight[id]
	return ok
}

// Delivering reports whether the send for id has started. A job that is
// still waiting for a rate-limit turn is in flight but not delivering.
func (e *Engine) Delivering(id uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inflight[id]
}

func (e *Engine) markDelivering(id uint64) {
	e.mu.Lock()
	if _, ok := e.inflight[id]; ok {
		e.inflight[id] = true
	}
	e.mu.Unlock()
}

// fire is the timer callback. It runs in the timer's own goroutine.
func (e *Engine) fire(id uint64) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if _, busy := e.inflight[id]; busy {
		e.mu.Unlock()
		return
	}
	e.inflight[id] = false
	e.wg.Add(1)
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inflight, id)
		e.mu.Unlock()
		e.wg.Done()
	}()

	e.run(context.Background(), id, uuid.New().String())
}

// run loads, delivers and reconciles one job. Panics anywhere in the
// pipeline are recorded as a failed outcome.
func (e *Engine) run(ctx context.Context, id uint64, runID string) {
	logger := e.logger.With("job_id", id, "run_id", runID)
	start := time.Now()

	reconciled := false
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while firing job", "panic", r)
			if !reconciled {
				e.reconciler.Reconcile(ctx, Outcome{
					JobID:    id,
					Status:   core.StatusFailed,
					Err:      fmt.Errorf("panic: %v", r),
					Duration: time.Since(start),
				})
			}
		}
	}()

	job, err := e.load(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		logger.Debug("fired job no longer exists")
		e.emit(ctx, &core.JobSkipped{JobID: id, Reason: "not found", Timestamp: time.Now()})
		return
	}
	if err != nil {
		logger.Error("failed to load fired job", "error", err)
		reconciled = true
		e.reconciler.Reconcile(ctx, Outcome{JobID: id, Status: core.StatusFailed, Err: err, Duration: time.Since(start)})
		return
	}
	if job.Status != core.StatusPending {
		logger.Debug("fired job is not pending", "status", job.Status)
		e.emit(ctx, &core.JobSkipped{JobID: id, Reason: "status " + string(job.Status), Timestamp: time.Now()})
		return
	}

	e.emit(ctx, &core.JobFired{Job: job, RunID: runID, Timestamp: start})

	outcome := Outcome{JobID: id, Status: core.StatusSent}
	dctx, paced, err := e.pace(ctx, job.Kind)
	if err != nil && e.lifetime.Err() != nil {
		logger.Info("engine stopping before delivery, job left pending")
		e.emit(ctx, &core.JobSkipped{JobID: id, Reason: "shutdown", Timestamp: time.Now()})
		return
	}
	e.markDelivering(id)
	if paced {
		// The wait may have been long enough for a cancel to land.
		if cur, lerr := e.load(ctx, id); lerr == nil && cur.Status != core.StatusPending {
			logger.Debug("job changed while waiting for its turn", "status", cur.Status)
			e.emit(ctx, &core.JobSkipped{JobID: id, Reason: "status " + string(cur.Status), Timestamp: time.Now()})
			return
		}
	}
	if err == nil {
		logger.Info("delivering job", "kind", job.Kind, "recipient", job.Recipient)
		err = e.deliver(dctx, job)
	} else {
		err = &core.TransportError{Kind: job.Kind, JobID: job.ID, Err: err}
	}
	if err != nil {
		outcome.Status = core.StatusFailed
		outcome.Err = err
		logger.Warn("job delivery failed", "kind", job.Kind, "error", err)
	}
	outcome.Duration = time.Since(start)

	reconciled = true
	if e.reconciler.Reconcile(ctx, outcome) && outcome.Status == core.StatusSent {
		logger.Info("job sent", "kind", job.Kind, "duration", outcome.Duration)
	}
}

func (e *Engine) load(ctx context.Context, id uint64) (*core.Job, error) {
	var job *core.Job
	err := retryWithBackoff(ctx, e.config.Retry, func(ctx context.Context) error {
		sctx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
		defer cancel()
		var getErr error
		job, getErr = e.store.Get(sctx, id)
		return getErr
	})
	return job, err
}

// pace waits for a turn from the sender for kind when it is a core.Pacer.
// The wait is bounded by the engine's lifetime, not by the delivery timeout,
// so jobs queued behind a rate limit are delayed instead of failed. It
// reports whether a turn was taken.
func (e *Engine) pace(ctx context.Context, kind core.Kind) (context.Context, bool, error) {
	p, ok := e.transports.Sender(kind).(core.Pacer)
	if !ok {
		return ctx, false, nil
	}
	if err := p.Pace(e.lifetime); err != nil {
		return ctx, false, err
	}
	return core.WithPaced(ctx), true, nil
}

// deliver runs the transport call in its own goroutine and stops waiting at
// the kind's deadline even if the adapter ignores its context.
func (e *Engine) deliver(ctx context.Context, job *core.Job) error {
	payload, err := job.Payload()
	if err != nil {
		return err
	}

	timeout := e.config.Timeout(job.Kind)
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- payload.Deliver(dctx, e.transports)
	}()

	select {
	case err = <-done:
	case <-dctx.Done():
		err = fmt.Errorf("delivery timed out after %s: %w", timeout, dctx.Err())
	}
	if err != nil {
		return &core.TransportError{Kind: job.Kind, JobID: job.ID, Err: err}
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, ev core.Event) {
	if e.bus != nil {
		e.bus.Emit(ctx, ev)
	}
}

// RestoreResult summarizes a Restore call.
type RestoreResult struct {
	Armed   int
	Overdue int
}

// Restore arms every pending job in the store. Jobs whose time elapsed while
// the process was down fire immediately.
func (e *Engine) Restore(ctx context.Context) (RestoreResult, error) {
	var res RestoreResult

	sctx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	jobList, err := e.store.ListRecoverable(sctx)
	cancel()
	if err != nil {
		return res, err
	}

	now := e.config.Now()
	for _, job := range jobList {
		if err := e.Arm(job); err != nil {
			return res, err
		}
		res.Armed++
		if !job.ScheduledTime.After(now) {
			res.Overdue++
		}
	}

	e.logger.Info("restored pending jobs", "armed", res.Armed, "overdue", res.Overdue)
	return res, nil
}

// Shutdown stops all timers and waits for in-flight deliveries to finish or
// for ctx to expire. Pending jobs stay pending in the store.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.stop()

	stopped := e.registry.Close()
	e.logger.Info("engine stopping", "timers_stopped", stopped)

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
