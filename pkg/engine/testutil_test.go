package engine

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jdziat/simple-message-scheduler/pkg/core"
	"github.com/jdziat/simple-message-scheduler/pkg/dispatch"
	"github.com/jdziat/simple-message-scheduler/pkg/events"
	"github.com/jdziat/simple-message-scheduler/pkg/storage"
)

func newTestStore(t *testing.T, opts ...storage.Option) *storage.GormStorage {
	t.Helper()
	db, err := storage.Open(storage.Config{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := storage.NewGormStorage(db, opts...)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// fakeSender records deliveries and returns a configurable error.
type fakeSender struct {
	mu      sync.Mutex
	calls   []string
	err     error
	delay   time.Duration
	hang    bool
	explode bool
}

func (f *fakeSender) record(v string) error {
	if f.explode {
		panic("adapter exploded")
	}
	if f.hang {
		select {} // ignores its context on purpose
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, v)
	return f.err
}

func (f *fakeSender) SendText(_ context.Context, recipient, text string) error {
	return f.record(recipient + ":" + text)
}

func (f *fakeSender) SendVideo(_ context.Context, recipient, mediaURL, _ string) error {
	return f.record(recipient + ":" + mediaURL)
}

func (f *fakeSender) SendEmail(_ context.Context, to, subject, _ string, _ []string) error {
	return f.record(to + ":" + subject)
}

func (f *fakeSender) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type harness struct {
	store  *storage.GormStorage
	reg    *dispatch.Registry
	bus    *events.Bus
	engine *Engine
	sender *fakeSender
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		store:  newTestStore(t),
		reg:    dispatch.NewRegistry(),
		bus:    events.New(),
		sender: &fakeSender{},
	}
	tr := core.Transports{Text: h.sender, Video: h.sender, Email: h.sender}
	opts = append([]Option{WithLogger(quietLogger()), WithRetry(fastRetry())}, opts...)
	h.engine = New(h.store, h.reg, tr, h.bus, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.engine.Shutdown(ctx)
	})
	return h
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func (h *harness) createText(t *testing.T, in time.Duration) *core.Job {
	t.Helper()
	job := &core.Job{
		Kind:          core.KindText,
		Recipient:     "grp1",
		Content:       "hello",
		ScheduledTime: time.Now().Add(in),
	}
	require.NoError(t, h.store.Create(context.Background(), job))
	return job
}

func (h *harness) status(t *testing.T, id uint64) core.JobStatus {
	t.Helper()
	job, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return job.Status
}

func (h *harness) waitStatus(t *testing.T, id uint64, want core.JobStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		job, err := h.store.Get(context.Background(), id)
		return err == nil && job.Status == want
	}, 5*time.Second, 10*time.Millisecond, "job %d never reached %s", id, want)
}

// flakyStore fails the first n SetStatus calls.
type flakyStore struct {
	core.Storage
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyStore) SetStatus(ctx context.Context, id uint64, status core.JobStatus, errMsg string) (bool, error) {
	f.mu.Lock()
	f.calls++
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return false, &core.PersistenceError{Op: "set status", Err: errDatabaseLocked}
	}
	return f.Storage.SetStatus(ctx, id, status, errMsg)
}

func (f *flakyStore) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// pacedSender throttles with a token bucket the way the bridge client does
// and records whether each send arrived with a paced context.
type pacedSender struct {
	fakeSender
	limiter  *rate.Limiter
	block    bool
	unpaced  atomic.Int32
	paceCall atomic.Int32
}

func (p *pacedSender) Pace(ctx context.Context) error {
	p.paceCall.Add(1)
	if p.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}

func (p *pacedSender) SendText(ctx context.Context, recipient, text string) error {
	if !core.Paced(ctx) {
		p.unpaced.Add(1)
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return p.fakeSender.SendText(ctx, recipient, text)
}
