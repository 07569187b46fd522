package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jdziat/simple-message-scheduler/pkg/core"
	"github.com/jdziat/simple-message-scheduler/pkg/engine"
	"github.com/jdziat/simple-message-scheduler/pkg/events"
)

// TextRequest schedules a chat text message.
type TextRequest struct {
	Recipient     string
	Content       string
	ScheduledTime time.Time
}

// VideoRequest schedules a chat video by URL.
type VideoRequest struct {
	Recipient     string
	MediaURL      string
	Caption       string
	ScheduledTime time.Time
}

// EmailRequest schedules an email.
type EmailRequest struct {
	Recipient     string
	Subject       string
	Body          string
	Attachments   []string
	ScheduledTime time.Time
}

// Stats summarizes the store and the armed timers.
type Stats struct {
	Counts map[core.JobStatus]int64
	Armed  int
}

// Service schedules, cancels and inspects jobs.
type Service struct {
	store  core.Storage
	engine *engine.Engine
	bus    *events.Bus
	config serviceConfig
	logger *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	started bool
}

// New creates a service. bus may be nil.
func New(store core.Storage, eng *engine.Engine, bus *events.Bus, opts ...Option) *Service {
	cfg := serviceConfig{
		logger:        slog.Default(),
		sweepInterval: DefaultSweepInterval,
		location:      time.Local,
	}
	for _, opt := range opts {
		opt.applyService(&cfg)
	}
	return &Service{
		store:  store,
		engine: eng,
		bus:    bus,
		config: cfg,
		logger: cfg.logger,
	}
}

// Engine returns the trigger engine.
func (s *Service) Engine() *engine.Engine {
	return s.engine
}

// Armed returns the number of armed timers.
func (s *Service) Armed() int {
	return s.engine.Armed()
}

// ScheduleText persists and arms a chat text job.
func (s *Service) ScheduleText(ctx context.Context, req TextRequest) (*core.Job, error) {
	return s.schedule(ctx, &core.Job{
		Kind:          core.KindText,
		Recipient:     req.Recipient,
		Content:       req.Content,
		ScheduledTime: req.ScheduledTime,
	})
}

// ScheduleVideo persists and arms a chat video job.
func (s *Service) ScheduleVideo(ctx context.Context, req VideoRequest) (*core.Job, error) {
	job := &core.Job{
		Kind:          core.KindVideo,
		Recipient:     req.Recipient,
		ScheduledTime: req.ScheduledTime,
	}
	if req.MediaURL != "" {
		job.MediaURL = &req.MediaURL
	}
	if req.Caption != "" {
		job.Caption = &req.Caption
	}
	return s.schedule(ctx, job)
}

// ScheduleEmail persists and arms an email job. The stored content carries
// the subject as a "Subject:" header line followed by the body.
func (s *Service) ScheduleEmail(ctx context.Context, req EmailRequest) (*core.Job, error) {
	job := &core.Job{
		Kind:          core.KindEmail,
		Recipient:     req.Recipient,
		Subject:       req.Subject,
		Attachments:   req.Attachments,
		ScheduledTime: req.ScheduledTime,
	}
	if req.Body != "" {
		job.Content = core.EmailContent(req.Subject, req.Body)
	}
	return s.schedule(ctx, job)
}

func (s *Service) schedule(ctx context.Context, job *core.Job) (*core.Job, error) {
	if err := s.store.Create(ctx, job); err != nil {
		return nil, err
	}
	if err := s.engine.Arm(job); err != nil {
		// The job is durable; the next Restore or sweep arms it.
		s.logger.Error("failed to arm scheduled job", "job_id", job.ID, "error", err)
	}

	s.logger.Info("job scheduled", "job_id", job.ID, "kind", job.Kind, "scheduled_time", job.ScheduledTime)
	if s.bus != nil {
		s.bus.Emit(ctx, &core.JobScheduled{Job: job, Timestamp: time.Now()})
	}
	return job, nil
}

// Cancel cancels a pending job. It returns a *core.NotFoundError for unknown
// ids and false when the job already left the pending state. The timer is
// dropped either way.
func (s *Service) Cancel(ctx context.Context, id uint64) (bool, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return false, err
	}
	// Delivery already started; the send cannot be recalled.
	if s.engine.Delivering(id) {
		return false, nil
	}

	ok, err := s.store.Cancel(ctx, id)
	s.engine.Disarm(id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	s.logger.Info("job cancelled", "job_id", id)
	if s.bus != nil {
		s.bus.Emit(ctx, &core.JobCancelled{JobID: id, Timestamp: time.Now()})
	}
	return true, nil
}

// Get returns one job.
func (s *Service) Get(ctx context.Context, id uint64) (*core.Job, error) {
	return s.store.Get(ctx, id)
}

// ListPending returns future pending jobs, earliest first.
func (s *Service) ListPending(ctx context.Context) ([]*core.Job, error) {
	return s.store.ListPending(ctx)
}

// Stats returns job counts per status and the number of armed timers.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Counts: counts, Armed: s.engine.Armed()}, nil
}

// Start re-arms every pending job and starts the housekeeping cron.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	if _, err := s.engine.Restore(ctx); err != nil {
		return fmt.Errorf("restore pending jobs: %w", err)
	}

	c := cron.New(
		cron.WithLocation(s.config.location),
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.Recover(cronLogger{s.logger}), cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.config.sweepInterval), func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.logger.Error("sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	if s.config.retention > 0 {
		if _, err := c.AddFunc("@daily", func() {
			if _, err := s.Purge(context.Background()); err != nil {
				s.logger.Error("purge failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("schedule purge: %w", err)
		}
	}
	c.Start()

	s.cron = c
	s.started = true
	s.logger.Info("scheduler started", "sweep_interval", s.config.sweepInterval, "retention", s.config.retention)
	return nil
}

// Sweep arms pending jobs that lost their timer.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	return s.engine.Sweep(ctx)
}

// Purge deletes finished jobs older than the retention window.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	if s.config.retention <= 0 {
		return 0, nil
	}
	n, err := s.store.PurgeFinished(ctx, time.Now().Add(-s.config.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("purged finished jobs", "count", n)
	}
	return n, nil
}

// Stop halts the cron and shuts the engine down, waiting for in-flight
// deliveries until ctx expires.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.started = false
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	return s.engine.Shutdown(ctx)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
