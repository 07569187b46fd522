// Package storage provides storage implementations for the scheduler.
package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/jdziat/simple-message-scheduler/pkg/core"
	"github.com/jdziat/simple-message-scheduler/pkg/security"
)

// GormStorage implements Storage using GORM.
type GormStorage struct {
	db  *gorm.DB
	now func() time.Time
}

// Option configures a GormStorage.
type Option interface {
	applyStorage(*GormStorage)
}

type storageOptionFunc func(*GormStorage)

func (f storageOptionFunc) applyStorage(s *GormStorage) { f(s) }

// WithClock overrides the clock used for create-time validation and listings.
func WithClock(now func() time.Time) Option {
	return storageOptionFunc(func(s *GormStorage) {
		if now != nil {
			s.now = now
		}
	})
}

// NewGormStorage creates a new GORM-backed storage.
func NewGormStorage(db *gorm.DB, opts ...Option) *GormStorage {
	s := &GormStorage{db: db, now: time.Now}
	for _, opt := range opts {
		opt.applyStorage(s)
	}
	return s
}

// DB returns the underlying database handle.
func (s *GormStorage) DB() *gorm.DB {
	return s.db
}

// Migrate creates the necessary tables.
func (s *GormStorage) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&core.Job{}); err != nil {
		return &core.PersistenceError{Op: "migrate", Err: err}
	}
	return nil
}

// Create validates and inserts a pending job. Times are stored in UTC so
// that sqlite's textual timestamps compare chronologically.
func (s *GormStorage) Create(ctx context.Context, job *core.Job) error {
	if err := security.ValidateJob(job, s.now()); err != nil {
		return err
	}

	job.ID = 0
	job.Status = core.StatusPending
	job.ScheduledTime = job.ScheduledTime.UTC()
	job.LastError = ""
	job.CompletedAt = nil

	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return &core.PersistenceError{Op: "create job", Err: err}
	}
	return nil
}

// Get retrieves a job by ID.
func (s *GormStorage) Get(ctx context.Context, id uint64) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &core.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, &core.PersistenceError{Op: "get job", Err: err}
	}
	return &job, nil
}

// ListPending returns pending jobs whose scheduled time is still ahead.
func (s *GormStorage) ListPending(ctx context.Context) ([]*core.Job, error) {
	var jobList []*core.Job
	err := s.db.WithContext(ctx).
		Where("status = ?", core.StatusPending).
		Where("scheduled_time > ?", s.now().UTC()).
		Order("scheduled_time ASC, id ASC").
		Find(&jobList).Error
	if err != nil {
		return nil, &core.PersistenceError{Op: "list pending", Err: err}
	}
	return jobList, nil
}

// ListRecoverable returns every pending job, including overdue ones.
func (s *GormStorage) ListRecoverable(ctx context.Context) ([]*core.Job, error) {
	var jobList []*core.Job
	err := s.db.WithContext(ctx).
		Where("status = ?", core.StatusPending).
		Order("scheduled_time ASC, id ASC").
		Find(&jobList).Error
	if err != nil {
		return nil, &core.PersistenceError{Op: "list recoverable", Err: err}
	}
	return jobList, nil
}

// SetStatus transitions a pending job to a terminal status.
// The update is conditional on status = pending, so whichever of cancel and
// fire reaches the database first wins and the other becomes a no-op.
// Error messages are sanitized before storage.
func (s *GormStorage) SetStatus(ctx context.Context, id uint64, status core.JobStatus, errMsg string) (bool, error) {
	if !status.Terminal() {
		return false, &core.ValidationError{Field: "status", Reason: "must be sent, failed or cancelled"}
	}

	now := s.now().UTC()
	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND status = ?", id, core.StatusPending).
		Updates(map[string]any{
			"status":       status,
			"last_error":   security.SanitizeErrorMessage(errMsg),
			"completed_at": now,
		})

	if result.Error != nil {
		return false, &core.PersistenceError{Op: "set status", Err: result.Error}
	}
	return result.RowsAffected == 1, nil
}

// Cancel marks a pending job as cancelled.
func (s *GormStorage) Cancel(ctx context.Context, id uint64) (bool, error) {
	return s.SetStatus(ctx, id, core.StatusCancelled, "")
}

// CountByStatus returns job counts grouped by status.
func (s *GormStorage) CountByStatus(ctx context.Context) (map[core.JobStatus]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, &core.PersistenceError{Op: "count by status", Err: err}
	}

	counts := map[core.JobStatus]int64{
		core.StatusPending:   0,
		core.StatusSent:      0,
		core.StatusFailed:    0,
		core.StatusCancelled: 0,
	}
	for _, r := range rows {
		counts[core.JobStatus(r.Status)] += r.Count
	}
	return counts, nil
}

// PurgeFinished deletes terminal jobs that completed before the cutoff.
func (s *GormStorage) PurgeFinished(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("status IN ?", []core.JobStatus{core.StatusSent, core.StatusFailed, core.StatusCancelled}).
		Where("completed_at IS NOT NULL AND completed_at < ?", before.UTC()).
		Delete(&core.Job{})
	if result.Error != nil {
		return 0, &core.PersistenceError{Op: "purge finished", Err: result.Error}
	}
	return result.RowsAffected, nil
}
