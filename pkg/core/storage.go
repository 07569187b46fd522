package core

import (
	"context"
	"time"
)

// Storage defines the persistence layer for jobs.
//
// Status changes only happen through SetStatus and Cancel, both of which are
// conditional on the job still being pending.
type Storage interface {
	// Migrate creates the necessary database tables.
	Migrate(ctx context.Context) error

	// Create validates and persists a new pending job, assigning its ID.
	Create(ctx context.Context, job *Job) error

	// Get returns the job or a *NotFoundError.
	Get(ctx context.Context, id uint64) (*Job, error)

	// ListPending returns pending jobs scheduled in the future, earliest first.
	ListPending(ctx context.Context) ([]*Job, error)

	// ListRecoverable returns every pending job regardless of its scheduled
	// time, earliest first. Used to rebuild timers after a restart.
	ListRecoverable(ctx context.Context) ([]*Job, error)

	// SetStatus moves a pending job to a terminal status.
	// Returns false when the job is missing or no longer pending.
	SetStatus(ctx context.Context, id uint64, status JobStatus, errMsg string) (bool, error)

	// Cancel moves a pending job to cancelled and reports whether it did.
	Cancel(ctx context.Context, id uint64) (bool, error)

	// CountByStatus returns the number of jobs per status.
	CountByStatus(ctx context.Context) (map[JobStatus]int64, error)

	// PurgeFinished deletes terminal jobs completed before the cutoff.
	PurgeFinished(ctx context.Context, before time.Time) (int64, error)
}
