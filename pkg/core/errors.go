package core

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below match them through errors.Is.
var (
	ErrValidation  = errors.New("scheduler: validation failed")
	ErrNotFound    = errors.New("scheduler: job not found")
	ErrNotPending  = errors.New("scheduler: job is not pending")
	ErrTransport   = errors.New("scheduler: transport failed")
	ErrPersistence = errors.New("scheduler: persistence failed")
	ErrNoTransport = errors.New("scheduler: no transport configured for job kind")
)

// ValidationError reports bad or missing input. No state changes when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("scheduler: invalid job: %s", e.Reason)
	}
	return fmt.Sprintf("scheduler: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports an unknown job id.
type NotFoundError struct {
	ID uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("scheduler: job %d not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TransportError wraps a failed or timed out delivery attempt.
type TransportError struct {
	Kind  Kind
	JobID uint64
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("scheduler: %s delivery for job %d: %v", e.Kind, e.JobID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// PersistenceError wraps a store failure for the named operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("scheduler: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
