package core

import "time"

// Event is the interface for all scheduler events.
type Event interface {
	eventMarker()
}

// JobScheduled is emitted when a job is persisted and armed.
type JobScheduled struct {
	Job       *Job
	Timestamp time.Time
}

func (*JobScheduled) eventMarker() {}

// JobFired is emitted when a job's timer fires and delivery starts.
type JobFired struct {
	Job       *Job
	RunID     string
	Timestamp time.Time
}

func (*JobFired) eventMarker() {}

// JobSent is emitted when a delivery succeeded and the status write applied.
type JobSent struct {
	JobID     uint64
	Duration  time.Duration
	Timestamp time.Time
}

func (*JobSent) eventMarker() {}

// JobFailed is emitted when a delivery failed and the status write applied.
type JobFailed struct {
	JobID     uint64
	Error     error
	Timestamp time.Time
}

func (*JobFailed) eventMarker() {}

// JobCancelled is emitted when a pending job is cancelled.
type JobCancelled struct {
	JobID     uint64
	Timestamp time.Time
}

func (*JobCancelled) eventMarker() {}

// JobSkipped is emitted when a timer fires for a job that is missing or no
// longer pending.
type JobSkipped struct {
	JobID     uint64
	Reason    string
	Timestamp time.Time
}

func (*JobSkipped) eventMarker() {}
