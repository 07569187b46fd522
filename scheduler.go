// Package scheduler persists chat and email deliveries for a future instant
// and fires each one once it is due, across restarts.
//
// It re-exports the public types of the pkg/ packages and provides App, which
// wires storage, transports, the trigger engine and the HTTP API from a
// config.Config.
//
// Library usage:
//
//	db, _ := scheduler.OpenDatabase(storage.Config{Driver: "sqlite", DSN: "scheduler.db"})
//	store := scheduler.NewGormStorage(db)
//	store.Migrate(ctx)
//
//	bus := scheduler.NewBus()
//	eng := scheduler.NewEngine(store, scheduler.Transports{Text: chat, Video: chat, Email: mailer}, bus)
//	svc := scheduler.NewService(store, eng, bus)
//	svc.Start(ctx)
//
//	svc.ScheduleText(ctx, scheduler.TextRequest{Recipient: "123@g.us", Content: "hi", ScheduledTime: at})
package scheduler

import (
	"gorm.io/gorm"

	"github.com/jdziat/simple-message-scheduler/pkg/core"
	"github.com/jdziat/simple-message-scheduler/pkg/dispatch"
	"github.com/jdziat/simple-message-scheduler/pkg/engine"
	"github.com/jdziat/simple-message-scheduler/pkg/events"
	"github.com/jdziat/simple-message-scheduler/pkg/service"
	"github.com/jdziat/simple-message-scheduler/pkg/storage"
)

type (
	// Job is a persisted delivery request.
	Job = core.Job

	// Kind selects the payload variant of a job.
	Kind = core.Kind

	// JobStatus is the lifecycle state of a job.
	JobStatus = core.JobStatus

	// Payload is the delivery-specific part of a job.
	Payload = core.Payload

	// Transports holds one sender per delivery channel.
	Transports = core.Transports

	// TextSender delivers chat text messages.
	TextSender = core.TextSender

	// VideoSender delivers chat videos.
	VideoSender = core.VideoSender

	// EmailSender delivers emails.
	EmailSender = core.EmailSender

	// Storage is the durable job store.
	Storage = core.Storage

	// Event is the interface for all lifecycle events.
	Event = core.Event

	// JobScheduled is emitted after a job is persisted.
	JobScheduled = core.JobScheduled

	// JobFired is emitted when a due job starts delivering.
	JobFired = core.JobFired

	// JobSent is emitted when a delivery was recorded as sent.
	JobSent = core.JobSent

	// JobFailed is emitted when a delivery was recorded as failed.
	JobFailed = core.JobFailed

	// JobCancelled is emitted when a pending job is cancelled.
	JobCancelled = core.JobCancelled

	// JobSkipped is emitted when a fire found nothing to deliver.
	JobSkipped = core.JobSkipped

	// ValidationError reports rejected input.
	ValidationError = core.ValidationError

	// NotFoundError reports an unknown job id.
	NotFoundError = core.NotFoundError

	// TransportError wraps a failed delivery.
	TransportError = core.TransportError

	// PersistenceError wraps a failed store operation.
	PersistenceError = core.PersistenceError

	// Service is the scheduling API.
	Service = service.Service

	// TextRequest asks for a chat text message.
	TextRequest = service.TextRequest

	// VideoRequest asks for a chat video.
	VideoRequest = service.VideoRequest

	// EmailRequest asks for an email.
	EmailRequest = service.EmailRequest

	// Stats summarizes the store and the armed timers.
	Stats = service.Stats

	// Engine arms timers and delivers due jobs.
	Engine = engine.Engine

	// Bus fans lifecycle events out to subscribers and hooks.
	Bus = events.Bus

	// GormStorage is the GORM-backed Storage.
	GormStorage = storage.GormStorage
)

const (
	KindText  = core.KindText
	KindVideo = core.KindVideo
	KindEmail = core.KindEmail

	StatusPending   = core.StatusPending
	StatusSent      = core.StatusSent
	StatusFailed    = core.StatusFailed
	StatusCancelled = core.StatusCancelled
)

var (
	ErrValidation  = core.ErrValidation
	ErrNotFound    = core.ErrNotFound
	ErrNotPending  = core.ErrNotPending
	ErrTransport   = core.ErrTransport
	ErrPersistence = core.ErrPersistence
	ErrNoTransport = core.ErrNoTransport
)

// OpenDatabase connects to sqlite or postgres.
func OpenDatabase(cfg storage.Config) (*gorm.DB, error) {
	return storage.Open(cfg)
}

// NewGormStorage creates a GORM-backed store.
func NewGormStorage(db *gorm.DB, opts ...storage.Option) *GormStorage {
	return storage.NewGormStorage(db, opts...)
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return events.New()
}

// NewEngine creates a trigger engine with its own dispatch registry.
func NewEngine(store Storage, transports Transports, bus *Bus, opts ...engine.Option) *Engine {
	return engine.New(store, dispatch.NewRegistry(), transports, bus, opts...)
}

// NewService creates the scheduling service.
func NewService(store Storage, eng *Engine, bus *Bus, opts ...service.Option) *Service {
	return service.New(store, eng, bus, opts...)
}
