package events

import (
	"context"
	"slices"
	"sync"

	"github.com/jdziat/simple-message-scheduler/pkg/core"
)

// DefaultBufferSize is the capacity of each subscriber channel.
const DefaultBufferSize = 100

// Bus broadcasts events to channel subscribers and registered hooks.
// The zero value is ready to use.
type Bus struct {
	mu   sync.RWMutex
	subs []chan core.Event

	onSent      []func(context.Context, uint64)
	onFailed    []func(context.Context, uint64, error)
	onCancelled []func(context.Context, uint64)
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{}
}

// Events returns a channel for receiving events.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (b *Bus) Events() <-chan core.Event {
	ch := make(chan core.Event, DefaultBufferSize)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel created by Events.
// The channel is not closed; after Unsubscribe returns no further events
// are sent to it.
func (b *Bus) Unsubscribe(ch <-chan core.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Subscribers returns the number of active subscriber channels.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Emit sends e to every subscriber and then runs the matching hooks.
// Full subscriber channels drop the event instead of blocking.
func (b *Bus) Emit(ctx context.Context, e core.Event) {
	b.mu.RLock()
	subs := make([]chan core.Event, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}

	switch ev := e.(type) {
	case *core.JobSent:
		for _, fn := range b.hooksSent() {
			fn(ctx, ev.JobID)
		}
	case *core.JobFailed:
		for _, fn := range b.hooksFailed() {
			fn(ctx, ev.JobID, ev.Error)
		}
	case *core.JobCancelled:
		for _, fn := range b.hooksCancelled() {
			fn(ctx, ev.JobID)
		}
	}
}

// OnSent registers a callback for successful deliveries.
func (b *Bus) OnSent(fn func(ctx context.Context, jobID uint64)) {
	b.mu.Lock()
	b.onSent = append(b.onSent, fn)
	b.mu.Unlock()
}

// OnFailed registers a callback for failed deliveries.
func (b *Bus) OnFailed(fn func(ctx context.Context, jobID uint64, err error)) {
	b.mu.Lock()
	b.onFailed = append(b.onFailed, fn)
	b.mu.Unlock()
}

// OnCancelled registers a callback for cancellations.
func (b *Bus) OnCancelled(fn func(ctx context.Context, jobID uint64)) {
	b.mu.Lock()
	b.onCancelled = append(b.onCancelled, fn)
	b.mu.Unlock()
}

func (b *Bus) hooksSent() []func(context.Context, uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.onSent)
}

func (b *Bus) hooksFailed() []func(context.Context, uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.onFailed)
}

func (b *Bus) hooksCancelled() []func(context.Context, uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.onCancelled)
}
