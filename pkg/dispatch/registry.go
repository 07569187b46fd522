package dispatch

import (
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Schedule after Close.
var ErrClosed = errors.New("dispatch: registry closed")

type entry struct {
	timer  *time.Timer
	gen    uint64
	fireAt time.Time
}

// Registry maps job ids to armed timers.
// The mutex only guards the map; callbacks run outside of it.
type Registry struct {
	mu      sync.Mutex
	entries map[uint64]*entry
	nextGen uint64
	closed  bool
	now     func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[uint64]*entry),
		now:     time.Now,
	}
}

// Schedule arms fn to run at fireAt, replacing any timer already registered
// for id. A fireAt in the past fires immediately. The entry is removed from
// the registry right before fn runs.
func (r *Registry) Schedule(id uint64, fireAt time.Time, fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if old, ok := r.entries[id]; ok {
		old.timer.Stop()
	}

	r.nextGen++
	gen := r.nextGen
	delay := fireAt.Sub(r.now())
	if delay < 0 {
		delay = 0
	}

	e := &entry{gen: gen, fireAt: fireAt}
	e.timer = time.AfterFunc(delay, func() {
		if !r.claim(id, gen) {
			return
		}
		fn()
	})
	r.entries[id] = e
	return nil
}

// claim removes the entry if it still carries gen. It reports whether the
// caller owns the fire.
func (r *Registry) claim(id, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.gen != gen {
		return false
	}
	delete(r.entries, id)
	return true
}

// Unschedule removes the timer for id. It returns false when none is armed.
func (r *Registry) Unschedule(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(r.entries, id)
	return true
}

// Has reports whether a timer is armed for id.
func (r *Registry) Has(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

// FireTime returns the time the armed timer for id was scheduled for.
func (r *Registry) FireTime(id uint64) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return time.Time{}, false
	}
	return e.fireAt, true
}

// Len returns the number of armed timers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// IDs returns the ids of all armed timers in no particular order.
func (r *Registry) IDs() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uint64, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Close stops every timer and makes further Schedule calls fail.
// It returns the number of timers that were stopped.
func (r *Registry) Close() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.entries)
	for id, e := range r.entries {
		e.timer.Stop()
		delete(r.entries, id)
	}
	r.closed = true
	return n
}
