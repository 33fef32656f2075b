package progress

import (
	"sync"
	"time"
)

// Kind classifies events emitted during job execution.
type Kind string

const (
	KindProgress Kind = "progress"
	KindLog      Kind = "log"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
)

// Event is one message fanned out to a job's subscribers. Events are
// transient; the bus holds no history and late subscribers see nothing
// published before they joined.
type Event struct {
	JobID     string    `json:"job_id"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// UnsubscribeFunc detaches one subscriber. Safe to call more than once.
type UnsubscribeFunc func()

// Bus is an in-process publish/subscribe channel keyed by job id. One bus
// serves every job; a job's subscribers live under a composite key rather
// than a per-job emitter so idle jobs cost nothing.
type Bus struct {
	mu     sync.RWMutex
	nextID int64
	subs   map[string]map[int64]func(Event)
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int64]func(Event))}
}

// Subscribe registers a handler for one job's events. The returned func
// removes exactly this subscription.
func (b *Bus) Subscribe(jobID string, handler func(Event)) UnsubscribeFunc {
	if handler == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	listeners, ok := b.subs[jobID]
	if !ok {
		listeners = make(map[int64]func(Event))
		b.subs[jobID] = listeners
	}
	listeners[id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		listeners, ok := b.subs[jobID]
		if !ok {
			return
		}
		delete(listeners, id)
		if len(listeners) == 0 {
			delete(b.subs, jobID)
		}
	}
}

// UnsubscribeAll removes every listener for a job. Used at job deletion so
// abandoned subscriptions cannot leak.
func (b *Bus) UnsubscribeAll(jobID string) {
	b.mu.Lock()
	delete(b.subs, jobID)
	b.mu.Unlock()
}

// SubscriberCount reports the current number of listeners for a job.
func (b *Bus) SubscriberCount(jobID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[jobID])
}

// Publish delivers an event to the job's current subscribers. Publishing
// with no subscribers is a no-op. Handlers run synchronously on the
// publisher's goroutine against a snapshot of the listener set, so an
// unsubscribe during delivery affects the next publish, not this one.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	listeners := b.subs[event.JobID]
	snapshot := make([]func(Event), 0, len(listeners))
	for _, handler := range listeners {
		snapshot = append(snapshot, handler)
	}
	b.mu.RUnlock()

	for _, handler := range snapshot {
		handler(event)
	}
}
