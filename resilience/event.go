package resilience

import (
	"sync"
	"time"
)

// EventType is a kind of executor event.
type EventType string

// Event types.
const (
	EventRetry   = EventType("retry")
	EventFailure = EventType("failure")
	EventSuccess = EventType("success")
)

// Event describes an attempt outcome.
type Event struct {
	Type        EventType
	Operation   string
	OperationID string
	Attempt     int

	// Delay is a wait before next attempt of a retry event.
	Delay time.Duration

	Category  Category
	Err       error
	Timestamp time.Time
}

// Listener receives events synchronously.
type Listener func(e Event)

type eventBus struct {
	mu        sync.RWMutex
	seq       int
	listeners map[int]Listener
}

func (b *eventBus) Subscribe(l Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.listeners == nil {
		b.listeners = make(map[int]Listener)
	}

	b.seq++
	id := b.seq
	b.listeners[id] = l

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

func (b *eventBus) publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, l := range b.listeners {
		l(e)
	}
}
