package cache

import (
	"sync"
	"time"
)

// EventType is a kind of cache lifecycle event.
type EventType string

// Event types.
const (
	EventHit      = EventType("hit")
	EventMiss     = EventType("miss")
	EventSet      = EventType("set")
	EventDelete   = EventType("delete")
	EventExpire   = EventType("expire")
	EventEvict    = EventType("evict")
	EventClear    = EventType("clear")
	EventCleanup  = EventType("cleanup")
	EventError    = EventType("error")
	EventPressure = EventType("pressure")
)

// Event is a monitoring record, it is not a part of functional results.
type Event struct {
	Type      EventType
	Key       string
	Timestamp time.Time

	// Size is entry size for set and evict, freed bytes for pressure.
	Size int64

	// Count is a number of affected entries for clear and cleanup.
	Count int

	// Reason explains evict, clear and pressure events.
	Reason string

	Err error
}

// Listener receives events synchronously, it must not call back into the cache.
type Listener func(e Event)

type eventBus struct {
	mu        sync.RWMutex
	seq       int
	listeners map[int]Listener
}

// Subscribe adds a listener and returns a function to remove it.
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

func (b *eventBus) detachAll() {
	b.mu.Lock()
	b.listeners = nil
	b.mu.Unlock()
}
