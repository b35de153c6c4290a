package orchestrator

import (
	"log"
	"sync"

	"github.com/ShayCichocki/relay/internal/panicerr"
)

// Listener receives events from the bus.
type Listener func(Event)

type subscription struct {
	id uint64
	fn Listener
}

// EventBus delivers events synchronously to subscribers in subscription
// order, on the goroutine that calls Emit. Nothing is buffered or replayed.
type EventBus struct {
	mu       sync.RWMutex
	nextID   uint64
	typed    map[EventType][]subscription
	wildcard []subscription
	logger   *DebugLogger
}

// NewEventBus creates an empty bus. logger may be nil.
func NewEventBus(logger *DebugLogger) *EventBus {
	return &EventBus{
		typed:  make(map[EventType][]subscription),
		logger: logger,
	}
}

// Subscribe registers fn for one event type and returns its disposer.
func (b *EventBus) Subscribe(t EventType, fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.typed[t] = append(b.typed[t], subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.typed[t] = removeSub(b.typed[t], id)
		})
	}
}

// SubscribeAll registers fn for every event type and returns its disposer.
func (b *EventBus) SubscribeAll(fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.wildcard = append(b.wildcard, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.wildcard = removeSub(b.wildcard, id)
		})
	}
}

// Emit delivers the event to typed subscribers, then wildcard subscribers.
// A panicking listener is logged and skipped.
func (b *EventBus) Emit(e Event) {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.typed[e.Type])+len(b.wildcard))
	subs = append(subs, b.typed[e.Type]...)
	subs = append(subs, b.wildcard...)
	b.mu.RUnlock()

	for _, s := range subs {
		fn := s.fn
		if err := panicerr.Call(func() { fn(e) }); err != nil {
			log.Printf("[events] listener panicked on %s: %v", e.Type, err)
			b.logger.Log("[events] listener panicked on %s: %v", e.Type, err)
		}
	}
}

func removeSub(subs []subscription, id uint64) []subscription {
	out := make([]subscription, 0, len(subs))
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}
