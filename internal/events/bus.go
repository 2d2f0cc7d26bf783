package events

import (
	"sync"

	"github.com/google/uuid"
)

// EventHandler receives published events.
type EventHandler func(event Event)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish delivers an event synchronously to all matching subscribers.
	Publish(event Event)

	// PublishAsync delivers an event without blocking the caller.
	PublishAsync(event Event)

	// Subscribe registers a handler for the given event types. An empty
	// type list subscribes to everything. Returns a subscription id.
	Subscribe(handler EventHandler, types ...EventType) string

	// Unsubscribe removes a subscription.
	Unsubscribe(subscriptionID string)

	// Stop tears down the bus; pending async deliveries are dropped.
	Stop()
}

type subscription struct {
	id      string
	handler EventHandler
	types   map[EventType]bool // nil means all types
}

type bus struct {
	mu      sync.RWMutex
	subs    map[string]*subscription
	queue   chan Event
	done    chan struct{}
	stopped bool
}

// NewBus creates an event bus with a background delivery goroutine for
// asynchronous publishes.
func NewBus() EventBus {
	b := &bus{
		subs:  make(map[string]*subscription),
		queue: make(chan Event, 256),
		done:  make(chan struct{}),
	}
	go b.deliverLoop()
	return b
}

func (b *bus) deliverLoop() {
	for {
		select {
		case event := <-b.queue:
			b.Publish(event)
		case <-b.done:
			return
		}
	}
}

func (b *bus) Publish(event Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.types == nil || sub.types[event.Type] {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

func (b *bus) PublishAsync(event Event) {
	b.mu.RLock()
	stopped := b.stopped
	b.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case b.queue <- event:
	default:
		// Queue full; drop rather than block the publisher.
	}
}

func (b *bus) Subscribe(handler EventHandler, types ...EventType) string {
	sub := &subscription{
		id:      uuid.NewString(),
		handler: handler,
	}
	if len(types) > 0 {
		sub.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()
	return sub.id
}

func (b *bus) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	delete(b.subs, subscriptionID)
	b.mu.Unlock()
}

func (b *bus) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.mu.Unlock()
	close(b.done)
}
