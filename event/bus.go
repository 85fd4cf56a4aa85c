package event

import (
	"errors"
	"sync"
	"time"
)

var errMissingType = errors.New("event type is required")

// Bus is the in-process pub/sub for lifecycle events. Publishing is
// serialized, so every subscriber observes the same total order.
type Bus interface {
	// Publish delivers the event to every subscriber. The timestamp is
	// stamped at publish time if unset.
	Publish(e Event)

	// Subscribe registers a handler for all subsequent events and returns
	// an unsubscribe function. Handlers run synchronously on the
	// publisher's goroutine and must not block.
	Subscribe(fn func(Event)) func()
}

type subscriber struct {
	id int
	fn func(Event)
}

type bus struct {
	mu   sync.Mutex
	subs []subscriber
	next int
}

// NewBus creates an in-memory event bus.
func NewBus() Bus {
	return &bus{}
}

// Publish implements Bus.
func (b *bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		s.fn(e)
	}
}

// Subscribe implements Bus.
func (b *bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}
