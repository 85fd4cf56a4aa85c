package event

import (
	"sync"
	"time"
)

// Capture is a Bus that records every published event. Tests inject it to
// assert on event sequences.
type Capture struct {
	mu     sync.Mutex
	events []Event
	inner  Bus
}

// NewCapture creates a recording bus.
func NewCapture() *Capture {
	return &Capture{inner: NewBus()}
}

// Publish implements Bus.
func (c *Capture) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
	c.inner.Publish(e)
}

// Subscribe implements Bus.
func (c *Capture) Subscribe(fn func(Event)) func() {
	return c.inner.Subscribe(fn)
}

// Events returns a snapshot of all recorded events in publish order.
func (c *Capture) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// OfType returns recorded events of the given type, in order.
func (c *Capture) OfType(t Type) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// ForTask returns recorded events for the given task, in order.
func (c *Capture) ForTask(taskID string) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.events {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out
}

// WaitFor polls until an event satisfying pred has been recorded or the
// timeout elapses. Returns true if the event arrived.
func (c *Capture) WaitFor(pred func(Event) bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		c.mu.Lock()
		for _, e := range c.events {
			if pred(e) {
				c.mu.Unlock()
				return true
			}
		}
		c.mu.Unlock()
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}
