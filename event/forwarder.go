package event

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
)

// Forwarder bridges the in-process bus onto NATS, publishing each event to
// its per-type subject. Observers outside the process subscribe to
// "company.events.>" or a narrower wildcard.
type Forwarder struct {
	client *natsclient.Client
	logger *slog.Logger
}

// NewForwarder creates a NATS event forwarder.
func NewForwarder(client *natsclient.Client, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		client: client,
		logger: logger.With("component", "event-forwarder"),
	}
}

// Attach subscribes the forwarder to the bus and returns the unsubscribe
// function.
func (f *Forwarder) Attach(bus Bus) func() {
	return bus.Subscribe(f.handle)
}

// handle publishes one event. Publish failures are logged, never propagated:
// the bus contract forbids blocking or failing the publisher.
func (f *Forwarder) handle(e Event) {
	subject := SubjectFor(e.Type)
	if subject == "" {
		f.logger.Warn("no subject for event type", "type", e.Type)
		return
	}

	baseMsg := message.NewBaseMessage(EventType, &e, "shellco")
	data, err := json.Marshal(baseMsg)
	if err != nil {
		f.logger.Error("marshal event failed", "type", e.Type, "error", err)
		return
	}

	if err := f.client.Publish(context.Background(), subject, data); err != nil {
		f.logger.Error("publish event failed",
			"type", e.Type,
			"subject", subject,
			"workflow_id", e.WorkflowID,
			"error", err)
	}
}
