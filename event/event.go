// Package event defines the lifecycle event model and the in-process bus
// that fans events out to observers. Every workflow, task, artifact, and
// approval transition is announced here; transports subscribe and forward.
package event

import (
	"encoding/json"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
)

func init() {
	_ = component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "company",
		Category:    "event",
		Version:     "v1",
		Description: "Workflow lifecycle event",
		Factory:     func() any { return &Event{} },
	})
}

// Type identifies a lifecycle event.
type Type string

const (
	WorkflowCreated      Type = "workflow_created"
	WorkflowProgress     Type = "workflow_progress"
	WorkflowCancelled    Type = "workflow_cancelled"
	WorkflowCompleted    Type = "workflow_completed"
	WorkflowFailed       Type = "workflow_failed"
	TaskQueued           Type = "task_queued"
	TaskStarted          Type = "task_started"
	TaskStepOutput       Type = "task_step_output"
	TaskCompleted        Type = "task_completed"
	TaskFailed           Type = "task_failed"
	TaskCancelled        Type = "task_cancelled"
	ArtifactRecorded     Type = "artifact_recorded"
	ArtifactUpdated      Type = "artifact_updated"
	ApprovalRequested    Type = "approval_requested"
	ApprovalDecision     Type = "approval_decision"
	EmergencyUnblock     Type = "emergency_unblock"
	PersistenceDegraded  Type = "persistence_degraded"
)

// Event is one lifecycle notification. Events for a single workflow are
// delivered to every subscriber in publish order.
type Event struct {
	// Type identifies what happened.
	Type Type `json:"type"`

	// WorkflowID is the workflow this event belongs to, if any.
	WorkflowID string `json:"workflow_id,omitempty"`

	// TaskID is the task this event belongs to, if any.
	TaskID string `json:"task_id,omitempty"`

	// Agent is the acting agent, if any.
	Agent string `json:"agent,omitempty"`

	// Stream is "stdout" or "stderr" for task_step_output events.
	Stream string `json:"stream,omitempty"`

	// Data carries event-specific detail (progress counters, output chunks,
	// decision records) as raw JSON.
	Data json.RawMessage `json:"data,omitempty"`

	// Timestamp is when the event was published.
	Timestamp time.Time `json:"timestamp"`
}

// EventType is the message type for lifecycle events on the wire.
var EventType = message.Type{
	Domain:   "company",
	Category: "event",
	Version:  "v1",
}

// Schema implements message.Payload.
func (e *Event) Schema() message.Type {
	return EventType
}

// Validate implements message.Payload.
func (e *Event) Validate() error {
	if e.Type == "" {
		return errMissingType
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (e *Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	return json.Marshal((*Alias)(e))
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	return json.Unmarshal(data, (*Alias)(e))
}

// WithData attaches a JSON-marshalled detail payload. Marshal failures leave
// Data empty; detail payloads are plain structs and maps that cannot fail.
func (e Event) WithData(v any) Event {
	if v == nil {
		return e
	}
	if raw, err := json.Marshal(v); err == nil {
		e.Data = raw
	}
	return e
}
