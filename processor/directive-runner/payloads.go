package directiverunner

import (
	"encoding/json"
	"fmt"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
)

// WorkflowTriggerPayload is the typed payload consumed from the workflow
// trigger subject. A trigger either names an approved brief or carries a
// raw directive with optional clarifier responses.
type WorkflowTriggerPayload struct {
	RequestID string `json:"request_id"`

	// Directive is the raw directive text. Used when BriefID is empty.
	Directive string `json:"directive,omitempty"`

	// BriefID references an already-clarified brief.
	BriefID string `json:"brief_id,omitempty"`

	Submitter string `json:"submitter,omitempty"`

	// Responses maps clarifying question IDs to answers, applied before
	// the workflow is created.
	Responses map[string]string `json:"responses,omitempty"`

	TraceID string `json:"trace_id,omitempty"`
}

// Schema implements message.Payload.
func (p *WorkflowTriggerPayload) Schema() message.Type {
	return WorkflowTriggerType
}

// Validate implements message.Payload.
func (p *WorkflowTriggerPayload) Validate() error {
	if p.Directive == "" && p.BriefID == "" {
		return fmt.Errorf("directive or brief_id is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *WorkflowTriggerPayload) MarshalJSON() ([]byte, error) {
	type Alias WorkflowTriggerPayload
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *WorkflowTriggerPayload) UnmarshalJSON(data []byte) error {
	type Alias WorkflowTriggerPayload
	return json.Unmarshal(data, (*Alias)(p))
}

// WorkflowTriggerType is the message type for workflow triggers.
var WorkflowTriggerType = message.Type{
	Domain:   "company",
	Category: "workflow-trigger",
	Version:  "v1",
}

// WorkflowResultPayload reports the outcome of a trigger.
type WorkflowResultPayload struct {
	RequestID  string `json:"request_id"`
	WorkflowID string `json:"workflow_id,omitempty"`
	BriefID    string `json:"brief_id,omitempty"`

	// Status is one of created, awaiting_clarification, failed.
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`

	TraceID string `json:"trace_id,omitempty"`
}

// Schema implements message.Payload.
func (p *WorkflowResultPayload) Schema() message.Type {
	return WorkflowResultType
}

// Validate implements message.Payload.
func (p *WorkflowResultPayload) Validate() error {
	if p.Status == "" {
		return fmt.Errorf("status is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *WorkflowResultPayload) MarshalJSON() ([]byte, error) {
	type Alias WorkflowResultPayload
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *WorkflowResultPayload) UnmarshalJSON(data []byte) error {
	type Alias WorkflowResultPayload
	return json.Unmarshal(data, (*Alias)(p))
}

// WorkflowResultType is the message type for trigger results.
var WorkflowResultType = message.Type{
	Domain:   "company",
	Category: "workflow-result",
	Version:  "v1",
}

func init() {
	if err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "company",
		Category:    "workflow-trigger",
		Version:     "v1",
		Description: "Workflow creation trigger from a directive or brief",
		Factory:     func() any { return &WorkflowTriggerPayload{} },
	}); err != nil {
		panic("failed to register workflow trigger payload: " + err.Error())
	}
	if err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "company",
		Category:    "workflow-result",
		Version:     "v1",
		Description: "Workflow trigger processing result",
		Factory:     func() any { return &WorkflowResultPayload{} },
	}); err != nil {
		panic("failed to register workflow result payload: " + err.Error())
	}
}

// ParseTriggerPayload parses a trigger message. It accepts both a
// BaseMessage envelope and raw JSON, since triggers can arrive from the
// component pipeline or be published directly with the NATS CLI.
func ParseTriggerPayload[T any](data []byte) (*T, error) {
	var envelope struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Payload) > 0 {
		var result T
		if err := json.Unmarshal(envelope.Payload, &result); err != nil {
			return nil, fmt.Errorf("unmarshal payload into %T: %w", result, err)
		}
		return &result, nil
	}

	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal trigger: %w", err)
	}
	return &result, nil
}
