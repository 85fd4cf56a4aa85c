// Package brief turns a raw directive into a clarified, approved brief.
// Analysis is deterministic: identical directives produce identical facts,
// assumptions, and clarifying questions.
package brief

import (
	"time"
)

// Status represents the brief lifecycle state. Status only advances.
type Status string

const (
	// StatusAnalyzing indicates intent analysis is in progress.
	StatusAnalyzing Status = "analyzing"

	// StatusAwaitingResponses indicates clarifying questions are open.
	StatusAwaitingResponses Status = "awaiting_responses"

	// StatusReadyForApproval indicates every required question is answered.
	StatusReadyForApproval Status = "ready_for_approval"

	// StatusApproved indicates the brief has been finalized.
	StatusApproved Status = "approved"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// rank orders statuses for the forward-only invariant.
func (s Status) rank() int {
	switch s {
	case StatusAnalyzing:
		return 0
	case StatusAwaitingResponses:
		return 1
	case StatusReadyForApproval:
		return 2
	case StatusApproved:
		return 3
	default:
		return -1
	}
}

// Question is one clarifying question attached to a brief.
type Question struct {
	// ID is a stable identifier (scope, timeline, target_users,
	// key_features, agent_mismatch).
	ID string `json:"id"`

	// Prompt is the question text shown to the operator.
	Prompt string `json:"prompt"`

	// Required blocks finalization until answered.
	Required bool `json:"required"`

	// Priority is low, normal, or high.
	Priority string `json:"priority"`

	// Form is the expected answer form (choice, text, multi).
	Form string `json:"form"`

	// Options lists suggested answers for choice questions.
	Options []string `json:"options,omitempty"`
}

// Response records one answer to a clarifying question.
type Response struct {
	// Response is the operator's answer text.
	Response string `json:"response"`

	// Timestamp is when the answer was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// Finalized is the approved, normalized form of a brief handed to the
// planner.
type Finalized struct {
	// Directive is the original operator instruction.
	Directive string `json:"directive"`

	// ProjectKind is the classified kind (website, dashboard, fullstack,
	// brainstorm, generic).
	ProjectKind string `json:"project_kind"`

	// Scope is the resolved scope answer.
	Scope string `json:"scope"`

	// Timeline is the resolved timeline answer.
	Timeline string `json:"timeline"`

	// KeyFeatures lists features gathered from the directive and answers.
	KeyFeatures []string `json:"key_features,omitempty"`

	// TargetUsers is the resolved target-users answer.
	TargetUsers string `json:"target_users,omitempty"`

	// SuggestedAgents lists agent names recommended for the work.
	SuggestedAgents []string `json:"suggested_agents,omitempty"`

	// RequestedAgent is the explicitly requested agent after mismatch
	// resolution, if any.
	RequestedAgent string `json:"requested_agent,omitempty"`

	// AgentExplicit is true when the operator explicitly chose an agent.
	AgentExplicit bool `json:"agent_explicit"`
}

// Brief is an in-flight intent analysis.
type Brief struct {
	// ID is the unique identifier (format: brief-{suffix}).
	ID string `json:"id"`

	// Directive is the original operator instruction.
	Directive string `json:"directive"`

	// Submitter identifies the requesting operator.
	Submitter string `json:"submitter,omitempty"`

	// Status is the lifecycle state.
	Status Status `json:"status"`

	// ProjectKind is the classified project kind.
	ProjectKind string `json:"project_kind"`

	// KnownFacts lists literal facts extracted from the directive.
	KnownFacts []string `json:"known_facts,omitempty"`

	// Assumptions lists defaults assumed pending clarification.
	Assumptions []string `json:"assumptions,omitempty"`

	// Unknowns lists open points the questions aim to resolve.
	Unknowns []string `json:"unknowns,omitempty"`

	// Questions lists the clarifying questions in a stable order.
	Questions []Question `json:"questions"`

	// Responses maps question IDs to recorded answers.
	Responses map[string]Response `json:"responses,omitempty"`

	// SuggestedAgents lists agent names the analyzer recommends.
	SuggestedAgents []string `json:"suggested_agents,omitempty"`

	// RequestedAgent is the agent the directive explicitly named, if any.
	RequestedAgent string `json:"requested_agent,omitempty"`

	// EstimatedComplexity is low, medium, or high.
	EstimatedComplexity string `json:"estimated_complexity,omitempty"`

	// Finalized is set once the brief is approved.
	Finalized *Finalized `json:"finalized,omitempty"`

	// CreatedAt is when analysis started.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the brief last changed.
	UpdatedAt time.Time `json:"updated_at"`

	// keyFeatures holds the features detected from the directive; answer
	// features are merged in at finalize time.
	keyFeatures []string
}

// Question returns the question with the given ID, or nil.
func (b *Brief) Question(id string) *Question {
	for i := range b.Questions {
		if b.Questions[i].ID == id {
			return &b.Questions[i]
		}
	}
	return nil
}

// UnansweredRequired returns the required questions without a recorded
// response, in question order.
func (b *Brief) UnansweredRequired() []Question {
	var out []Question
	for _, q := range b.Questions {
		if !q.Required {
			continue
		}
		if _, ok := b.Responses[q.ID]; !ok {
			out = append(out, q)
		}
	}
	return out
}

// clone returns an independent copy of the brief.
func (b *Brief) clone() *Brief {
	c := *b
	c.KnownFacts = append([]string(nil), b.KnownFacts...)
	c.Assumptions = append([]string(nil), b.Assumptions...)
	c.Unknowns = append([]string(nil), b.Unknowns...)
	c.Questions = append([]Question(nil), b.Questions...)
	c.SuggestedAgents = append([]string(nil), b.SuggestedAgents...)
	c.keyFeatures = append([]string(nil), b.keyFeatures...)
	c.Responses = make(map[string]Response, len(b.Responses))
	for k, v := range b.Responses {
		c.Responses[k] = v
	}
	if b.Finalized != nil {
		f := *b.Finalized
		f.KeyFeatures = append([]string(nil), b.Finalized.KeyFeatures...)
		f.SuggestedAgents = append([]string(nil), b.Finalized.SuggestedAgents...)
		c.Finalized = &f
	}
	return &c
}
