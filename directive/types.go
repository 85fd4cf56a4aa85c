// Package directive defines the core data model for the ShellCompany
// orchestration engine: workflows, tasks, progress accounting, and
// approval requests, together with their status state machines.
package directive

import (
	"encoding/json"
	"math"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
)

func init() {
	// Register TriggerPayload type for message deserialization
	_ = component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "company",
		Category:    "directive-trigger",
		Version:     "v1",
		Description: "Directive trigger payload for workflow creation",
		Factory:     func() any { return &TriggerPayload{} },
	})
}

// Status represents the current state of a workflow.
type Status string

const (
	// StatusPlanned indicates the workflow has been created but no task has started.
	StatusPlanned Status = "planned"
	// StatusAwaitingClarification indicates the originating brief still has
	// unresolved clarifying questions.
	StatusAwaitingClarification Status = "awaiting_clarification"
	// StatusInProgress indicates at least one task has started.
	StatusInProgress Status = "in_progress"
	// StatusExecuting indicates more than half the tasks are past pending.
	StatusExecuting Status = "executing"
	// StatusWaitingForCEOApproval indicates the manager review is done and an
	// executive decision is pending.
	StatusWaitingForCEOApproval Status = "waiting_for_ceo_approval"
	// StatusCompleted indicates the workflow finished and was approved.
	StatusCompleted Status = "completed"
	// StatusRejected indicates the executive rejected the workflow.
	StatusRejected Status = "rejected"
	// StatusNeedsRevision indicates the executive requested changes; the
	// workflow returns to in_progress once a revision task is enqueued.
	StatusNeedsRevision Status = "needs_revision"
	// StatusFailed indicates an unrecoverable error or cancellation.
	StatusFailed Status = "failed"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is a valid workflow status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPlanned, StatusAwaitingClarification, StatusInProgress,
		StatusExecuting, StatusWaitingForCEOApproval,
		StatusCompleted, StatusRejected, StatusNeedsRevision, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for statuses that permit no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusFailed
}

// CanTransitionTo returns true if the status can transition to the target status.
func (s Status) CanTransitionTo(target Status) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case StatusPlanned:
		return target == StatusAwaitingClarification || target == StatusInProgress || target == StatusFailed
	case StatusAwaitingClarification:
		return target == StatusPlanned || target == StatusInProgress || target == StatusFailed
	case StatusInProgress:
		// Small task sets can cross the 50% threshold on the first start, and
		// single-task workflows go straight to the approval gate.
		return target == StatusExecuting || target == StatusWaitingForCEOApproval || target == StatusFailed
	case StatusExecuting:
		return target == StatusWaitingForCEOApproval || target == StatusFailed
	case StatusWaitingForCEOApproval:
		return target == StatusCompleted || target == StatusRejected ||
			target == StatusNeedsRevision || target == StatusFailed
	case StatusNeedsRevision:
		return target == StatusInProgress || target == StatusFailed
	default:
		return false
	}
}

// TaskStatus represents the execution state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting on dependencies or an agent slot.
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusRunning indicates the task has been dispatched to its agent.
	TaskStatusRunning TaskStatus = "running"

	// TaskStatusCompleted indicates every command exited zero.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed indicates a command exited non-zero or timed out.
	TaskStatusFailed TaskStatus = "failed"

	// TaskStatusCancelled indicates the task was cancelled before or during execution.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsValid returns true if the task status is valid.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for task statuses that permit no further transitions.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// CanTransitionTo returns true if this status can transition to the target status.
func (s TaskStatus) CanTransitionTo(target TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return target == TaskStatusRunning || target == TaskStatusCancelled || target == TaskStatusFailed
	case TaskStatusRunning:
		return target == TaskStatusCompleted || target == TaskStatusFailed || target == TaskStatusCancelled
	default:
		return false
	}
}

// TaskType classifies the kind of work a task represents. Most tasks carry no
// type; the orchestrator inserts typed tasks for the review and revision loops.
type TaskType string

const (
	// TaskTypeManagerReview is the synthetic review task inserted before
	// executive approval.
	TaskTypeManagerReview TaskType = "manager_review"

	// TaskTypeRevision is the follow-up task created when an executive
	// returns a needs_revision decision.
	TaskTypeRevision TaskType = "revision"
)

// StepResult records the outcome of one command within a task.
type StepResult struct {
	// Command is the shell command that was run.
	Command string `json:"command"`

	// ExitCode is the command's exit code.
	ExitCode int `json:"exit_code"`

	// Stdout is a bounded excerpt of standard output.
	Stdout string `json:"stdout,omitempty"`

	// Stderr is a bounded excerpt of standard error.
	Stderr string `json:"stderr,omitempty"`

	// Duration is how long the command ran.
	Duration time.Duration `json:"duration"`
}

// ExecutionResult is the executor's report for one task run.
type ExecutionResult struct {
	// Status is the terminal task status produced by the run.
	Status TaskStatus `json:"status"`

	// Steps records each executed command in order.
	Steps []StepResult `json:"steps,omitempty"`

	// ArtifactIDs lists artifacts registered during the run.
	ArtifactIDs []string `json:"artifact_ids,omitempty"`

	// Error describes the failure when Status is failed or cancelled.
	Error string `json:"error,omitempty"`
}

// Task represents a unit of work inside a workflow.
type Task struct {
	// ID is the unique identifier (format: task.{slug}.{sequence})
	ID string `json:"id"`

	// WorkflowID is the parent workflow ID.
	WorkflowID string `json:"workflow_id"`

	// Title is the short human-readable title.
	Title string `json:"title"`

	// Description is what the task should accomplish.
	Description string `json:"description,omitempty"`

	// Agent is the name of the agent assigned to this task.
	Agent string `json:"agent"`

	// Commands is the ordered list of shell commands to run.
	Commands []string `json:"commands,omitempty"`

	// DependsOn lists task IDs within the same workflow that must complete
	// before this task can start.
	DependsOn []string `json:"depends_on,omitempty"`

	// Status is the current execution state.
	Status TaskStatus `json:"status"`

	// Type classifies synthetic tasks (manager_review, revision). Empty for
	// ordinary work tasks.
	Type TaskType `json:"type,omitempty"`

	// Priority is advisory metadata surfaced to observers. It never affects
	// scheduling order.
	Priority int `json:"priority,omitempty"`

	// EstimatedDuration is the planner's estimate for this task.
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty"`

	// StartedAt is when the task was dispatched.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the task reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Result is the executor's report once the task finishes.
	Result *ExecutionResult `json:"result,omitempty"`

	// Error is the failure or cancellation reason.
	Error string `json:"error,omitempty"`
}

// Progress tracks workflow completion counters.
type Progress struct {
	// Completed is the number of tasks that finished successfully.
	Completed int `json:"completed"`

	// Failed is the number of tasks that failed or were cancelled.
	Failed int `json:"failed"`

	// Total is the number of tasks in the workflow.
	Total int `json:"total"`

	// Percentage is round(completed / total * 100).
	Percentage int `json:"percentage"`
}

// ComputeProgress derives progress counters from a task list.
func ComputeProgress(tasks []*Task) Progress {
	p := Progress{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case TaskStatusCompleted:
			p.Completed++
		case TaskStatusFailed, TaskStatusCancelled:
			p.Failed++
		}
	}
	if p.Total > 0 {
		p.Percentage = int(math.Round(float64(p.Completed) / float64(p.Total) * 100))
	}
	return p
}

// Workflow represents one execution of a directive.
type Workflow struct {
	// ID is the unique identifier (format: wf-{suffix}).
	ID string `json:"id"`

	// Directive is the operator's original natural-language instruction.
	Directive string `json:"directive"`

	// Status is the current workflow state.
	Status Status `json:"status"`

	// BriefID references the brief this workflow was created from, if any.
	BriefID string `json:"brief_id,omitempty"`

	// Tasks is the workflow's task list in planner order.
	Tasks []*Task `json:"tasks"`

	// Progress tracks completion counters.
	Progress Progress `json:"progress"`

	// ArtifactIDs accumulates artifacts produced by the workflow's tasks.
	ArtifactIDs []string `json:"artifact_ids,omitempty"`

	// Metadata is free-form workflow annotation (approval decisions,
	// failure reasons, cancellation context).
	Metadata map[string]any `json:"metadata,omitempty"`

	// StartedAt is when the workflow was created.
	StartedAt time.Time `json:"started_at"`

	// EndedAt is set exactly when the workflow reaches a terminal status.
	EndedAt *time.Time `json:"ended_at,omitempty"`

	// TotalDuration is EndedAt minus StartedAt for terminal workflows.
	TotalDuration time.Duration `json:"total_duration,omitempty"`
}

// Task returns the task with the given ID, or nil if absent.
func (w *Workflow) Task(id string) *Task {
	for _, t := range w.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// ReviewTask returns the workflow's manager review task, or nil if absent.
func (w *Workflow) ReviewTask() *Task {
	for _, t := range w.Tasks {
		if t.Type == TaskTypeManagerReview {
			return t
		}
	}
	return nil
}

// AddFailureReason appends an entry to metadata.failureReasons.
func (w *Workflow) AddFailureReason(reason string) {
	if w.Metadata == nil {
		w.Metadata = make(map[string]any)
	}
	existing, _ := w.Metadata["failureReasons"].([]string)
	w.Metadata["failureReasons"] = append(existing, reason)
}

// Clone returns a deep-enough copy for safe external reads. Task structs and
// slices are copied; result payloads are shared because they are never
// mutated after the task reaches a terminal status.
func (w *Workflow) Clone() *Workflow {
	cp := *w
	cp.Tasks = make([]*Task, len(w.Tasks))
	for i, t := range w.Tasks {
		tc := *t
		tc.DependsOn = append([]string(nil), t.DependsOn...)
		tc.Commands = append([]string(nil), t.Commands...)
		cp.Tasks[i] = &tc
	}
	cp.ArtifactIDs = append([]string(nil), w.ArtifactIDs...)
	if w.Metadata != nil {
		cp.Metadata = make(map[string]any, len(w.Metadata))
		for k, v := range w.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// ApprovalStatus represents the state of an executive approval request.
type ApprovalStatus string

const (
	// ApprovalStatusPending indicates no decision has been recorded yet.
	ApprovalStatusPending ApprovalStatus = "pending"

	// ApprovalStatusApproved indicates the executive approved the workflow.
	ApprovalStatusApproved ApprovalStatus = "approved"

	// ApprovalStatusRejected indicates the executive rejected the workflow.
	ApprovalStatusRejected ApprovalStatus = "rejected"

	// ApprovalStatusNeedsRevision indicates the executive requested changes.
	ApprovalStatusNeedsRevision ApprovalStatus = "needs_revision"

	// ApprovalStatusEmergencyApproved indicates an administrator forced
	// completion with a recorded reason.
	ApprovalStatusEmergencyApproved ApprovalStatus = "emergency_approved"
)

// String returns the string representation of the approval status.
func (s ApprovalStatus) String() string {
	return string(s)
}

// IsValid returns true if the approval status is valid.
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusRejected,
		ApprovalStatusNeedsRevision, ApprovalStatusEmergencyApproved:
		return true
	default:
		return false
	}
}

// ComplianceCheck is one deterministic rule outcome in an approval summary.
type ComplianceCheck struct {
	// Name identifies the rule.
	Name string `json:"name"`

	// Passed is the rule outcome.
	Passed bool `json:"passed"`

	// Details explains the outcome.
	Details string `json:"details,omitempty"`
}

// ApprovalSummary is the derived snapshot attached to an approval request.
type ApprovalSummary struct {
	// QualityScore is a 0-100 score computed from workflow state.
	QualityScore int `json:"quality_score"`

	// RiskLevel is one of low, medium, high.
	RiskLevel string `json:"risk_level"`

	// Checks lists compliance rule outcomes.
	Checks []ComplianceCheck `json:"checks"`
}

// ApprovalRequest is the executive sign-off record for a workflow.
type ApprovalRequest struct {
	// ID is the unique identifier (format: apr-{suffix}).
	ID string `json:"id"`

	// WorkflowID is the workflow awaiting a decision.
	WorkflowID string `json:"workflow_id"`

	// Submitter identifies who or what submitted the request.
	Submitter string `json:"submitter"`

	// Summary is the derived quality/risk/compliance snapshot.
	Summary ApprovalSummary `json:"summary"`

	// Status is the request state.
	Status ApprovalStatus `json:"status"`

	// Approver identifies who recorded the decision.
	Approver string `json:"approver,omitempty"`

	// Comments carries the approver's comments or the emergency reason.
	Comments string `json:"comments,omitempty"`

	// SubmittedAt is when the request was created.
	SubmittedAt time.Time `json:"submitted_at"`

	// DecidedAt is when the decision was recorded.
	DecidedAt *time.Time `json:"decided_at,omitempty"`
}

// TriggerPayload is published to the trigger subject to create a workflow
// from a directive without going through the HTTP surface.
type TriggerPayload struct {
	// RequestID uniquely identifies this request.
	RequestID string `json:"request_id"`

	// Directive is the operator instruction.
	Directive string `json:"directive"`

	// Submitter identifies the requesting operator.
	Submitter string `json:"submitter,omitempty"`

	// BriefID optionally references an approved brief to plan from.
	BriefID string `json:"brief_id,omitempty"`
}

// TriggerType is the message type for directive trigger payloads.
var TriggerType = message.Type{
	Domain:   "company",
	Category: "directive-trigger",
	Version:  "v1",
}

// Schema implements message.Payload.
func (p *TriggerPayload) Schema() message.Type {
	return TriggerType
}

// Validate implements message.Payload.
func (p *TriggerPayload) Validate() error {
	if p.RequestID == "" {
		return &Error{Kind: KindInvalidInput, Message: "request_id is required"}
	}
	if p.Directive == "" && p.BriefID == "" {
		return &Error{Kind: KindInvalidInput, Message: "directive or brief_id is required"}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *TriggerPayload) MarshalJSON() ([]byte, error) {
	type Alias TriggerPayload
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *TriggerPayload) UnmarshalJSON(data []byte) error {
	type Alias TriggerPayload
	return json.Unmarshal(data, (*Alias)(p))
}
