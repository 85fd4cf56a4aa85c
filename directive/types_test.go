package directive

import (
	"testing"
	"time"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"planned to in_progress", StatusPlanned, StatusInProgress, true},
		{"planned to awaiting_clarification", StatusPlanned, StatusAwaitingClarification, true},
		{"planned to failed", StatusPlanned, StatusFailed, true},
		{"planned to completed", StatusPlanned, StatusCompleted, false},
		{"in_progress to executing", StatusInProgress, StatusExecuting, true},
		{"in_progress to approval", StatusInProgress, StatusWaitingForCEOApproval, true},
		{"executing to approval", StatusExecuting, StatusWaitingForCEOApproval, true},
		{"executing to completed", StatusExecuting, StatusCompleted, false},
		{"approval to completed", StatusWaitingForCEOApproval, StatusCompleted, true},
		{"approval to rejected", StatusWaitingForCEOApproval, StatusRejected, true},
		{"approval to needs_revision", StatusWaitingForCEOApproval, StatusNeedsRevision, true},
		{"needs_revision to in_progress", StatusNeedsRevision, StatusInProgress, true},
		{"needs_revision to completed", StatusNeedsRevision, StatusCompleted, false},
		{"completed is terminal", StatusCompleted, StatusFailed, false},
		{"rejected is terminal", StatusRejected, StatusInProgress, false},
		{"failed is terminal", StatusFailed, StatusInProgress, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
				t.Errorf("CanTransitionTo(%s → %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusRejected, StatusFailed}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("IsTerminal(%s) = false, want true", s)
		}
	}
	nonTerminal := []Status{StatusPlanned, StatusInProgress, StatusExecuting,
		StatusWaitingForCEOApproval, StatusNeedsRevision, StatusAwaitingClarification}
	for _, s := range nonTerminal {
		if s.IsTerminal() {
			t.Errorf("IsTerminal(%s) = true, want false", s)
		}
	}
}

func TestTaskStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    TaskStatus
		to      TaskStatus
		allowed bool
	}{
		{"pending to running", TaskStatusPending, TaskStatusRunning, true},
		{"pending to cancelled", TaskStatusPending, TaskStatusCancelled, true},
		{"pending to completed", TaskStatusPending, TaskStatusCompleted, false},
		{"running to completed", TaskStatusRunning, TaskStatusCompleted, true},
		{"running to failed", TaskStatusRunning, TaskStatusFailed, true},
		{"running to cancelled", TaskStatusRunning, TaskStatusCancelled, true},
		{"completed is terminal", TaskStatusCompleted, TaskStatusRunning, false},
		{"failed is terminal", TaskStatusFailed, TaskStatusPending, false},
		{"cancelled is terminal", TaskStatusCancelled, TaskStatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
				t.Errorf("CanTransitionTo(%s → %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestComputeProgress(t *testing.T) {
	tasks := []*Task{
		{ID: "t1", Status: TaskStatusCompleted},
		{ID: "t2", Status: TaskStatusCompleted},
		{ID: "t3", Status: TaskStatusFailed},
		{ID: "t4", Status: TaskStatusCancelled},
		{ID: "t5", Status: TaskStatusPending},
		{ID: "t6", Status: TaskStatusRunning},
	}

	p := ComputeProgress(tasks)
	if p.Completed != 2 {
		t.Errorf("Completed = %d, want 2", p.Completed)
	}
	if p.Failed != 2 {
		t.Errorf("Failed = %d, want 2", p.Failed)
	}
	if p.Total != 6 {
		t.Errorf("Total = %d, want 6", p.Total)
	}
	if p.Percentage != 33 {
		t.Errorf("Percentage = %d, want 33", p.Percentage)
	}
	if p.Completed+p.Failed > p.Total {
		t.Error("completed + failed must not exceed total")
	}
}

func TestComputeProgressEmpty(t *testing.T) {
	p := ComputeProgress(nil)
	if p.Total != 0 || p.Percentage != 0 {
		t.Errorf("empty progress = %+v, want zeros", p)
	}
}

func TestComputeProgressRounding(t *testing.T) {
	// 1/3 rounds to 33, 2/3 rounds to 67.
	tasks := []*Task{
		{Status: TaskStatusCompleted},
		{Status: TaskStatusCompleted},
		{Status: TaskStatusPending},
	}
	if p := ComputeProgress(tasks); p.Percentage != 67 {
		t.Errorf("Percentage = %d, want 67", p.Percentage)
	}
}

func TestWorkflowClone(t *testing.T) {
	wf := &Workflow{
		ID:        "wf-abc",
		Directive: "build a thing",
		Status:    StatusInProgress,
		Tasks: []*Task{
			{ID: "t1", Status: TaskStatusPending, DependsOn: []string{"t0"}},
		},
		Metadata:  map[string]any{"key": "value"},
		StartedAt: time.Now(),
	}

	cp := wf.Clone()
	cp.Tasks[0].Status = TaskStatusCompleted
	cp.Tasks[0].DependsOn[0] = "mutated"
	cp.Metadata["key"] = "changed"

	if wf.Tasks[0].Status != TaskStatusPending {
		t.Error("clone shares task structs with original")
	}
	if wf.Tasks[0].DependsOn[0] != "t0" {
		t.Error("clone shares dependency slices with original")
	}
	if wf.Metadata["key"] != "value" {
		t.Error("clone shares metadata map with original")
	}
}

func TestErrorKinds(t *testing.T) {
	err := Errorf(KindUnresolved, "question %s unanswered", "agent_mismatch")
	if !IsKind(err, KindUnresolved) {
		t.Error("IsKind should match the constructed kind")
	}
	if IsKind(err, KindInvalidInput) {
		t.Error("IsKind should not match a different kind")
	}
	if KindOf(err) != KindUnresolved {
		t.Errorf("KindOf = %s, want %s", KindOf(err), KindUnresolved)
	}

	wrapped := Wrap(KindPersistenceTransient, err, "save failed")
	if KindOf(wrapped) != KindPersistenceTransient {
		t.Errorf("KindOf(wrapped) = %s, want %s", KindOf(wrapped), KindPersistenceTransient)
	}
}

func TestTriggerPayloadValidate(t *testing.T) {
	p := &TriggerPayload{}
	if err := p.Validate(); err == nil {
		t.Error("empty payload should fail validation")
	}
	p.RequestID = "req-1"
	if err := p.Validate(); err == nil {
		t.Error("payload without directive or brief should fail validation")
	}
	p.Directive = "build a landing page"
	if err := p.Validate(); err != nil {
		t.Errorf("valid payload failed validation: %v", err)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Create a landing page!", "create-a-landing-page"},
		{"  UPPER case  ", "upper-case"},
		{"", "directive"},
		{"???", "directive"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
