package storage

import (
	"context"
	"testing"
	"time"

	"github.com/BradleyMatera/ShellCompany-sub002/directive"
)

func TestMemoryWorkflowRoundTrip(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	wf := &directive.Workflow{
		ID:        "wf-test1",
		Directive: "build a landing page",
		Status:    directive.StatusPlanned,
		StartedAt: time.Now(),
		Tasks: []*directive.Task{
			{ID: "task.x.1", WorkflowID: "wf-test1", Status: directive.TaskStatusPending},
		},
	}

	if err := repo.SaveWorkflow(ctx, wf); err != nil {
		t.Fatalf("SaveWorkflow failed: %v", err)
	}

	loaded, err := repo.LoadWorkflow(ctx, "wf-test1")
	if err != nil {
		t.Fatalf("LoadWorkflow failed: %v", err)
	}
	if loaded.Directive != wf.Directive {
		t.Errorf("directive = %q, want %q", loaded.Directive, wf.Directive)
	}
	if len(loaded.Tasks) != 1 || loaded.Tasks[0].ID != "task.x.1" {
		t.Errorf("tasks not preserved: %+v", loaded.Tasks)
	}

	// Loaded workflow is a copy, not an alias.
	loaded.Status = directive.StatusFailed
	again, _ := repo.LoadWorkflow(ctx, "wf-test1")
	if again.Status != directive.StatusPlanned {
		t.Error("LoadWorkflow should return independent copies")
	}
}

func TestMemoryWorkflowNotFound(t *testing.T) {
	repo := NewMemory()
	_, err := repo.LoadWorkflow(context.Background(), "wf-missing")
	if !IsNotFound(err) {
		t.Errorf("LoadWorkflow(missing) = %v, want ErrNotFound", err)
	}
}

func TestMemoryListWorkflowsNewestFirst(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"wf-a", "wf-b", "wf-c"} {
		repo.SaveWorkflow(ctx, &directive.Workflow{
			ID:        id,
			Status:    directive.StatusPlanned,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	list, err := repo.ListWorkflows(ctx, WorkflowFilter{})
	if err != nil {
		t.Fatalf("ListWorkflows failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d workflows, want 3", len(list))
	}
	if list[0].ID != "wf-c" || list[2].ID != "wf-a" {
		t.Errorf("not newest-first: %s, %s, %s", list[0].ID, list[1].ID, list[2].ID)
	}

	limited, _ := repo.ListWorkflows(ctx, WorkflowFilter{Limit: 1})
	if len(limited) != 1 || limited[0].ID != "wf-c" {
		t.Errorf("limit filter broken: %+v", limited)
	}
}

func TestMemoryListWorkflowsByStatus(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	repo.SaveWorkflow(ctx, &directive.Workflow{ID: "wf-1", Status: directive.StatusCompleted, StartedAt: time.Now()})
	repo.SaveWorkflow(ctx, &directive.Workflow{ID: "wf-2", Status: directive.StatusPlanned, StartedAt: time.Now()})

	list, _ := repo.ListWorkflows(ctx, WorkflowFilter{Status: directive.StatusCompleted})
	if len(list) != 1 || list[0].ID != "wf-1" {
		t.Errorf("status filter broken: %+v", list)
	}
}

func TestMemoryFailureInjection(t *testing.T) {
	repo := NewMemory()
	repo.FailSaves = 2
	ctx := context.Background()
	wf := &directive.Workflow{ID: "wf-retry", StartedAt: time.Now()}

	err := repo.SaveWorkflow(ctx, wf)
	if !IsTransient(err) {
		t.Fatalf("first save should fail transient, got %v", err)
	}
	if err := repo.SaveWorkflow(ctx, wf); !IsTransient(err) {
		t.Fatalf("second save should fail transient, got %v", err)
	}
	if err := repo.SaveWorkflow(ctx, wf); err != nil {
		t.Fatalf("third save should succeed, got %v", err)
	}
}

func TestMemoryArtifactQuery(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	now := time.Now()

	rows := []*ArtifactRow{
		{ID: "art-1", WorkflowID: "wf-1", Agent: "nova", Name: "index.html", Hash: "aaa", CreatedAt: now},
		{ID: "art-2", WorkflowID: "wf-1", Agent: "pixel", Name: "styles.css", Hash: "bbb", CreatedAt: now},
		{ID: "art-3", WorkflowID: "wf-2", Agent: "nova", Name: "index.html", Hash: "aaa", CreatedAt: now.Add(time.Hour)},
	}
	for _, r := range rows {
		if err := repo.SaveArtifact(ctx, r); err != nil {
			t.Fatalf("SaveArtifact failed: %v", err)
		}
	}

	byWorkflow, _ := repo.QueryArtifacts(ctx, ArtifactCriteria{WorkflowID: "wf-1"})
	if len(byWorkflow) != 2 {
		t.Errorf("workflow query: got %d, want 2", len(byWorkflow))
	}

	byHash, _ := repo.QueryArtifacts(ctx, ArtifactCriteria{Hash: "aaa"})
	if len(byHash) != 2 {
		t.Errorf("hash query: got %d, want 2", len(byHash))
	}

	byAgent, _ := repo.QueryArtifacts(ctx, ArtifactCriteria{Agent: "pixel"})
	if len(byAgent) != 1 || byAgent[0].ID != "art-2" {
		t.Errorf("agent query: %+v", byAgent)
	}

	recent, _ := repo.QueryArtifacts(ctx, ArtifactCriteria{CreatedAfter: now.Add(time.Minute)})
	if len(recent) != 1 || recent[0].ID != "art-3" {
		t.Errorf("created-after query: %+v", recent)
	}
}

func TestMemoryApprovalRoundTrip(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	req := &directive.ApprovalRequest{
		ID:          "apr-1",
		WorkflowID:  "wf-1",
		Status:      directive.ApprovalStatusPending,
		SubmittedAt: time.Now(),
	}
	if err := repo.SaveApproval(ctx, req); err != nil {
		t.Fatalf("SaveApproval failed: %v", err)
	}

	loaded, err := repo.LoadApproval(ctx, "wf-1")
	if err != nil {
		t.Fatalf("LoadApproval failed: %v", err)
	}
	if loaded.ID != "apr-1" || loaded.Status != directive.ApprovalStatusPending {
		t.Errorf("approval not preserved: %+v", loaded)
	}

	if _, err := repo.LoadApproval(ctx, "wf-none"); !IsNotFound(err) {
		t.Errorf("LoadApproval(missing) = %v, want ErrNotFound", err)
	}
}

func TestMemoryAudit(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	repo.AppendAudit(ctx, &AuditEntry{Actor: "coo", Action: "emergency_unblock", TargetKind: "workflow", TargetID: "wf-1", Timestamp: time.Now()})
	repo.AppendAudit(ctx, &AuditEntry{Actor: "ceo", Action: "approve", TargetKind: "workflow", TargetID: "wf-2", Timestamp: time.Now()})

	entries, err := repo.ListAudit(ctx, "wf-1")
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Actor != "coo" {
		t.Errorf("audit filter broken: %+v", entries)
	}
}
