package approval

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradleyMatera/ShellCompany-sub002/directive"
	"github.com/BradleyMatera/ShellCompany-sub002/event"
	"github.com/BradleyMatera/ShellCompany-sub002/storage"
)

func completedWorkflow(directiveText string) *directive.Workflow {
	review := &directive.Task{
		ID: "task.x.4", Title: "Review the delivery", Agent: "alex",
		Type: directive.TaskTypeManagerReview, Status: directive.TaskStatusCompleted,
	}
	return &directive.Workflow{
		ID:        "wf-1",
		Directive: directiveText,
		Status:    directive.StatusExecuting,
		Tasks: []*directive.Task{
			{ID: "task.x.1", Title: "Plan", Agent: "alex", Status: directive.TaskStatusCompleted},
			{ID: "task.x.2", Title: "Design", Agent: "pixel", Status: directive.TaskStatusCompleted},
			{ID: "task.x.3", Title: "Build", Agent: "nova", Status: directive.TaskStatusCompleted},
			review,
		},
	}
}

func newGate(t *testing.T) (*Gate, *storage.Memory, *event.Capture) {
	t.Helper()
	repo := storage.NewMemory()
	bus := event.NewCapture()
	clock := &directive.FakeClock{Current: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewGate(nil, repo, bus, clock, nil), repo, bus
}

func TestSubmitEvaluatesAndPersists(t *testing.T) {
	g, repo, bus := newGate(t)

	req, err := g.Submit(context.Background(), completedWorkflow("Build a landing page"), 3, "operator")
	require.NoError(t, err)
	assert.Equal(t, directive.ApprovalStatusPending, req.Status)
	assert.Equal(t, 95, req.Summary.QualityScore)
	assert.Equal(t, "low", req.Summary.RiskLevel)

	saved, err := repo.LoadApproval(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, req.ID, saved.ID)
	require.Len(t, bus.OfType(event.ApprovalRequested), 1)
}

func TestSubmitBlocksDuplicatePending(t *testing.T) {
	g, _, _ := newGate(t)
	wf := completedWorkflow("Build a landing page")

	_, err := g.Submit(context.Background(), wf, 1, "operator")
	require.NoError(t, err)
	_, err = g.Submit(context.Background(), wf, 1, "operator")
	assert.True(t, directive.IsKind(err, directive.KindApprovalBlocked))
}

func TestDecideApproved(t *testing.T) {
	g, repo, bus := newGate(t)
	req, err := g.Submit(context.Background(), completedWorkflow("Build a page"), 1, "operator")
	require.NoError(t, err)

	decided, err := g.Decide(context.Background(), req.ID, directive.ApprovalStatusApproved, "ceo", "ship it")
	require.NoError(t, err)
	assert.Equal(t, directive.ApprovalStatusApproved, decided.Status)
	assert.Equal(t, "ceo", decided.Approver)
	require.NotNil(t, decided.DecidedAt)
	require.Len(t, bus.OfType(event.ApprovalDecision), 1)

	entries, err := repo.ListAudit(context.Background(), "wf-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "approval_decision", entries[0].Action)
	assert.Equal(t, "ceo", entries[0].Actor)
}

func TestDecideEmptyCommentsAllowed(t *testing.T) {
	g, _, _ := newGate(t)
	req, err := g.Submit(context.Background(), completedWorkflow("Build a page"), 1, "operator")
	require.NoError(t, err)

	_, err = g.Decide(context.Background(), req.ID, directive.ApprovalStatusApproved, "ceo", "")
	assert.NoError(t, err)
}

func TestDecideRejectsSecondDecision(t *testing.T) {
	g, _, _ := newGate(t)
	req, err := g.Submit(context.Background(), completedWorkflow("Build a page"), 1, "operator")
	require.NoError(t, err)

	_, err = g.Decide(context.Background(), req.ID, directive.ApprovalStatusRejected, "ceo", "no")
	require.NoError(t, err)
	_, err = g.Decide(context.Background(), req.ID, directive.ApprovalStatusApproved, "ceo", "wait")
	assert.True(t, directive.IsKind(err, directive.KindInvalidInput))
}

func TestDecideRejectsInvalidDecision(t *testing.T) {
	g, _, _ := newGate(t)
	req, err := g.Submit(context.Background(), completedWorkflow("Build a page"), 1, "operator")
	require.NoError(t, err)

	_, err = g.Decide(context.Background(), req.ID, directive.ApprovalStatusPending, "ceo", "")
	assert.True(t, directive.IsKind(err, directive.KindInvalidInput))
}

func TestNeedsRevisionConsumesRequest(t *testing.T) {
	g, _, _ := newGate(t)
	wf := completedWorkflow("Build a page")
	req, err := g.Submit(context.Background(), wf, 1, "operator")
	require.NoError(t, err)

	_, err = g.Decide(context.Background(), req.ID, directive.ApprovalStatusNeedsRevision, "ceo", "tighten copy")
	require.NoError(t, err)

	// The revised workflow opens a fresh request.
	again, err := g.Submit(context.Background(), wf, 2, "operator")
	require.NoError(t, err)
	assert.NotEqual(t, req.ID, again.ID)
}

func TestEmergencyUnblockRequiresReason(t *testing.T) {
	g, _, _ := newGate(t)
	wf := completedWorkflow("Build a page")
	_, err := g.Submit(context.Background(), wf, 1, "operator")
	require.NoError(t, err)

	_, err = g.EmergencyUnblock(context.Background(), wf.ID, "admin", "  ")
	assert.True(t, directive.IsKind(err, directive.KindInvalidInput))
}

func TestEmergencyUnblockRecordsAudit(t *testing.T) {
	g, repo, bus := newGate(t)
	wf := completedWorkflow("Build a page")
	_, err := g.Submit(context.Background(), wf, 1, "operator")
	require.NoError(t, err)

	req, err := g.EmergencyUnblock(context.Background(), wf.ID, "admin", "executive unavailable, launch window closing")
	require.NoError(t, err)
	assert.Equal(t, directive.ApprovalStatusEmergencyApproved, req.Status)

	entries, err := repo.ListAudit(context.Background(), wf.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "emergency_unblock", entries[0].Action)
	assert.Equal(t, "admin", entries[0].Actor)

	require.Len(t, bus.OfType(event.EmergencyUnblock), 1)
}

func TestRulesetRiskLevels(t *testing.T) {
	rules := DefaultRuleset()

	tests := []struct {
		name        string
		directive   string
		hasSecurity bool
		want        string
	}{
		{"plain", "Build a landing page", false, "low"},
		{"donation no security", "Build a donation page", false, "high"},
		{"donation with security", "Build a donation page", true, "medium"},
		{"deploy", "Deploy the marketing site", false, "medium"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := completedWorkflow(tt.directive)
			if tt.hasSecurity {
				wf.Tasks = append(wf.Tasks, &directive.Task{
					ID: "task.x.9", Title: "Harden the site", Agent: "cipher",
					Status: directive.TaskStatusCompleted,
				})
			}
			summary := rules.Evaluate(wf, 1)
			assert.Equal(t, tt.want, summary.RiskLevel)
		})
	}
}

func TestRulesetFailurePenalty(t *testing.T) {
	rules := DefaultRuleset()
	wf := completedWorkflow("Build a page")
	wf.Tasks[2].Status = directive.TaskStatusFailed

	summary := rules.Evaluate(wf, 0)
	// base 60 + review 10 - failure 20; no completion or artifact bonus.
	assert.Equal(t, 50, summary.QualityScore)

	var failedCheck *directive.ComplianceCheck
	for i := range summary.Checks {
		if summary.Checks[i].Name == "no_failed_tasks" {
			failedCheck = &summary.Checks[i]
		}
	}
	require.NotNil(t, failedCheck)
	assert.False(t, failedCheck.Passed)
}

func TestLoadRulesetOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_score: 40\nfailure_penalty: 5\n"), 0o644))

	rules, err := LoadRuleset(path)
	require.NoError(t, err)
	assert.Equal(t, 40, rules.BaseScore)
	assert.Equal(t, 5, rules.FailurePenalty)
	// Untouched fields keep their defaults.
	assert.Equal(t, 10, rules.ReviewBonus)
}
