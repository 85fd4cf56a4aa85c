package approval

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/BradleyMatera/ShellCompany-sub002/directive"
	"github.com/BradleyMatera/ShellCompany-sub002/event"
	"github.com/BradleyMatera/ShellCompany-sub002/storage"
)

// Gate owns executive approval requests. One request exists per workflow
// submission; a needs_revision decision consumes the request, and the
// revised workflow submits a fresh one.
type Gate struct {
	mu         sync.Mutex
	byID       map[string]*directive.ApprovalRequest
	byWorkflow map[string]string // workflow ID -> latest request ID

	rules  *Ruleset
	repo   storage.Repository
	bus    event.Bus
	clock  directive.Clock
	logger *slog.Logger
}

// NewGate creates the approval gate.
func NewGate(rules *Ruleset, repo storage.Repository, bus event.Bus, clock directive.Clock, logger *slog.Logger) *Gate {
	if rules == nil {
		rules = DefaultRuleset()
	}
	if clock == nil {
		clock = directive.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		byID:       make(map[string]*directive.ApprovalRequest),
		byWorkflow: make(map[string]string),
		rules:      rules,
		repo:       repo,
		bus:        bus,
		clock:      clock,
		logger:     logger,
	}
}

// Evaluate runs the ruleset over a workflow without opening a request.
// The manager review uses this to build its notes.
func (g *Gate) Evaluate(wf *directive.Workflow, artifactCount int) directive.ApprovalSummary {
	return g.rules.Evaluate(wf, artifactCount)
}

// Submit evaluates the workflow against the ruleset and opens a pending
// approval request for it.
func (g *Gate) Submit(ctx context.Context, wf *directive.Workflow, artifactCount int, submitter string) (*directive.ApprovalRequest, error) {
	g.mu.Lock()
	if id, ok := g.byWorkflow[wf.ID]; ok {
		if existing := g.byID[id]; existing != nil && existing.Status == directive.ApprovalStatusPending {
			g.mu.Unlock()
			return nil, directive.Errorf(directive.KindApprovalBlocked,
				"workflow %s already has a pending approval request", wf.ID)
		}
	}

	req := &directive.ApprovalRequest{
		ID:          directive.NewApprovalID(),
		WorkflowID:  wf.ID,
		Submitter:   submitter,
		Summary:     g.rules.Evaluate(wf, artifactCount),
		Status:      directive.ApprovalStatusPending,
		SubmittedAt: g.clock.Now(),
	}
	g.byID[req.ID] = req
	g.byWorkflow[wf.ID] = req.ID
	g.mu.Unlock()

	g.persist(ctx, req)
	g.bus.Publish(event.Event{
		Type:       event.ApprovalRequested,
		WorkflowID: wf.ID,
	}.WithData(map[string]any{
		"request_id":    req.ID,
		"quality_score": req.Summary.QualityScore,
		"risk_level":    req.Summary.RiskLevel,
	}))

	g.logger.Info("approval requested",
		"workflow_id", wf.ID,
		"request_id", req.ID,
		"quality_score", req.Summary.QualityScore,
		"risk_level", req.Summary.RiskLevel)
	return copyRequest(req), nil
}

// Get returns a request by ID.
func (g *Gate) Get(requestID string) (*directive.ApprovalRequest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.byID[requestID]
	if !ok {
		return nil, directive.Errorf(directive.KindInvalidInput, "unknown approval request %s", requestID)
	}
	return copyRequest(req), nil
}

// ForWorkflow returns the latest request for a workflow.
func (g *Gate) ForWorkflow(workflowID string) (*directive.ApprovalRequest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.byWorkflow[workflowID]
	if !ok {
		return nil, directive.Errorf(directive.KindInvalidInput, "no approval request for workflow %s", workflowID)
	}
	return copyRequest(g.byID[id]), nil
}

// Decide records an executive decision on a pending request. Valid
// decisions are approved, rejected, and needs_revision; anything else, or a
// second decision on the same request, is rejected as invalid input.
func (g *Gate) Decide(ctx context.Context, requestID string, decision directive.ApprovalStatus, approver, comments string) (*directive.ApprovalRequest, error) {
	switch decision {
	case directive.ApprovalStatusApproved, directive.ApprovalStatusRejected, directive.ApprovalStatusNeedsRevision:
	default:
		return nil, directive.Errorf(directive.KindInvalidInput, "invalid decision %q", decision)
	}

	g.mu.Lock()
	req, ok := g.byID[requestID]
	if !ok {
		g.mu.Unlock()
		return nil, directive.Errorf(directive.KindInvalidInput, "unknown approval request %s", requestID)
	}
	if req.Status != directive.ApprovalStatusPending {
		g.mu.Unlock()
		return nil, directive.Errorf(directive.KindInvalidInput,
			"approval request %s already decided (%s)", requestID, req.Status)
	}

	now := g.clock.Now()
	req.Status = decision
	req.Approver = approver
	req.Comments = comments
	req.DecidedAt = &now
	g.mu.Unlock()

	g.persist(ctx, req)
	if err := g.repo.AppendAudit(ctx, &storage.AuditEntry{
		Actor:      approver,
		Action:     "approval_decision",
		TargetKind: "workflow",
		TargetID:   req.WorkflowID,
		Metadata:   map[string]any{"request_id": req.ID, "decision": string(decision), "comments": comments},
		Source:     "approval-gate",
		Timestamp:  now,
	}); err != nil {
		g.logger.Warn("audit append failed", "workflow_id", req.WorkflowID, "error", err)
	}
	g.bus.Publish(event.Event{
		Type:       event.ApprovalDecision,
		WorkflowID: req.WorkflowID,
	}.WithData(map[string]any{
		"request_id": req.ID,
		"decision":   string(decision),
		"approver":   approver,
	}))

	g.logger.Info("approval decided",
		"workflow_id", req.WorkflowID,
		"request_id", req.ID,
		"decision", decision,
		"approver", approver)
	return copyRequest(req), nil
}

// EmergencyUnblock force-approves a workflow's pending request. The reason
// is mandatory and the action leaves an audit record.
func (g *Gate) EmergencyUnblock(ctx context.Context, workflowID, approver, reason string) (*directive.ApprovalRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, directive.Errorf(directive.KindInvalidInput, "emergency unblock requires a reason")
	}

	g.mu.Lock()
	id, ok := g.byWorkflow[workflowID]
	if !ok {
		g.mu.Unlock()
		return nil, directive.Errorf(directive.KindInvalidInput, "no approval request for workflow %s", workflowID)
	}
	req := g.byID[id]
	if req.Status != directive.ApprovalStatusPending {
		g.mu.Unlock()
		return nil, directive.Errorf(directive.KindInvalidInput,
			"approval request %s already decided (%s)", req.ID, req.Status)
	}

	now := g.clock.Now()
	req.Status = directive.ApprovalStatusEmergencyApproved
	req.Approver = approver
	req.Comments = reason
	req.DecidedAt = &now
	g.mu.Unlock()

	g.persist(ctx, req)
	if err := g.repo.AppendAudit(ctx, &storage.AuditEntry{
		Actor:      approver,
		Action:     "emergency_unblock",
		TargetKind: "workflow",
		TargetID:   workflowID,
		Metadata:   map[string]any{"request_id": req.ID, "reason": reason},
		Source:     "approval-gate",
		Timestamp:  now,
	}); err != nil {
		g.logger.Warn("audit append failed", "workflow_id", workflowID, "error", err)
	}

	g.bus.Publish(event.Event{
		Type:       event.EmergencyUnblock,
		WorkflowID: workflowID,
	}.WithData(map[string]any{"request_id": req.ID, "approver": approver, "reason": reason}))

	g.logger.Warn("emergency unblock",
		"workflow_id", workflowID,
		"request_id", req.ID,
		"approver", approver,
		"reason", reason)
	return copyRequest(req), nil
}

func (g *Gate) persist(ctx context.Context, req *directive.ApprovalRequest) {
	if err := g.repo.SaveApproval(ctx, req); err != nil {
		g.logger.Warn("approval persistence failed", "request_id", req.ID, "error", err)
	}
}

func copyRequest(req *directive.ApprovalRequest) *directive.ApprovalRequest {
	c := *req
	c.Summary.Checks = append([]directive.ComplianceCheck(nil), req.Summary.Checks...)
	if req.DecidedAt != nil {
		t := *req.DecidedAt
		c.DecidedAt = &t
	}
	return &c
}
