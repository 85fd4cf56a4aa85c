package storage

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/BradleyMatera/ShellCompany-sub002/directive"
)

// Memory is an in-process Repository used by tests and single-node runs.
// Workflows are stored as JSON to mirror the serialization behavior of the
// KV implementation.
type Memory struct {
	mu        sync.Mutex
	workflows map[string][]byte
	artifacts map[string]*ArtifactRow
	approvals map[string]*directive.ApprovalRequest
	audit     []*AuditEntry

	// FailSaves makes the next N SaveWorkflow calls fail with a transient
	// error. Tests use it to exercise the retry path.
	FailSaves int
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		workflows: make(map[string][]byte),
		artifacts: make(map[string]*ArtifactRow),
		approvals: make(map[string]*directive.ApprovalRequest),
	}
}

// SaveWorkflow implements Repository.
func (m *Memory) SaveWorkflow(_ context.Context, w *directive.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves > 0 {
		m.FailSaves--
		return Transient(ErrNotFound, "injected save failure")
	}
	data, err := json.Marshal(w)
	if err != nil {
		return Terminal(err, "marshal workflow")
	}
	m.workflows[w.ID] = data
	return nil
}

// LoadWorkflow implements Repository.
func (m *Memory) LoadWorkflow(_ context.Context, id string) (*directive.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	var w directive.Workflow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, Terminal(err, "unmarshal workflow")
	}
	return &w, nil
}

// ListWorkflows implements Repository. Results are newest-first.
func (m *Memory) ListWorkflows(_ context.Context, filter WorkflowFilter) ([]*directive.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*directive.Workflow, 0, len(m.workflows))
	for _, data := range m.workflows {
		var w directive.Workflow
		if err := json.Unmarshal(data, &w); err != nil {
			continue
		}
		if filter.Status != "" && w.Status != filter.Status {
			continue
		}
		out = append(out, &w)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// SaveArtifact implements Repository.
func (m *Memory) SaveArtifact(_ context.Context, a *ArtifactRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.artifacts[a.ID] = &cp
	return nil
}

// LoadArtifact implements Repository.
func (m *Memory) LoadArtifact(_ context.Context, id string) (*ArtifactRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.artifacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// QueryArtifacts implements Repository.
func (m *Memory) QueryArtifacts(_ context.Context, criteria ArtifactCriteria) ([]*ArtifactRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ArtifactRow, 0)
	for _, a := range m.artifacts {
		if matchesCriteria(a, criteria) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveApproval implements Repository.
func (m *Memory) SaveApproval(_ context.Context, req *directive.ApprovalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *req
	m.approvals[req.WorkflowID] = &cp
	return nil
}

// LoadApproval implements Repository.
func (m *Memory) LoadApproval(_ context.Context, workflowID string) (*directive.ApprovalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.approvals[workflowID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *req
	return &cp, nil
}

// AppendAudit implements Repository.
func (m *Memory) AppendAudit(_ context.Context, entry *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.audit = append(m.audit, &cp)
	return nil
}

// ListAudit implements Repository.
func (m *Memory) ListAudit(_ context.Context, targetID string) ([]*AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*AuditEntry, 0)
	for _, e := range m.audit {
		if targetID != "" && e.TargetID != targetID && !strings.HasPrefix(e.TargetID, targetID) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}
