// Package storage provides durable persistence for workflows, artifacts,
// approvals, and audit entries. The orchestration core sees only the
// Repository interface; NATS KV backs the production implementation.
package storage

import (
	"context"
	"time"

	"github.com/BradleyMatera/ShellCompany-sub002/directive"
)

// ArtifactRow is the persisted form of an artifact. The lineage service
// keeps the rich in-memory representation; rows carry the durable fields.
type ArtifactRow struct {
	// ID is the artifact identifier.
	ID string `json:"id"`

	// WorkflowID is the producing workflow.
	WorkflowID string `json:"workflow_id"`

	// TaskID is the producing task. Empty for orphaned artifacts.
	TaskID string `json:"task_id,omitempty"`

	// Agent is the owning agent.
	Agent string `json:"agent"`

	// Name is the logical file name.
	Name string `json:"name"`

	// Path is the canonical absolute path inside the agent workspace.
	Path string `json:"path"`

	// Hash is the SHA-256 hex digest of the current content.
	Hash string `json:"hash"`

	// Size is the content size in bytes.
	Size int64 `json:"size"`

	// CreatedAt is when the artifact was first recorded.
	CreatedAt time.Time `json:"created_at"`
}

// ArtifactCriteria filters artifact queries. Zero-value fields match all.
type ArtifactCriteria struct {
	WorkflowID   string
	Agent        string
	Name         string
	Hash         string
	CreatedAfter time.Time
}

// AuditEntry is one append-only audit record.
type AuditEntry struct {
	// Actor identifies who performed the action.
	Actor string `json:"actor"`

	// Action names what happened.
	Action string `json:"action"`

	// TargetKind is the entity kind acted on (workflow, artifact, approval).
	TargetKind string `json:"target_kind"`

	// TargetID is the entity identifier.
	TargetID string `json:"target_id"`

	// Metadata carries free-form context.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Source is the request origin (ip, subject, component name).
	Source string `json:"source,omitempty"`

	// Timestamp is when the action occurred.
	Timestamp time.Time `json:"timestamp"`
}

// WorkflowFilter narrows ListWorkflows. Zero-value fields match all.
type WorkflowFilter struct {
	Status directive.Status
	Limit  int
}

// Repository is the durable storage contract consumed by the orchestration
// core. Implementations classify failures as retriable or terminal via the
// directive error kinds; writes are idempotent by primary key.
type Repository interface {
	SaveWorkflow(ctx context.Context, w *directive.Workflow) error
	LoadWorkflow(ctx context.Context, id string) (*directive.Workflow, error)
	ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*directive.Workflow, error)

	SaveArtifact(ctx context.Context, a *ArtifactRow) error
	LoadArtifact(ctx context.Context, id string) (*ArtifactRow, error)
	QueryArtifacts(ctx context.Context, criteria ArtifactCriteria) ([]*ArtifactRow, error)

	SaveApproval(ctx context.Context, r *directive.ApprovalRequest) error
	LoadApproval(ctx context.Context, workflowID string) (*directive.ApprovalRequest, error)

	AppendAudit(ctx context.Context, entry *AuditEntry) error
	ListAudit(ctx context.Context, targetID string) ([]*AuditEntry, error)
}
