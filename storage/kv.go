package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/BradleyMatera/ShellCompany-sub002/directive"
)

// Bucket names for each entity kind.
const (
	BucketWorkflows = "COMPANY_WORKFLOWS"
	BucketArtifacts = "COMPANY_ARTIFACTS"
	BucketApprovals = "COMPANY_APPROVALS"
	BucketAudit     = "COMPANY_AUDIT"
)

// KVRepository is a Repository backed by NATS JetStream KV buckets.
type KVRepository struct {
	workflows jetstream.KeyValue
	artifacts jetstream.KeyValue
	approvals jetstream.KeyValue
	audit     jetstream.KeyValue
}

// NewKVRepository creates a KVRepository, creating buckets as needed.
func NewKVRepository(ctx context.Context, js jetstream.JetStream) (*KVRepository, error) {
	workflows, err := getOrCreateBucket(ctx, js, BucketWorkflows)
	if err != nil {
		return nil, fmt.Errorf("create workflows bucket: %w", err)
	}

	artifacts, err := getOrCreateBucket(ctx, js, BucketArtifacts)
	if err != nil {
		return nil, fmt.Errorf("create artifacts bucket: %w", err)
	}

	approvals, err := getOrCreateBucket(ctx, js, BucketApprovals)
	if err != nil {
		return nil, fmt.Errorf("create approvals bucket: %w", err)
	}

	audit, err := getOrCreateBucket(ctx, js, BucketAudit)
	if err != nil {
		return nil, fmt.Errorf("create audit bucket: %w", err)
	}

	return &KVRepository{
		workflows: workflows,
		artifacts: artifacts,
		approvals: approvals,
		audit:     audit,
	}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("ShellCompany %s storage", strings.ToLower(strings.TrimPrefix(name, "COMPANY_"))),
		History:     5,
	})
}

// SaveWorkflow implements Repository.
func (r *KVRepository) SaveWorkflow(ctx context.Context, w *directive.Workflow) error {
	data, err := json.Marshal(w)
	if err != nil {
		return Terminal(err, "marshal workflow")
	}
	if _, err := r.workflows.Put(ctx, w.ID, data); err != nil {
		return Transient(err, "store workflow")
	}
	return nil
}

// LoadWorkflow implements Repository.
func (r *KVRepository) LoadWorkflow(ctx context.Context, id string) (*directive.Workflow, error) {
	entry, err := r.workflows.Get(ctx, id)
	if err != nil {
		if isNotFoundKV(err) {
			return nil, ErrNotFound
		}
		return nil, Transient(err, "get workflow")
	}

	var w directive.Workflow
	if err := json.Unmarshal(entry.Value(), &w); err != nil {
		return nil, Terminal(err, "unmarshal workflow")
	}
	return &w, nil
}

// ListWorkflows implements Repository. Results are newest-first.
func (r *KVRepository) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*directive.Workflow, error) {
	keys, err := r.workflows.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, Transient(err, "list workflow keys")
	}

	workflows := make([]*directive.Workflow, 0, len(keys))
	for _, key := range keys {
		entry, err := r.workflows.Get(ctx, key)
		if err != nil {
			continue // Skip entries that fail to load
		}
		var w directive.Workflow
		if err := json.Unmarshal(entry.Value(), &w); err != nil {
			continue
		}
		if filter.Status != "" && w.Status != filter.Status {
			continue
		}
		workflows = append(workflows, &w)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].StartedAt.After(workflows[j].StartedAt)
	})
	if filter.Limit > 0 && len(workflows) > filter.Limit {
		workflows = workflows[:filter.Limit]
	}
	return workflows, nil
}

// SaveArtifact implements Repository.
func (r *KVRepository) SaveArtifact(ctx context.Context, a *ArtifactRow) error {
	data, err := json.Marshal(a)
	if err != nil {
		return Terminal(err, "marshal artifact")
	}
	if _, err := r.artifacts.Put(ctx, a.ID, data); err != nil {
		return Transient(err, "store artifact")
	}
	return nil
}

// LoadArtifact implements Repository.
func (r *KVRepository) LoadArtifact(ctx context.Context, id string) (*ArtifactRow, error) {
	entry, err := r.artifacts.Get(ctx, id)
	if err != nil {
		if isNotFoundKV(err) {
			return nil, ErrNotFound
		}
		return nil, Transient(err, "get artifact")
	}

	var a ArtifactRow
	if err := json.Unmarshal(entry.Value(), &a); err != nil {
		return nil, Terminal(err, "unmarshal artifact")
	}
	return &a, nil
}

// QueryArtifacts implements Repository.
func (r *KVRepository) QueryArtifacts(ctx context.Context, criteria ArtifactCriteria) ([]*ArtifactRow, error) {
	keys, err := r.artifacts.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, Transient(err, "list artifact keys")
	}

	rows := make([]*ArtifactRow, 0, len(keys))
	for _, key := range keys {
		entry, err := r.artifacts.Get(ctx, key)
		if err != nil {
			continue
		}
		var a ArtifactRow
		if err := json.Unmarshal(entry.Value(), &a); err != nil {
			continue
		}
		if matchesCriteria(&a, criteria) {
			rows = append(rows, &a)
		}
	}
	return rows, nil
}

func matchesCriteria(a *ArtifactRow, c ArtifactCriteria) bool {
	if c.WorkflowID != "" && a.WorkflowID != c.WorkflowID {
		return false
	}
	if c.Agent != "" && a.Agent != c.Agent {
		return false
	}
	if c.Name != "" && a.Name != c.Name {
		return false
	}
	if c.Hash != "" && a.Hash != c.Hash {
		return false
	}
	if !c.CreatedAfter.IsZero() && !a.CreatedAt.After(c.CreatedAfter) {
		return false
	}
	return true
}

// SaveApproval implements Repository. Approvals are keyed by workflow ID: a
// workflow carries at most one live approval request.
func (r *KVRepository) SaveApproval(ctx context.Context, req *directive.ApprovalRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return Terminal(err, "marshal approval")
	}
	if _, err := r.approvals.Put(ctx, req.WorkflowID, data); err != nil {
		return Transient(err, "store approval")
	}
	return nil
}

// LoadApproval implements Repository.
func (r *KVRepository) LoadApproval(ctx context.Context, workflowID string) (*directive.ApprovalRequest, error) {
	entry, err := r.approvals.Get(ctx, workflowID)
	if err != nil {
		if isNotFoundKV(err) {
			return nil, ErrNotFound
		}
		return nil, Transient(err, "get approval")
	}

	var req directive.ApprovalRequest
	if err := json.Unmarshal(entry.Value(), &req); err != nil {
		return nil, Terminal(err, "unmarshal approval")
	}
	return &req, nil
}

// AppendAudit implements Repository. Entries are keyed by a fresh UUID so
// the bucket behaves append-only.
func (r *KVRepository) AppendAudit(ctx context.Context, entry *AuditEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return Terminal(err, "marshal audit entry")
	}
	key := fmt.Sprintf("%s.%s", entry.TargetID, uuid.New().String()[:8])
	if _, err := r.audit.Create(ctx, key, data); err != nil {
		return Transient(err, "store audit entry")
	}
	return nil
}

// ListAudit implements Repository. Entries are returned oldest-first.
func (r *KVRepository) ListAudit(ctx context.Context, targetID string) ([]*AuditEntry, error) {
	keys, err := r.audit.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, Transient(err, "list audit keys")
	}

	entries := make([]*AuditEntry, 0)
	for _, key := range keys {
		if targetID != "" && !strings.HasPrefix(key, targetID+".") {
			continue
		}
		kvEntry, err := r.audit.Get(ctx, key)
		if err != nil {
			continue
		}
		var e AuditEntry
		if err := json.Unmarshal(kvEntry.Value(), &e); err != nil {
			continue
		}
		entries = append(entries, &e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}
