// Package artifact is the content-addressed lineage service. Every file an
// agent produces is recorded with its SHA-256, its producing workflow and
// task, and parent edges to the artifacts it was derived from. The
// in-memory indexes are authoritative; the repository holds the durable
// rows.
package artifact

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BradleyMatera/ShellCompany-sub002/directive"
	"github.com/BradleyMatera/ShellCompany-sub002/event"
	"github.com/BradleyMatera/ShellCompany-sub002/storage"
	"github.com/BradleyMatera/ShellCompany-sub002/workspace"
)

// maxContentSearchSize caps how much of a file the content search reads.
const maxContentSearchSize = 1 << 20

// Modification is one recorded change to an artifact after creation.
type Modification struct {
	TaskID     string    `json:"task_id,omitempty"`
	Agent      string    `json:"agent"`
	HashBefore string    `json:"hash_before"`
	HashAfter  string    `json:"hash_after"`
	SizeAfter  int64     `json:"size_after"`
	Timestamp  time.Time `json:"timestamp"`
}

// Artifact is a recorded output file with its lineage metadata.
type Artifact struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflow_id"`
	TaskID     string    `json:"task_id,omitempty"`
	Agent      string    `json:"agent"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Hash       string    `json:"hash"`
	Size       int64     `json:"size"`
	ParentIDs  []string  `json:"parent_ids,omitempty"`
	CreatedAt  time.Time `json:"created_at"`

	// Modifications is the append-only change history.
	Modifications []Modification `json:"modifications,omitempty"`
}

// Lineage is an artifact with its relatives resolved.
type Lineage struct {
	Artifact *Artifact `json:"artifact"`

	// Ancestors is the transitive parent chain, nearest first.
	Ancestors []*Artifact `json:"ancestors,omitempty"`

	// Descendants are the direct children.
	Descendants []*Artifact `json:"descendants,omitempty"`

	// Siblings share this artifact's content hash.
	Siblings []*Artifact `json:"siblings,omitempty"`
}

// RecordInput describes one file to record.
type RecordInput struct {
	WorkflowID string
	TaskID     string
	Agent      string
	// Path is absolute and must sit inside the agent's workspace.
	Path      string
	ParentIDs []string
}

// SearchQuery filters artifacts. Zero fields match everything.
type SearchQuery struct {
	WorkflowID       string
	Agent            string
	Name             string
	Hash             string
	ContentSubstring string
	CreatedAfter     time.Time
	Limit            int
}

// Report summarizes the artifact population.
type Report struct {
	Total       int            `json:"total"`
	ByAgent     map[string]int `json:"by_agent"`
	ByWorkflow  map[string]int `json:"by_workflow"`
	ByExtension map[string]int `json:"by_extension"`

	// OrphanIDs lists artifacts with no producing task recorded.
	OrphanIDs []string `json:"orphan_ids,omitempty"`
}

// Service owns artifact records and lineage edges.
type Service struct {
	mu         sync.RWMutex
	byID       map[string]*Artifact
	byWorkflow map[string][]string
	byHash     map[string][]string
	children   map[string][]string

	repo       storage.Repository
	workspaces *workspace.Manager
	bus        event.Bus
	clock      directive.Clock
	logger     *slog.Logger
}

// NewService creates the lineage service.
func NewService(repo storage.Repository, workspaces *workspace.Manager, bus event.Bus, clock directive.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = directive.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		byID:       make(map[string]*Artifact),
		byWorkflow: make(map[string][]string),
		byHash:     make(map[string][]string),
		children:   make(map[string][]string),
		repo:       repo,
		workspaces: workspaces,
		bus:        bus,
		clock:      clock,
		logger:     logger,
	}
}

// Record registers a produced file. The file must exist inside the
// producing agent's workspace and every parent must already be recorded.
// Identical content recorded twice yields two artifacts with the same hash.
func (s *Service) Record(ctx context.Context, in RecordInput) (*Artifact, error) {
	ws, err := s.workspaces.ForAgent(in.Agent)
	if err != nil {
		return nil, err
	}
	if !ws.Contains(in.Path) {
		return nil, directive.Errorf(directive.KindWorkspaceViolation,
			"artifact path %s is outside the %s workspace", in.Path, in.Agent)
	}

	data, err := os.ReadFile(in.Path)
	if err != nil {
		return nil, directive.Wrap(directive.KindInvalidInput, err, "read artifact file")
	}

	s.mu.Lock()
	for _, parentID := range in.ParentIDs {
		if _, ok := s.byID[parentID]; !ok {
			s.mu.Unlock()
			return nil, directive.Errorf(directive.KindInvalidInput, "unknown parent artifact %s", parentID)
		}
	}

	a := &Artifact{
		ID:         directive.NewArtifactID(),
		WorkflowID: in.WorkflowID,
		TaskID:     in.TaskID,
		Agent:      in.Agent,
		Name:       filepath.Base(in.Path),
		Path:       in.Path,
		Hash:       workspace.HashBytes(data),
		Size:       int64(len(data)),
		ParentIDs:  append([]string(nil), in.ParentIDs...),
		CreatedAt:  s.clock.Now(),
	}

	s.byID[a.ID] = a
	s.byWorkflow[a.WorkflowID] = append(s.byWorkflow[a.WorkflowID], a.ID)
	s.byHash[a.Hash] = append(s.byHash[a.Hash], a.ID)
	for _, parentID := range a.ParentIDs {
		s.children[parentID] = append(s.children[parentID], a.ID)
	}
	s.mu.Unlock()

	s.persist(ctx, a)
	s.bus.Publish(event.Event{
		Type:       event.ArtifactRecorded,
		WorkflowID: a.WorkflowID,
		TaskID:     a.TaskID,
		Agent:      a.Agent,
	}.WithData(map[string]any{"artifact_id": a.ID, "name": a.Name, "hash": a.Hash}))

	return s.copyOf(a), nil
}

// Update re-reads an artifact's file and appends a modification entry when
// the content changed.
func (s *Service) Update(ctx context.Context, artifactID, taskID, agentName string) (*Artifact, error) {
	s.mu.Lock()
	a, ok := s.byID[artifactID]
	if !ok {
		s.mu.Unlock()
		return nil, directive.Errorf(directive.KindInvalidInput, "unknown artifact %s", artifactID)
	}
	path, hashBefore := a.Path, a.Hash
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, directive.Wrap(directive.KindInvalidInput, err, "read artifact file")
	}
	hashAfter := workspace.HashBytes(data)
	if hashAfter == hashBefore {
		return s.Get(artifactID)
	}

	s.mu.Lock()
	// Reindex under the new hash.
	s.byHash[hashBefore] = remove(s.byHash[hashBefore], artifactID)
	s.byHash[hashAfter] = append(s.byHash[hashAfter], artifactID)
	a.Hash = hashAfter
	a.Size = int64(len(data))
	a.Modifications = append(a.Modifications, Modification{
		TaskID:     taskID,
		Agent:      agentName,
		HashBefore: hashBefore,
		HashAfter:  hashAfter,
		SizeAfter:  a.Size,
		Timestamp:  s.clock.Now(),
	})
	s.mu.Unlock()

	s.persist(ctx, a)
	s.bus.Publish(event.Event{
		Type:       event.ArtifactUpdated,
		WorkflowID: a.WorkflowID,
		TaskID:     taskID,
		Agent:      agentName,
	}.WithData(map[string]any{"artifact_id": a.ID, "hash_before": hashBefore, "hash_after": hashAfter}))

	return s.Get(artifactID)
}

// Get returns a copy of an artifact.
func (s *Service) Get(artifactID string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[artifactID]
	if !ok {
		return nil, directive.Errorf(directive.KindInvalidInput, "unknown artifact %s", artifactID)
	}
	return s.copyOf(a), nil
}

// GetWithLineage resolves the full ancestor chain, direct descendants, and
// hash siblings of an artifact.
func (s *Service) GetWithLineage(artifactID string) (*Lineage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[artifactID]
	if !ok {
		return nil, directive.Errorf(directive.KindInvalidInput, "unknown artifact %s", artifactID)
	}

	l := &Lineage{Artifact: s.copyOf(a)}

	// Breadth-first up the parent edges, nearest ancestors first.
	seen := map[string]bool{a.ID: true}
	queue := append([]string(nil), a.ParentIDs...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := s.byID[id]; ok {
			l.Ancestors = append(l.Ancestors, s.copyOf(p))
			queue = append(queue, p.ParentIDs...)
		}
	}

	for _, id := range s.children[a.ID] {
		l.Descendants = append(l.Descendants, s.copyOf(s.byID[id]))
	}
	for _, id := range s.byHash[a.Hash] {
		if id != a.ID {
			l.Siblings = append(l.Siblings, s.copyOf(s.byID[id]))
		}
	}
	return l, nil
}

// Search filters artifacts. Content matching reads the file from disk and
// skips files larger than 1 MiB.
func (s *Service) Search(q SearchQuery) []*Artifact {
	s.mu.RLock()
	candidates := make([]*Artifact, 0, len(s.byID))
	for _, a := range s.byID {
		candidates = append(candidates, a)
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	var out []*Artifact
	for _, a := range candidates {
		if q.WorkflowID != "" && a.WorkflowID != q.WorkflowID {
			continue
		}
		if q.Agent != "" && !strings.EqualFold(a.Agent, q.Agent) {
			continue
		}
		if q.Name != "" && !strings.Contains(strings.ToLower(a.Name), strings.ToLower(q.Name)) {
			continue
		}
		if q.Hash != "" && a.Hash != q.Hash {
			continue
		}
		if !q.CreatedAfter.IsZero() && !a.CreatedAt.After(q.CreatedAfter) {
			continue
		}
		if q.ContentSubstring != "" && !s.contentMatches(a, q.ContentSubstring) {
			continue
		}
		out = append(out, s.copyOf(a))
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}

func (s *Service) contentMatches(a *Artifact, substring string) bool {
	if a.Size > maxContentSearchSize {
		return false
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), substring)
}

// ReadContent returns an artifact's current bytes from disk.
func (s *Service) ReadContent(artifactID string) ([]byte, error) {
	a, err := s.Get(artifactID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, directive.Wrap(directive.KindInvalidInput, err, "read artifact file")
	}
	return data, nil
}

// ForWorkflow returns all artifacts recorded for a workflow, oldest first.
func (s *Service) ForWorkflow(workflowID string) []*Artifact {
	return s.Search(SearchQuery{WorkflowID: workflowID})
}

// BuildReport summarizes the artifact population. A workflowID narrows the
// report; empty covers everything.
func (s *Service) BuildReport(workflowID string) *Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := &Report{
		ByAgent:     make(map[string]int),
		ByWorkflow:  make(map[string]int),
		ByExtension: make(map[string]int),
	}
	for _, a := range s.byID {
		if workflowID != "" && a.WorkflowID != workflowID {
			continue
		}
		r.Total++
		r.ByAgent[a.Agent]++
		r.ByWorkflow[a.WorkflowID]++
		ext := strings.ToLower(filepath.Ext(a.Name))
		if ext == "" {
			ext = "(none)"
		}
		r.ByExtension[ext]++
		if a.TaskID == "" {
			r.OrphanIDs = append(r.OrphanIDs, a.ID)
		}
	}
	sort.Strings(r.OrphanIDs)
	return r
}

// persist writes the durable row. Persistence failures are logged and do
// not fail the recording; the in-memory record stays authoritative.
func (s *Service) persist(ctx context.Context, a *Artifact) {
	row := &storage.ArtifactRow{
		ID:         a.ID,
		WorkflowID: a.WorkflowID,
		TaskID:     a.TaskID,
		Agent:      a.Agent,
		Name:       a.Name,
		Path:       a.Path,
		Hash:       a.Hash,
		Size:       a.Size,
		CreatedAt:  a.CreatedAt,
	}
	if err := s.repo.SaveArtifact(ctx, row); err != nil {
		s.logger.Warn("artifact persistence failed",
			"artifact_id", a.ID, "error", err)
	}
}

func (s *Service) copyOf(a *Artifact) *Artifact {
	c := *a
	c.ParentIDs = append([]string(nil), a.ParentIDs...)
	c.Modifications = append([]Modification(nil), a.Modifications...)
	return &c
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
