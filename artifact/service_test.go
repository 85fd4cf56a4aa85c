package artifact

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradleyMatera/ShellCompany-sub002/directive"
	"github.com/BradleyMatera/ShellCompany-sub002/event"
	"github.com/BradleyMatera/ShellCompany-sub002/storage"
	"github.com/BradleyMatera/ShellCompany-sub002/workspace"
)

type fixture struct {
	svc   *Service
	ws    *workspace.Manager
	repo  *storage.Memory
	bus   *event.Capture
	clock *directive.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ws, err := workspace.NewManager(t.TempDir())
	require.NoError(t, err)
	repo := storage.NewMemory()
	bus := event.NewCapture()
	clock := &directive.FakeClock{Current: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return &fixture{
		svc:   NewService(repo, ws, bus, clock, nil),
		ws:    ws,
		repo:  repo,
		bus:   bus,
		clock: clock,
	}
}

func (f *fixture) writeFile(t *testing.T, agentName, rel string, content string) string {
	t.Helper()
	ws, err := f.ws.ForAgent(agentName)
	require.NoError(t, err)
	abs, err := ws.WriteFile(rel, []byte(content))
	require.NoError(t, err)
	return abs
}

func TestRecordHashesContent(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "nova", "index.html", "<html></html>")

	a, err := f.svc.Record(context.Background(), RecordInput{
		WorkflowID: "wf-1", TaskID: "task.x.1", Agent: "nova", Path: path,
	})
	require.NoError(t, err)

	assert.Equal(t, workspace.HashBytes([]byte("<html></html>")), a.Hash)
	assert.Equal(t, "index.html", a.Name)
	assert.Equal(t, int64(13), a.Size)

	// Durable row was written alongside.
	row, err := f.repo.LoadArtifact(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Hash, row.Hash)

	events := f.bus.OfType(event.ArtifactRecorded)
	require.Len(t, events, 1)
	assert.Equal(t, "wf-1", events[0].WorkflowID)
}

func TestRecordRejectsOutsideWorkspace(t *testing.T) {
	f := newFixture(t)
	outside := filepath.Join(t.TempDir(), "escape.txt")

	_, err := f.svc.Record(context.Background(), RecordInput{
		WorkflowID: "wf-1", Agent: "nova", Path: outside,
	})
	require.Error(t, err)
	assert.True(t, directive.IsKind(err, directive.KindWorkspaceViolation))
}

func TestRecordRejectsUnknownParent(t *testing.T) {
	f := newFixture(t)
	path := f.writeFile(t, "nova", "a.txt", "a")

	_, err := f.svc.Record(context.Background(), RecordInput{
		WorkflowID: "wf-1", Agent: "nova", Path: path, ParentIDs: []string{"art-missing"},
	})
	require.Error(t, err)
	assert.True(t, directive.IsKind(err, directive.KindInvalidInput))
}

func TestIdenticalContentGetsDistinctArtifacts(t *testing.T) {
	f := newFixture(t)
	p1 := f.writeFile(t, "nova", "a.txt", "same")
	p2 := f.writeFile(t, "nova", "b.txt", "same")

	a1, err := f.svc.Record(context.Background(), RecordInput{WorkflowID: "wf-1", TaskID: "t1", Agent: "nova", Path: p1})
	require.NoError(t, err)
	a2, err := f.svc.Record(context.Background(), RecordInput{WorkflowID: "wf-1", TaskID: "t1", Agent: "nova", Path: p2})
	require.NoError(t, err)

	assert.NotEqual(t, a1.ID, a2.ID)
	assert.Equal(t, a1.Hash, a2.Hash)

	// Records with the same hash surface as siblings.
	l, err := f.svc.GetWithLineage(a1.ID)
	require.NoError(t, err)
	require.Len(t, l.Siblings, 1)
	assert.Equal(t, a2.ID, l.Siblings[0].ID)
}

func TestLineageAncestryAndDescendants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pRoot := f.writeFile(t, "pixel", "DESIGN_NOTES.md", "notes")
	pMid := f.writeFile(t, "nova", "index.html", "<html>")
	pLeaf := f.writeFile(t, "zephyr", "donate.js", "js")

	root, err := f.svc.Record(ctx, RecordInput{WorkflowID: "wf-1", TaskID: "t1", Agent: "pixel", Path: pRoot})
	require.NoError(t, err)
	mid, err := f.svc.Record(ctx, RecordInput{WorkflowID: "wf-1", TaskID: "t2", Agent: "nova", Path: pMid, ParentIDs: []string{root.ID}})
	require.NoError(t, err)
	leaf, err := f.svc.Record(ctx, RecordInput{WorkflowID: "wf-1", TaskID: "t3", Agent: "zephyr", Path: pLeaf, ParentIDs: []string{mid.ID}})
	require.NoError(t, err)

	l, err := f.svc.GetWithLineage(leaf.ID)
	require.NoError(t, err)
	require.Len(t, l.Ancestors, 2)
	assert.Equal(t, mid.ID, l.Ancestors[0].ID)
	assert.Equal(t, root.ID, l.Ancestors[1].ID)

	l, err = f.svc.GetWithLineage(mid.ID)
	require.NoError(t, err)
	require.Len(t, l.Descendants, 1)
	assert.Equal(t, leaf.ID, l.Descendants[0].ID)
}

func TestUpdateAppendsModification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.writeFile(t, "nova", "index.html", "v1")

	a, err := f.svc.Record(ctx, RecordInput{WorkflowID: "wf-1", TaskID: "t1", Agent: "nova", Path: path})
	require.NoError(t, err)
	hashBefore := a.Hash

	f.writeFile(t, "nova", "index.html", "v2")
	f.clock.Advance(time.Minute)

	updated, err := f.svc.Update(ctx, a.ID, "t2", "nova")
	require.NoError(t, err)
	require.Len(t, updated.Modifications, 1)
	mod := updated.Modifications[0]
	assert.Equal(t, hashBefore, mod.HashBefore)
	assert.Equal(t, updated.Hash, mod.HashAfter)
	assert.NotEqual(t, hashBefore, updated.Hash)

	require.Len(t, f.bus.OfType(event.ArtifactUpdated), 1)
}

func TestUpdateUnchangedContentIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.writeFile(t, "nova", "index.html", "v1")

	a, err := f.svc.Record(ctx, RecordInput{WorkflowID: "wf-1", Agent: "nova", Path: path})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, a.ID, "t2", "nova")
	require.NoError(t, err)
	assert.Empty(t, updated.Modifications)
	assert.Empty(t, f.bus.OfType(event.ArtifactUpdated))
}

func TestSearchFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p1 := f.writeFile(t, "nova", "index.html", "<h1>charity drive</h1>")
	p2 := f.writeFile(t, "pixel", "notes.md", "palette")

	_, err := f.svc.Record(ctx, RecordInput{WorkflowID: "wf-1", TaskID: "t1", Agent: "nova", Path: p1})
	require.NoError(t, err)
	_, err = f.svc.Record(ctx, RecordInput{WorkflowID: "wf-2", TaskID: "t2", Agent: "pixel", Path: p2})
	require.NoError(t, err)

	assert.Len(t, f.svc.Search(SearchQuery{WorkflowID: "wf-1"}), 1)
	assert.Len(t, f.svc.Search(SearchQuery{Agent: "PIXEL"}), 1)
	assert.Len(t, f.svc.Search(SearchQuery{Name: ".html"}), 1)
	assert.Len(t, f.svc.Search(SearchQuery{ContentSubstring: "charity"}), 1)
	assert.Len(t, f.svc.Search(SearchQuery{}), 2)
	assert.Len(t, f.svc.Search(SearchQuery{Limit: 1}), 1)
}

func TestReportCountsAndOrphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p1 := f.writeFile(t, "nova", "index.html", "a")
	p2 := f.writeFile(t, "nova", "stray.txt", "b")

	_, err := f.svc.Record(ctx, RecordInput{WorkflowID: "wf-1", TaskID: "t1", Agent: "nova", Path: p1})
	require.NoError(t, err)
	orphan, err := f.svc.Record(ctx, RecordInput{WorkflowID: "wf-1", Agent: "nova", Path: p2})
	require.NoError(t, err)

	r := f.svc.BuildReport("")
	assert.Equal(t, 2, r.Total)
	assert.Equal(t, 2, r.ByAgent["nova"])
	assert.Equal(t, 1, r.ByExtension[".html"])
	assert.Equal(t, []string{orphan.ID}, r.OrphanIDs)
}
