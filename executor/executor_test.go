package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradleyMatera/ShellCompany-sub002/artifact"
	"github.com/BradleyMatera/ShellCompany-sub002/directive"
	"github.com/BradleyMatera/ShellCompany-sub002/event"
	"github.com/BradleyMatera/ShellCompany-sub002/storage"
	"github.com/BradleyMatera/ShellCompany-sub002/workspace"
)

type fixture struct {
	exec *Executor
	arts *artifact.Service
	bus  *event.Capture
}

func newFixture(t *testing.T, agentName string) *fixture {
	t.Helper()
	manager, err := workspace.NewManager(t.TempDir())
	require.NoError(t, err)
	ws, err := manager.ForAgent(agentName)
	require.NoError(t, err)

	bus := event.NewCapture()
	arts := artifact.NewService(storage.NewMemory(), manager, bus, nil, nil)
	return &fixture{
		exec: New(ws, arts, bus, nil, nil),
		arts: arts,
		bus:  bus,
	}
}

func novaTask(id string, commands ...string) *directive.Task {
	return &directive.Task{
		ID:       id,
		Agent:    "nova",
		Commands: commands,
		Status:   directive.TaskStatusRunning,
	}
}

func TestExecuteRecordsProducedFiles(t *testing.T) {
	f := newFixture(t, "nova")
	task := novaTask("task.site.1",
		"printf '%s' '<html></html>' > index.html",
		"printf '%s' 'body{}' > styles.css",
	)

	result := f.exec.Execute(context.Background(), "wf-1", task)
	require.Equal(t, directive.TaskStatusCompleted, result.Status)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, 0, result.Steps[0].ExitCode)
	require.Len(t, result.ArtifactIDs, 2)

	// Artifacts are registered with hashes before the result returns.
	for _, id := range result.ArtifactIDs {
		a, err := f.arts.Get(id)
		require.NoError(t, err)
		assert.NotEmpty(t, a.Hash)
		assert.Equal(t, "task.site.1", a.TaskID)
	}
}

func TestExecuteStreamsOutput(t *testing.T) {
	f := newFixture(t, "nova")
	task := novaTask("task.out.1", "echo hello; echo world >&2")

	result := f.exec.Execute(context.Background(), "wf-1", task)
	require.Equal(t, directive.TaskStatusCompleted, result.Status)
	assert.Contains(t, result.Steps[0].Stdout, "hello")
	assert.Contains(t, result.Steps[0].Stderr, "world")

	lines := f.bus.OfType(event.TaskStepOutput)
	require.Len(t, lines, 2)
	streams := map[string]bool{}
	for _, e := range lines {
		streams[e.Stream] = true
	}
	assert.True(t, streams["stdout"])
	assert.True(t, streams["stderr"])
}

func TestExecuteStopsAtFirstFailure(t *testing.T) {
	f := newFixture(t, "nova")
	task := novaTask("task.fail.1",
		"exit 3",
		"printf '%s' never > after.txt",
	)

	result := f.exec.Execute(context.Background(), "wf-1", task)
	assert.Equal(t, directive.TaskStatusFailed, result.Status)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, 3, result.Steps[0].ExitCode)
	assert.Contains(t, result.Error, "code 3")
	assert.Empty(t, result.ArtifactIDs)
}

func TestExecuteTimeout(t *testing.T) {
	f := newFixture(t, "nova")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	task := novaTask("task.slow.1", "sleep 5")
	result := f.exec.Execute(ctx, "wf-1", task)
	assert.Equal(t, directive.TaskStatusFailed, result.Status)
	assert.Contains(t, result.Error, "time budget")
}

func TestExecuteCancellation(t *testing.T) {
	f := newFixture(t, "nova")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	task := novaTask("task.cancel.1", "sleep 5")
	start := time.Now()
	result := f.exec.Execute(ctx, "wf-1", task)
	assert.Equal(t, directive.TaskStatusCancelled, result.Status)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestExecuteCancellationKillsChildren(t *testing.T) {
	f := newFixture(t, "nova")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	// The shell forks for the compound command; the child inherits the
	// output pipes and must die with the group or Wait blocks on them.
	task := novaTask("task.cancel.2", "echo started; sleep 30; echo done")
	start := time.Now()
	result := f.exec.Execute(ctx, "wf-1", task)
	assert.Equal(t, directive.TaskStatusCancelled, result.Status)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecuteIgnoresUnchangedFiles(t *testing.T) {
	f := newFixture(t, "nova")
	_, err := f.exec.Workspace().WriteFile("existing.txt", []byte("keep"))
	require.NoError(t, err)

	task := novaTask("task.noop.1", "true")
	result := f.exec.Execute(context.Background(), "wf-1", task)
	require.Equal(t, directive.TaskStatusCompleted, result.Status)
	assert.Empty(t, result.ArtifactIDs)
}

func TestExecuteCapturesNestedFiles(t *testing.T) {
	f := newFixture(t, "nova")
	task := novaTask("task.nested.1",
		"mkdir -p assets/img && printf '%s' logo > assets/img/logo.svg")

	result := f.exec.Execute(context.Background(), "wf-1", task)
	require.Equal(t, directive.TaskStatusCompleted, result.Status)
	require.Len(t, result.ArtifactIDs, 1)

	a, err := f.arts.Get(result.ArtifactIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "logo.svg", a.Name)
}

func TestCreateFileRecordsArtifact(t *testing.T) {
	f := newFixture(t, "nova")

	a, err := f.exec.CreateFile(context.Background(), "wf-1", "task.r.1", "REVIEW.md", []byte("# Review"))
	require.NoError(t, err)
	assert.Equal(t, "REVIEW.md", a.Name)
	assert.Equal(t, workspace.HashBytes([]byte("# Review")), a.Hash)
}
