package directiverunner

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradleyMatera/ShellCompany-sub002/agent"
	"github.com/BradleyMatera/ShellCompany-sub002/approval"
	"github.com/BradleyMatera/ShellCompany-sub002/artifact"
	"github.com/BradleyMatera/ShellCompany-sub002/brief"
	"github.com/BradleyMatera/ShellCompany-sub002/event"
	"github.com/BradleyMatera/ShellCompany-sub002/orchestrator"
	"github.com/BradleyMatera/ShellCompany-sub002/storage"
	"github.com/BradleyMatera/ShellCompany-sub002/workspace"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEngine(t *testing.T) *orchestrator.Engine {
	t.Helper()
	agents := agent.NewDefaultRegistry()
	workspaces, err := workspace.NewManager(t.TempDir())
	require.NoError(t, err)
	repo := storage.NewMemory()
	bus := event.NewBus()
	logger := testLogger()

	engine, err := orchestrator.New(orchestrator.DefaultConfig(), orchestrator.Deps{
		Briefs:     brief.NewManager(agents, nil, logger),
		Artifacts:  artifact.NewService(repo, workspaces, bus, nil, logger),
		Gate:       approval.NewGate(nil, repo, bus, nil, logger),
		Repo:       repo,
		Bus:        bus,
		Agents:     agents,
		Workspaces: workspaces,
		Logger:     logger,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)
	t.Cleanup(func() {
		cancel()
		engine.Stop()
	})
	return engine
}

func newTestComponent(engine *orchestrator.Engine) *Component {
	return &Component{
		name:   "directive-runner",
		config: DefaultConfig(),
		logger: testLogger(),
		engine: func() *orchestrator.Engine { return engine },
	}
}

func TestRunTriggerCreatesWorkflow(t *testing.T) {
	engine := newTestEngine(t)
	c := newTestComponent(engine)

	result := c.runTrigger(context.Background(), engine, &WorkflowTriggerPayload{
		RequestID: "req-1",
		Directive: "Build a landing page for the bakery",
		Submitter: "cli",
		Responses: map[string]string{
			brief.QuestionScope:    "Basic prototype/MVP",
			brief.QuestionTimeline: "No specific deadline",
		},
	})

	assert.Equal(t, "created", result.Status)
	require.NotEmpty(t, result.WorkflowID)
	require.NotEmpty(t, result.BriefID)

	wf, err := engine.GetWorkflow(context.Background(), result.WorkflowID)
	require.NoError(t, err)
	assert.NotEmpty(t, wf.Tasks)
}

func TestRunTriggerRawDirectiveUsesDefaults(t *testing.T) {
	engine := newTestEngine(t)
	c := newTestComponent(engine)

	result := c.runTrigger(context.Background(), engine, &WorkflowTriggerPayload{
		RequestID: "req-2",
		Directive: "Build a landing page for the bakery",
	})

	// No responses: required questions are answered with their defaults
	// and the workflow is created anyway.
	assert.Equal(t, "created", result.Status)
	require.NotEmpty(t, result.WorkflowID)

	wf, err := engine.GetWorkflow(context.Background(), result.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, "Basic prototype/MVP", wf.Metadata["scope"])
}

func TestRunTriggerBriefNeedsClarification(t *testing.T) {
	engine := newTestEngine(t)
	c := newTestComponent(engine)

	b, err := engine.Briefs().Analyze("Build a landing page for the bakery", "cli")
	require.NoError(t, err)

	result := c.runTrigger(context.Background(), engine, &WorkflowTriggerPayload{
		RequestID: "req-2b",
		BriefID:   b.ID,
	})

	assert.Equal(t, "awaiting_clarification", result.Status)
	assert.Equal(t, b.ID, result.BriefID)
	assert.Empty(t, result.WorkflowID)

	// The brief survives for follow-up over the API.
	got, err := engine.Briefs().Get(b.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.Questions)
}

func TestRunTriggerUnknownBrief(t *testing.T) {
	engine := newTestEngine(t)
	c := newTestComponent(engine)

	result := c.runTrigger(context.Background(), engine, &WorkflowTriggerPayload{
		RequestID: "req-3",
		BriefID:   "brief-nope",
	})

	assert.Equal(t, "failed", result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 60*time.Second, cfg.GetProcessTimeout())

	cfg.ProcessTimeout = "bogus"
	assert.Error(t, cfg.Validate())
	assert.Equal(t, 60*time.Second, cfg.GetProcessTimeout())

	cfg = DefaultConfig()
	cfg.StreamName = ""
	assert.Error(t, cfg.Validate())
}
