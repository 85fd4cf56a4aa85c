// Package orchestrator is the workflow engine. It turns approved briefs
// into task graphs, drives them through the scheduler and the per-agent
// executors, appends the manager review once the work is done, and routes
// the result through the executive approval gate.
//
// The in-memory workflow map is authoritative at runtime; the repository
// is the durable record and is written through with retries.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/c360studio/semstreams/pkg/retry"

	"github.com/BradleyMatera/ShellCompany-sub002/agent"
	"github.com/BradleyMatera/ShellCompany-sub002/approval"
	"github.com/BradleyMatera/ShellCompany-sub002/artifact"
	"github.com/BradleyMatera/ShellCompany-sub002/brief"
	"github.com/BradleyMatera/ShellCompany-sub002/directive"
	"github.com/BradleyMatera/ShellCompany-sub002/event"
	"github.com/BradleyMatera/ShellCompany-sub002/executor"
	"github.com/BradleyMatera/ShellCompany-sub002/plan"
	"github.com/BradleyMatera/ShellCompany-sub002/scheduler"
	"github.com/BradleyMatera/ShellCompany-sub002/storage"
	"github.com/BradleyMatera/ShellCompany-sub002/workspace"
)

// Config holds the engine's tunables.
type Config struct {
	// TaskTimeout bounds each task's execution. Zero means no limit.
	TaskTimeout time.Duration

	// WorkflowTimeout bounds a whole workflow. Zero means no limit.
	WorkflowTimeout time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		TaskTimeout:     10 * time.Minute,
		WorkflowTimeout: 2 * time.Hour,
	}
}

// Engine coordinates the full workflow lifecycle.
type Engine struct {
	mu        sync.Mutex
	workflows map[string]*directive.Workflow
	graphs    map[string]*scheduler.Graph
	running   map[string]context.CancelFunc // task ID -> cancel
	timers    map[string]*time.Timer        // workflow ID -> timeout timer

	briefs     *brief.Manager
	planner    *plan.Planner
	estimator  *plan.Estimator
	sched      *scheduler.Scheduler
	executors  map[string]*executor.Executor
	artifacts  *artifact.Service
	gate       *approval.Gate
	repo       storage.Repository
	bus        event.Bus
	agents     *agent.Registry
	workspaces *workspace.Manager
	clock      directive.Clock
	logger     *slog.Logger
	cfg        Config
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Briefs     *brief.Manager
	Artifacts  *artifact.Service
	Gate       *approval.Gate
	Repo       storage.Repository
	Bus        event.Bus
	Agents     *agent.Registry
	Workspaces *workspace.Manager
	Clock      directive.Clock
	Logger     *slog.Logger
}

// New creates the engine. Executors are created per roster agent against
// their workspaces.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Clock == nil {
		deps.Clock = directive.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	e := &Engine{
		workflows:  make(map[string]*directive.Workflow),
		graphs:     make(map[string]*scheduler.Graph),
		running:    make(map[string]context.CancelFunc),
		timers:     make(map[string]*time.Timer),
		briefs:     deps.Briefs,
		planner:    plan.NewPlanner(deps.Agents),
		estimator:  plan.NewEstimator(deps.Agents),
		executors:  make(map[string]*executor.Executor),
		artifacts:  deps.Artifacts,
		gate:       deps.Gate,
		repo:       deps.Repo,
		bus:        deps.Bus,
		agents:     deps.Agents,
		workspaces: deps.Workspaces,
		clock:      deps.Clock,
		logger:     deps.Logger,
		cfg:        cfg,
	}
	e.sched = scheduler.New(e.runTask, deps.Logger)

	for _, ag := range deps.Agents.List() {
		ws, err := deps.Workspaces.ForAgent(ag.Name)
		if err != nil {
			return nil, fmt.Errorf("workspace for %s: %w", ag.Name, err)
		}
		e.executors[ag.Name] = executor.New(ws, deps.Artifacts, deps.Bus, deps.Clock, deps.Logger)
	}
	return e, nil
}

// Start makes the engine live.
func (e *Engine) Start(ctx context.Context) {
	e.sched.Start(ctx)
}

// Stop drains in-flight tasks and shuts the scheduler down.
func (e *Engine) Stop() {
	e.mu.Lock()
	for _, timer := range e.timers {
		timer.Stop()
	}
	e.mu.Unlock()
	e.sched.Stop()
}

// Briefs exposes the brief manager for the API surface.
func (e *Engine) Briefs() *brief.Manager {
	return e.briefs
}

// Artifacts exposes the lineage service for the API surface.
func (e *Engine) Artifacts() *artifact.Service {
	return e.artifacts
}

// Gate exposes the approval gate for the API surface.
func (e *Engine) Gate() *approval.Gate {
	return e.gate
}

// CreateWorkflow plans and starts a workflow from a finalized brief. The
// brief must have every required clarifying question answered; the error
// for an unresolved brief names the blocking question.
func (e *Engine) CreateWorkflow(ctx context.Context, briefID, submitter string) (*directive.Workflow, error) {
	finalized, err := e.briefs.Finalize(briefID)
	if err != nil {
		return nil, err
	}

	tasks, err := e.planner.Build(finalized)
	if err != nil {
		return nil, err
	}
	estimate := e.estimator.Estimate(tasks, finalized.Scope)

	wf := &directive.Workflow{
		ID:        directive.NewWorkflowID(),
		Directive: finalized.Directive,
		Status:    directive.StatusPlanned,
		BriefID:   briefID,
		Tasks:     tasks,
		Progress:  directive.ComputeProgress(tasks),
		Metadata: map[string]any{
			"projectKind":       finalized.ProjectKind,
			"scope":             finalized.Scope,
			"timeline":          finalized.Timeline,
			"submitter":         submitter,
			"estimateSummary":   estimate.Explanation,
			"estimatedParallel": estimate.EstimatedParallel.String(),
		},
		StartedAt: e.clock.Now(),
	}
	for _, t := range tasks {
		t.WorkflowID = wf.ID
	}

	graph, err := scheduler.NewGraph(tasks)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.workflows[wf.ID] = wf
	e.graphs[wf.ID] = graph
	if e.cfg.WorkflowTimeout > 0 {
		e.timers[wf.ID] = time.AfterFunc(e.cfg.WorkflowTimeout, func() {
			e.expireWorkflow(wf.ID)
		})
	}
	e.mu.Unlock()

	e.persistWithRetry(ctx, wf)
	e.audit(ctx, &storage.AuditEntry{
		Actor:      submitter,
		Action:     "workflow_created",
		TargetKind: "workflow",
		TargetID:   wf.ID,
		Metadata:   map[string]any{"brief_id": briefID, "tasks": len(tasks)},
	})
	e.publish(event.Event{Type: event.WorkflowCreated, WorkflowID: wf.ID}.WithData(map[string]any{
		"directive": wf.Directive,
		"tasks":     len(tasks),
		"estimate":  estimate.Explanation,
	}))

	e.mu.Lock()
	e.transitionLocked(wf, directive.StatusInProgress)
	ready := graph.Ready()
	e.mu.Unlock()

	for _, t := range ready {
		e.enqueue(wf.ID, t)
	}
	return e.snapshot(wf.ID)
}

// GetWorkflow returns a copy of a workflow. Workflows not held in memory
// are served from the durable store.
func (e *Engine) GetWorkflow(ctx context.Context, workflowID string) (*directive.Workflow, error) {
	e.mu.Lock()
	wf, ok := e.workflows[workflowID]
	if ok {
		c := wf.Clone()
		e.mu.Unlock()
		return c, nil
	}
	e.mu.Unlock()
	return e.repo.LoadWorkflow(ctx, workflowID)
}

// ListWorkflows returns workflows newest-first, optionally filtered by
// status.
func (e *Engine) ListWorkflows(_ context.Context, filter storage.WorkflowFilter) ([]*directive.Workflow, error) {
	e.mu.Lock()
	out := make([]*directive.Workflow, 0, len(e.workflows))
	for _, wf := range e.workflows {
		if filter.Status != "" && wf.Status != filter.Status {
			continue
		}
		out = append(out, wf.Clone())
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// CancelWorkflow stops a running workflow: queued tasks are removed,
// running tasks get their contexts cancelled, and the workflow fails with
// a cancellation reason.
func (e *Engine) CancelWorkflow(ctx context.Context, workflowID, reason string) (*directive.Workflow, error) {
	e.mu.Lock()
	wf, ok := e.workflows[workflowID]
	if !ok {
		e.mu.Unlock()
		return nil, directive.Errorf(directive.KindInvalidInput, "unknown workflow %s", workflowID)
	}
	if wf.Status.IsTerminal() {
		e.mu.Unlock()
		return nil, directive.Errorf(directive.KindInvalidInput,
			"workflow %s is already %s", workflowID, wf.Status)
	}

	for _, t := range wf.Tasks {
		if t.Status == directive.TaskStatusRunning {
			if cancel, ok := e.running[t.ID]; ok {
				cancel()
			}
		}
	}
	e.mu.Unlock()

	e.sched.CancelWorkflow(workflowID)

	e.mu.Lock()
	now := e.clock.Now()
	for _, t := range wf.Tasks {
		if t.Status == directive.TaskStatusPending {
			t.Status = directive.TaskStatusCancelled
			t.Error = "workflow cancelled"
			t.CompletedAt = &now
		}
	}
	if reason == "" {
		reason = "cancelled by operator"
	}
	wf.AddFailureReason(reason)
	wf.Progress = directive.ComputeProgress(wf.Tasks)
	e.finishLocked(wf, directive.StatusFailed)
	e.mu.Unlock()

	e.persistWithRetry(ctx, wf)
	e.audit(ctx, &storage.AuditEntry{
		Actor:      "operator",
		Action:     "workflow_cancelled",
		TargetKind: "workflow",
		TargetID:   workflowID,
		Metadata:   map[string]any{"reason": reason},
	})
	e.publish(event.Event{Type: event.WorkflowCancelled, WorkflowID: workflowID}.WithData(map[string]any{
		"reason": reason,
	}))
	return e.snapshot(workflowID)
}

// audit appends a trail entry; failures degrade to a warning so the
// workflow itself is never blocked on audit persistence.
func (e *Engine) audit(ctx context.Context, entry *storage.AuditEntry) {
	entry.Source = "orchestrator"
	entry.Timestamp = e.clock.Now()
	if err := e.repo.AppendAudit(ctx, entry); err != nil {
		e.logger.Warn("audit append failed", "target_id", entry.TargetID, "action", entry.Action, "error", err)
	}
}

// enqueue marks a task queued and hands it to the scheduler.
func (e *Engine) enqueue(workflowID string, t *directive.Task) {
	e.publish(event.Event{
		Type:       event.TaskQueued,
		WorkflowID: workflowID,
		TaskID:     t.ID,
		Agent:      t.Agent,
	})
	e.sched.Enqueue(workflowID, t)
}

// transitionLocked applies a workflow status change, validating against
// the state machine. Invalid transitions are logged and skipped.
func (e *Engine) transitionLocked(wf *directive.Workflow, target directive.Status) {
	if wf.Status == target {
		return
	}
	if !wf.Status.CanTransitionTo(target) {
		e.logger.Error("invalid workflow transition",
			"workflow_id", wf.ID, "from", wf.Status, "to", target)
		return
	}
	wf.Status = target
}

// finishLocked moves a workflow to a terminal status and stamps the end
// time.
func (e *Engine) finishLocked(wf *directive.Workflow, target directive.Status) {
	e.transitionLocked(wf, target)
	if !wf.Status.IsTerminal() {
		return
	}
	now := e.clock.Now()
	wf.EndedAt = &now
	wf.TotalDuration = now.Sub(wf.StartedAt)
	if timer, ok := e.timers[wf.ID]; ok {
		timer.Stop()
		delete(e.timers, wf.ID)
	}
}

// expireWorkflow fails a workflow whose overall time budget ran out.
func (e *Engine) expireWorkflow(workflowID string) {
	e.mu.Lock()
	wf, ok := e.workflows[workflowID]
	if !ok || wf.Status.IsTerminal() {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.logger.Warn("workflow timed out", "workflow_id", workflowID)
	_, err := e.CancelWorkflow(context.Background(), workflowID, "workflow exceeded its time budget")
	if err != nil {
		e.logger.Error("cancel timed-out workflow", "workflow_id", workflowID, "error", err)
	}
}

func (e *Engine) publish(ev event.Event) {
	e.bus.Publish(ev)
}

func (e *Engine) snapshot(workflowID string) (*directive.Workflow, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	wf, ok := e.workflows[workflowID]
	if !ok {
		return nil, directive.Errorf(directive.KindInvalidInput, "unknown workflow %s", workflowID)
	}
	return wf.Clone(), nil
}

// persistWithRetry writes the workflow through to the durable store,
// retrying transient failures. When retries are exhausted the engine keeps
// running on its in-memory state and signals the degradation.
func (e *Engine) persistWithRetry(ctx context.Context, wf *directive.Workflow) {
	e.mu.Lock()
	c := wf.Clone()
	e.mu.Unlock()

	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		if err := e.repo.SaveWorkflow(ctx, c); err != nil {
			if storage.IsTransient(err) {
				return err
			}
			return retry.NonRetryable(err)
		}
		return nil
	})
	if err == nil {
		return
	}

	e.logger.Error("workflow persistence degraded",
		"workflow_id", wf.ID, "error", err)
	e.publish(event.Event{
		Type:       event.PersistenceDegraded,
		WorkflowID: wf.ID,
	}.WithData(map[string]any{"error": err.Error()}))
}
