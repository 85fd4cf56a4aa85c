package orchestrator

import (
	"context"
	"fmt"

	"github.com/BradleyMatera/ShellCompany-sub002/approval"
	"github.com/BradleyMatera/ShellCompany-sub002/directive"
	"github.com/BradleyMatera/ShellCompany-sub002/event"
	"github.com/BradleyMatera/ShellCompany-sub002/executor"
)

// executingThreshold is the fraction of tasks past pending at which a
// workflow moves from in_progress to executing.
const executingThreshold = 0.5

// runTask is the scheduler's RunFunc. It transitions the task to running,
// executes it with the configured time budget, and routes the outcome.
func (e *Engine) runTask(ctx context.Context, workflowID string, task *directive.Task) {
	e.mu.Lock()
	wf, ok := e.workflows[workflowID]
	if !ok || wf.Status.IsTerminal() {
		e.mu.Unlock()
		return
	}
	now := e.clock.Now()
	task.Status = directive.TaskStatusRunning
	task.StartedAt = &now

	taskCtx := ctx
	var cancel context.CancelFunc
	if e.cfg.TaskTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, e.cfg.TaskTimeout)
	} else {
		taskCtx, cancel = context.WithCancel(ctx)
	}
	e.running[task.ID] = cancel
	exec := e.executors[task.Agent]
	e.mu.Unlock()

	e.publish(event.Event{
		Type:       event.TaskStarted,
		WorkflowID: workflowID,
		TaskID:     task.ID,
		Agent:      task.Agent,
	})
	e.persistWithRetry(ctx, wf)

	if exec == nil {
		e.onTaskFailed(ctx, workflowID, task, nil,
			fmt.Sprintf("no executor for agent %s", task.Agent))
		cancel()
		return
	}

	var result *directive.ExecutionResult
	if task.Type == directive.TaskTypeManagerReview {
		result = e.runReviewTask(taskCtx, workflowID, task, exec)
	} else {
		result = exec.Execute(taskCtx, workflowID, task)
	}
	cancel()

	e.mu.Lock()
	delete(e.running, task.ID)
	e.mu.Unlock()

	switch result.Status {
	case directive.TaskStatusCompleted:
		e.onTaskCompleted(ctx, workflowID, task, result)
	case directive.TaskStatusCancelled:
		e.onTaskCancelled(ctx, workflowID, task, result.Error)
	default:
		e.onTaskFailed(ctx, workflowID, task, result, result.Error)
	}
}

// runReviewTask writes the review notes into the manager workspace instead
// of shelling out; the notes are recorded as a normal artifact.
func (e *Engine) runReviewTask(ctx context.Context, workflowID string, task *directive.Task, exec *executor.Executor) *directive.ExecutionResult {
	e.mu.Lock()
	wf, ok := e.workflows[workflowID]
	if !ok {
		e.mu.Unlock()
		return &directive.ExecutionResult{Status: directive.TaskStatusCancelled, Error: "workflow gone"}
	}
	c := wf.Clone()
	e.mu.Unlock()

	summary := e.gate.Evaluate(c, len(c.ArtifactIDs))
	notes := approval.ReviewNotes(c, summary, len(c.ArtifactIDs))

	a, err := exec.CreateFile(ctx, workflowID, task.ID, reviewArtifactName, []byte(notes))
	if err != nil {
		return &directive.ExecutionResult{Status: directive.TaskStatusFailed, Error: err.Error()}
	}
	return &directive.ExecutionResult{
		Status:      directive.TaskStatusCompleted,
		ArtifactIDs: []string{a.ID},
	}
}

func (e *Engine) onTaskCompleted(ctx context.Context, workflowID string, task *directive.Task, result *directive.ExecutionResult) {
	e.mu.Lock()
	wf, ok := e.workflows[workflowID]
	if !ok {
		e.mu.Unlock()
		return
	}
	now := e.clock.Now()
	task.Status = directive.TaskStatusCompleted
	task.CompletedAt = &now
	task.Result = result
	wf.ArtifactIDs = append(wf.ArtifactIDs, result.ArtifactIDs...)
	wf.Progress = directive.ComputeProgress(wf.Tasks)
	e.maybeMarkExecutingLocked(wf)
	progress := wf.Progress

	var newlyReady []*directive.Task
	if graph, ok := e.graphs[workflowID]; ok {
		newlyReady = graph.MarkCompleted(task.ID)
	}
	e.mu.Unlock()

	e.publish(event.Event{
		Type:       event.TaskCompleted,
		WorkflowID: workflowID,
		TaskID:     task.ID,
		Agent:      task.Agent,
	}.WithData(map[string]any{"artifacts": len(result.ArtifactIDs)}))
	e.publish(event.Event{
		Type:       event.WorkflowProgress,
		WorkflowID: workflowID,
	}.WithData(progress))

	e.persistWithRetry(ctx, wf)

	for _, t := range newlyReady {
		e.enqueue(workflowID, t)
	}

	switch task.Type {
	case directive.TaskTypeManagerReview:
		e.submitForApproval(ctx, workflowID)
	case directive.TaskTypeRevision:
		e.startReview(ctx, workflowID)
	default:
		e.maybeFinishWork(ctx, workflowID)
		e.maybeFinishFailed(ctx, workflowID)
	}
}

func (e *Engine) onTaskFailed(ctx context.Context, workflowID string, task *directive.Task, result *directive.ExecutionResult, reason string) {
	e.mu.Lock()
	wf, ok := e.workflows[workflowID]
	if !ok {
		e.mu.Unlock()
		return
	}
	now := e.clock.Now()
	task.Status = directive.TaskStatusFailed
	task.CompletedAt = &now
	task.Result = result
	task.Error = reason

	var cancelled []*directive.Task
	if graph, ok := e.graphs[workflowID]; ok {
		cancelled = graph.MarkFailed(task.ID)
	}
	for _, t := range cancelled {
		t.Status = directive.TaskStatusCancelled
		t.Error = "upstream task failed"
		t.CompletedAt = &now
	}
	wf.AddFailureReason(fmt.Sprintf("task %s failed: %s", task.ID, reason))
	wf.Progress = directive.ComputeProgress(wf.Tasks)
	e.mu.Unlock()

	e.publish(event.Event{
		Type:       event.TaskFailed,
		WorkflowID: workflowID,
		TaskID:     task.ID,
		Agent:      task.Agent,
	}.WithData(map[string]any{"error": reason}))
	for _, t := range cancelled {
		e.publish(event.Event{
			Type:       event.TaskCancelled,
			WorkflowID: workflowID,
			TaskID:     t.ID,
			Agent:      t.Agent,
		}.WithData(map[string]any{"reason": t.Error}))
	}

	e.persistWithRetry(ctx, wf)

	// Independent branches keep running; the workflow closes as failed
	// once nothing is left in flight.
	e.maybeFinishFailed(ctx, workflowID)
}

func (e *Engine) onTaskCancelled(ctx context.Context, workflowID string, task *directive.Task, reason string) {
	e.mu.Lock()
	wf, ok := e.workflows[workflowID]
	if !ok {
		e.mu.Unlock()
		return
	}
	now := e.clock.Now()
	task.Status = directive.TaskStatusCancelled
	task.CompletedAt = &now
	task.Error = reason
	wf.Progress = directive.ComputeProgress(wf.Tasks)
	e.mu.Unlock()

	e.publish(event.Event{
		Type:       event.TaskCancelled,
		WorkflowID: workflowID,
		TaskID:     task.ID,
		Agent:      task.Agent,
	}.WithData(map[string]any{"reason": reason}))
	e.persistWithRetry(ctx, wf)
	e.maybeFinishFailed(ctx, workflowID)
}

// maybeMarkExecutingLocked advances in_progress to executing once more
// than half the tasks have moved past pending.
func (e *Engine) maybeMarkExecutingLocked(wf *directive.Workflow) {
	if wf.Status != directive.StatusInProgress {
		return
	}
	past := 0
	for _, t := range wf.Tasks {
		if t.Status != directive.TaskStatusPending {
			past++
		}
	}
	if float64(past) > executingThreshold*float64(len(wf.Tasks)) {
		e.transitionLocked(wf, directive.StatusExecuting)
	}
}

// maybeFinishWork appends the manager review once every work task has
// completed.
func (e *Engine) maybeFinishWork(ctx context.Context, workflowID string) {
	e.mu.Lock()
	wf, ok := e.workflows[workflowID]
	if !ok || wf.Status.IsTerminal() {
		e.mu.Unlock()
		return
	}
	for _, t := range wf.Tasks {
		if t.Type != "" {
			continue
		}
		if t.Status != directive.TaskStatusCompleted {
			e.mu.Unlock()
			return
		}
	}
	// Work is done; a review may already be pending or running.
	if r := wf.ReviewTask(); r != nil && r.Status != directive.TaskStatusCompleted {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.startReview(ctx, workflowID)
}

// maybeFinishFailed ends a workflow as failed once a task has failed and
// every remaining task has settled. A failure only cancels its dependents;
// independent branches that were queued or running finish first so their
// artifacts are kept.
func (e *Engine) maybeFinishFailed(ctx context.Context, workflowID string) {
	e.mu.Lock()
	wf, ok := e.workflows[workflowID]
	if !ok || wf.Status.IsTerminal() {
		e.mu.Unlock()
		return
	}

	failed := false
	reason := ""
	for _, t := range wf.Tasks {
		switch t.Status {
		case directive.TaskStatusFailed:
			failed = true
			reason = t.Error
		case directive.TaskStatusCompleted, directive.TaskStatusCancelled:
		default:
			e.mu.Unlock()
			return
		}
	}
	if !failed {
		e.mu.Unlock()
		return
	}
	wf.Progress = directive.ComputeProgress(wf.Tasks)
	e.finishLocked(wf, directive.StatusFailed)
	e.mu.Unlock()

	e.publish(event.Event{
		Type:       event.WorkflowFailed,
		WorkflowID: workflowID,
	}.WithData(map[string]any{"reason": reason}))
	e.persistWithRetry(ctx, wf)
}

// startReview appends a manager review task and queues it. The review runs
// like any other task but writes the review notes instead of shelling out.
func (e *Engine) startReview(ctx context.Context, workflowID string) {
	e.mu.Lock()
	wf, ok := e.workflows[workflowID]
	if !ok || wf.Status.IsTerminal() {
		e.mu.Unlock()
		return
	}
	manager, found := e.agents.Resolve("manager")
	if !found {
		e.mu.Unlock()
		e.logger.Error("no manager agent for review", "workflow_id", workflowID)
		return
	}

	review := &directive.Task{
		ID:          directive.TaskID(directive.Slugify(wf.Directive), len(wf.Tasks)+1),
		WorkflowID:  wf.ID,
		Title:       "Review the delivery",
		Description: "Check the produced artifacts against the directive and write the review notes.",
		Agent:       manager.Name,
		Status:      directive.TaskStatusPending,
		Type:        directive.TaskTypeManagerReview,
	}
	wf.Tasks = append(wf.Tasks, review)
	wf.Progress = directive.ComputeProgress(wf.Tasks)
	e.mu.Unlock()

	e.persistWithRetry(ctx, wf)
	e.enqueue(workflowID, review)
}

// submitForApproval evaluates the workflow and opens the executive
// approval request.
func (e *Engine) submitForApproval(ctx context.Context, workflowID string) {
	e.mu.Lock()
	wf, ok := e.workflows[workflowID]
	if !ok || wf.Status.IsTerminal() {
		e.mu.Unlock()
		return
	}
	submitter, _ := wf.Metadata["submitter"].(string)
	c := wf.Clone()
	e.mu.Unlock()

	artifactCount := len(c.ArtifactIDs)
	if _, err := e.gate.Submit(ctx, c, artifactCount, submitter); err != nil {
		e.logger.Error("approval submission failed", "workflow_id", workflowID, "error", err)
		return
	}

	e.mu.Lock()
	e.transitionLocked(wf, directive.StatusWaitingForCEOApproval)
	e.mu.Unlock()
	e.persistWithRetry(ctx, wf)
}

// RecordApprovalDecision applies an executive decision to a workflow
// awaiting sign-off.
func (e *Engine) RecordApprovalDecision(ctx context.Context, workflowID string, decision directive.ApprovalStatus, approver, comments string) (*directive.Workflow, error) {
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
	if wf.Status != directive.StatusWaitingForCEOApproval {
		e.mu.Unlock()
		return nil, directive.Errorf(directive.KindApprovalBlocked,
			"workflow %s is not awaiting approval (status %s)", workflowID, wf.Status)
	}
	e.mu.Unlock()

	req, err := e.gate.ForWorkflow(workflowID)
	if err != nil {
		return nil, err
	}
	if _, err := e.gate.Decide(ctx, req.ID, decision, approver, comments); err != nil {
		return nil, err
	}

	e.mu.Lock()
	wf.Metadata["approvalDecision"] = string(decision)
	wf.Metadata["approver"] = approver
	if comments != "" {
		wf.Metadata["approvalComments"] = comments
	}

	switch decision {
	case directive.ApprovalStatusApproved:
		e.finishLocked(wf, directive.StatusCompleted)
		e.mu.Unlock()
		e.publish(event.Event{Type: event.WorkflowCompleted, WorkflowID: workflowID}.WithData(map[string]any{
			"approver": approver,
		}))
	case directive.ApprovalStatusRejected:
		wf.AddFailureReason(fmt.Sprintf("rejected by %s: %s", approver, comments))
		e.finishLocked(wf, directive.StatusRejected)
		e.mu.Unlock()
		e.publish(event.Event{Type: event.WorkflowFailed, WorkflowID: workflowID}.WithData(map[string]any{
			"reason": "rejected by executive",
		}))
	case directive.ApprovalStatusNeedsRevision:
		e.transitionLocked(wf, directive.StatusNeedsRevision)
		e.transitionLocked(wf, directive.StatusInProgress)
		e.mu.Unlock()
		e.startRevision(ctx, workflowID, comments)
	default:
		e.mu.Unlock()
	}

	e.persistWithRetry(ctx, wf)
	return e.snapshot(workflowID)
}

// startRevision appends a revision task addressing the executive's
// comments. When it completes a fresh review and approval round runs.
func (e *Engine) startRevision(ctx context.Context, workflowID, comments string) {
	e.mu.Lock()
	wf, ok := e.workflows[workflowID]
	if !ok {
		e.mu.Unlock()
		return
	}

	// Revisions go to the agent who owned the last work task.
	agentName := ""
	for _, t := range wf.Tasks {
		if t.Type == "" {
			agentName = t.Agent
		}
	}
	if agentName == "" {
		if m, found := e.agents.Resolve("manager"); found {
			agentName = m.Name
		}
	}

	revision := &directive.Task{
		ID:          directive.TaskID(directive.Slugify(wf.Directive), len(wf.Tasks)+1),
		WorkflowID:  wf.ID,
		Title:       "Address revision feedback",
		Description: comments,
		Agent:       agentName,
		Commands: []string{
			fmt.Sprintf("printf '%%s\\n' '# Revision Notes' 'Feedback: %s' 'Status: addressed' > REVISIONS.md",
				sanitizeForShell(comments)),
		},
		Status: directive.TaskStatusPending,
		Type:   directive.TaskTypeRevision,
	}
	wf.Tasks = append(wf.Tasks, revision)
	wf.Progress = directive.ComputeProgress(wf.Tasks)
	e.mu.Unlock()

	e.persistWithRetry(ctx, wf)
	e.enqueue(workflowID, revision)
}

// EmergencyUnblock force-approves a workflow stuck at the approval gate.
func (e *Engine) EmergencyUnblock(ctx context.Context, workflowID, approver, reason string) (*directive.Workflow, error) {
	e.mu.Lock()
	wf, ok := e.workflows[workflowID]
	if !ok {
		e.mu.Unlock()
		return nil, directive.Errorf(directive.KindInvalidInput, "unknown workflow %s", workflowID)
	}
	if wf.Status != directive.StatusWaitingForCEOApproval {
		e.mu.Unlock()
		return nil, directive.Errorf(directive.KindApprovalBlocked,
			"workflow %s is not awaiting approval (status %s)", workflowID, wf.Status)
	}
	e.mu.Unlock()

	if _, err := e.gate.EmergencyUnblock(ctx, workflowID, approver, reason); err != nil {
		return nil, err
	}

	e.mu.Lock()
	wf.Metadata["approvalDecision"] = string(directive.ApprovalStatusEmergencyApproved)
	wf.Metadata["approver"] = approver
	wf.Metadata["emergencyReason"] = reason
	e.finishLocked(wf, directive.StatusCompleted)
	e.mu.Unlock()

	e.publish(event.Event{Type: event.WorkflowCompleted, WorkflowID: workflowID}.WithData(map[string]any{
		"approver":  approver,
		"emergency": true,
	}))
	e.persistWithRetry(ctx, wf)
	return e.snapshot(workflowID)
}

func sanitizeForShell(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\'' || r == '\n' {
			out = append(out, ' ')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// reviewArtifactName is the file the manager review writes.
const reviewArtifactName = "REVIEW.md"
