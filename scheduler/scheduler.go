package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/BradleyMatera/ShellCompany-sub002/directive"
)

// RunFunc executes one task. It is called on its own goroutine with the
// scheduler's base context; the callee reports the outcome back to the
// engine, which feeds newly ready tasks into Enqueue.
type RunFunc func(ctx context.Context, workflowID string, task *directive.Task)

// Item is one queued unit of work.
type Item struct {
	WorkflowID string
	Task       *directive.Task
}

// Scheduler dispatches ready tasks to agents. Each agent runs one task at a
// time across all workflows; within an agent, tasks start in the order they
// were enqueued.
type Scheduler struct {
	mu     sync.Mutex
	queue  []Item
	busy   map[string]bool
	run    RunFunc
	logger *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

// New creates a scheduler that hands tasks to run.
func New(run RunFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		busy:   make(map[string]bool),
		run:    run,
		logger: logger,
	}
}

// Start makes the scheduler live. Items enqueued before Start wait until
// it is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.dispatchLocked()
}

// Stop cancels the base context and waits for in-flight tasks to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.queue = nil
	s.mu.Unlock()
	s.wg.Wait()
}

// Enqueue adds a ready task to the dispatch queue.
func (s *Scheduler) Enqueue(workflowID string, task *directive.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, Item{WorkflowID: workflowID, Task: task})
	if s.started {
		s.dispatchLocked()
	}
}

// CancelWorkflow removes every queued task for a workflow and returns them.
// Tasks already running are not interrupted here; the engine cancels those
// through their execution context.
func (s *Scheduler) CancelWorkflow(workflowID string) []*directive.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []*directive.Task
	var kept []Item
	for _, item := range s.queue {
		if item.WorkflowID == workflowID {
			removed = append(removed, item.Task)
			continue
		}
		kept = append(kept, item)
	}
	s.queue = kept
	return removed
}

// QueuedCount returns the number of items waiting for an agent slot.
func (s *Scheduler) QueuedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// dispatchLocked starts every queue item whose agent is idle, preserving
// queue order for items that stay blocked.
func (s *Scheduler) dispatchLocked() {
	if !s.started || s.ctx.Err() != nil {
		return
	}

	var kept []Item
	for _, item := range s.queue {
		if s.busy[item.Task.Agent] {
			kept = append(kept, item)
			continue
		}
		s.busy[item.Task.Agent] = true
		s.wg.Add(1)
		go s.runOne(item)
	}
	s.queue = kept
}

func (s *Scheduler) runOne(item Item) {
	defer s.wg.Done()

	s.logger.Debug("dispatching task",
		"workflow_id", item.WorkflowID,
		"task_id", item.Task.ID,
		"agent", item.Task.Agent)
	s.run(s.ctx, item.WorkflowID, item.Task)

	s.mu.Lock()
	s.busy[item.Task.Agent] = false
	s.dispatchLocked()
	s.mu.Unlock()
}
