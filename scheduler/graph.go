// Package scheduler orders task execution. The dependency graph tracks
// unmet dependencies per task; the scheduler feeds ready tasks to per-agent
// workers one at a time.
package scheduler

import (
	"sort"
	"sync"

	"github.com/BradleyMatera/ShellCompany-sub002/directive"
)

// Graph tracks dependency state for one workflow's tasks. All methods are
// safe for concurrent use.
type Graph struct {
	mu         sync.Mutex
	tasks      map[string]*directive.Task
	order      map[string]int      // declaration order, for stable ready lists
	inDegree   map[string]int      // unmet dependency count
	dependents map[string][]string // tasks blocked on this task
}

// NewGraph builds the dependency graph and rejects unknown references and
// cycles up front.
func NewGraph(tasks []*directive.Task) (*Graph, error) {
	g := &Graph{
		tasks:      make(map[string]*directive.Task, len(tasks)),
		order:      make(map[string]int, len(tasks)),
		inDegree:   make(map[string]int, len(tasks)),
		dependents: make(map[string][]string, len(tasks)),
	}

	for i, t := range tasks {
		if _, dup := g.tasks[t.ID]; dup {
			return nil, directive.Errorf(directive.KindInvalidInput, "duplicate task id %s", t.ID)
		}
		g.tasks[t.ID] = t
		g.order[t.ID] = i
		g.inDegree[t.ID] = 0
	}

	for _, t := range tasks {
		for _, depID := range t.DependsOn {
			if _, exists := g.tasks[depID]; !exists {
				return nil, directive.Errorf(directive.KindDependencyCycle,
					"task %s depends on unknown task %s", t.ID, depID)
			}
			g.inDegree[t.ID]++
			g.dependents[depID] = append(g.dependents[depID], t.ID)
		}
	}

	if err := g.detectCycles(); err != nil {
		return nil, err
	}
	return g, nil
}

// detectCycles runs Kahn's algorithm; any task left unordered is part of a
// cycle.
func (g *Graph) detectCycles() error {
	tempDegree := make(map[string]int, len(g.inDegree))
	for id, deg := range g.inDegree {
		tempDegree[id] = deg
	}

	var queue []string
	for id, deg := range tempDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	processed := 0
	for len(queue) > 0 {
		taskID := queue[0]
		queue = queue[1:]
		processed++
		for _, depID := range g.dependents[taskID] {
			tempDegree[depID]--
			if tempDegree[depID] == 0 {
				queue = append(queue, depID)
			}
		}
	}

	if processed != len(g.tasks) {
		var stuck []string
		for id := range g.tasks {
			if tempDegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return directive.Errorf(directive.KindDependencyCycle,
			"circular dependency among tasks: %v", stuck)
	}
	return nil
}

// Ready returns all pending tasks with no unmet dependencies, in
// declaration order.
func (g *Graph) Ready() []*directive.Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readyLocked()
}

func (g *Graph) readyLocked() []*directive.Task {
	var ready []*directive.Task
	for id, deg := range g.inDegree {
		if deg == 0 && g.tasks[id].Status == directive.TaskStatusPending {
			ready = append(ready, g.tasks[id])
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		return g.order[ready[i].ID] < g.order[ready[j].ID]
	})
	return ready
}

// MarkCompleted records a completed task and returns the tasks it
// unblocked, in declaration order.
func (g *Graph) MarkCompleted(taskID string) []*directive.Task {
	g.mu.Lock()
	defer g.mu.Unlock()

	var newlyReady []*directive.Task
	for _, depID := range g.dependents[taskID] {
		g.inDegree[depID]--
		if g.inDegree[depID] == 0 && g.tasks[depID].Status == directive.TaskStatusPending {
			newlyReady = append(newlyReady, g.tasks[depID])
		}
	}
	delete(g.inDegree, taskID)

	sort.Slice(newlyReady, func(i, j int) bool {
		return g.order[newlyReady[i].ID] < g.order[newlyReady[j].ID]
	})
	return newlyReady
}

// MarkFailed records a failed task and cancels every transitive dependent
// that has not already finished. The cancelled tasks are returned in
// declaration order.
func (g *Graph) MarkFailed(taskID string) []*directive.Task {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.inDegree, taskID)

	var cancelled []*directive.Task
	queue := append([]string(nil), g.dependents[taskID]...)
	seen := map[string]bool{taskID: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true

		t := g.tasks[id]
		if t.Status == directive.TaskStatusPending {
			cancelled = append(cancelled, t)
		}
		delete(g.inDegree, id)
		queue = append(queue, g.dependents[id]...)
	}

	sort.Slice(cancelled, func(i, j int) bool {
		return g.order[cancelled[i].ID] < g.order[cancelled[j].ID]
	})
	return cancelled
}

// Remaining returns the number of tasks not yet completed or failed out of
// the graph.
func (g *Graph) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inDegree)
}

// Task returns a task by ID, or nil.
func (g *Graph) Task(id string) *directive.Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tasks[id]
}
