package plan

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BradleyMatera/ShellCompany-sub002/agent"
	"github.com/BradleyMatera/ShellCompany-sub002/directive"
)

// Base task durations per role. These feed the workload estimate shown to
// operators before a workflow starts.
var roleBaseDurations = map[string]time.Duration{
	"manager":  10 * time.Minute,
	"designer": 25 * time.Minute,
	"frontend": 40 * time.Minute,
	"backend":  45 * time.Minute,
	"security": 20 * time.Minute,
	"devops":   15 * time.Minute,
}

const defaultBaseDuration = 30 * time.Minute

// Scope multipliers over the base durations.
const (
	scopeFullFeaturedFactor = 1.3
	scopeProductionFactor   = 1.6
)

// Estimate summarizes the projected workload for a task graph.
type Estimate struct {
	// TotalSequential is the sum of all task durations.
	TotalSequential time.Duration `json:"total_sequential"`

	// EstimatedParallel is the critical-path duration accounting for
	// dependency edges and one-task-at-a-time agents.
	EstimatedParallel time.Duration `json:"estimated_parallel"`

	// AvailableAgents is the number of distinct agents in the graph.
	AvailableAgents int `json:"available_agents"`

	// PerAgent is the summed duration assigned to each agent.
	PerAgent map[string]time.Duration `json:"per_agent"`

	// Explanation is a short operator-facing summary.
	Explanation string `json:"explanation"`
}

// Estimator computes workload estimates over a roster.
type Estimator struct {
	agents *agent.Registry
}

// NewEstimator creates an estimator over the given roster.
func NewEstimator(agents *agent.Registry) *Estimator {
	return &Estimator{agents: agents}
}

// Estimate fills in per-task durations and computes the workload summary.
// Tasks without an estimated duration are assigned the role base scaled by
// scope.
func (e *Estimator) Estimate(tasks []*directive.Task, scope string) Estimate {
	factor := scopeFactor(scope)

	perAgent := make(map[string]time.Duration)
	var total time.Duration
	for _, t := range tasks {
		if t.EstimatedDuration == 0 {
			t.EstimatedDuration = e.baseFor(t.Agent, factor)
		}
		total += t.EstimatedDuration
		perAgent[t.Agent] += t.EstimatedDuration
	}

	parallel := criticalPath(tasks)

	agents := make([]string, 0, len(perAgent))
	for name := range perAgent {
		agents = append(agents, name)
	}
	sort.Strings(agents)

	return Estimate{
		TotalSequential:   total,
		EstimatedParallel: parallel,
		AvailableAgents:   len(agents),
		PerAgent:          perAgent,
		Explanation: fmt.Sprintf("%d tasks across %d agents; about %s with parallel execution (%s if run strictly in sequence)",
			len(tasks), len(agents), roundEstimate(parallel), roundEstimate(total)),
	}
}

func (e *Estimator) baseFor(agentName string, factor float64) time.Duration {
	base := defaultBaseDuration
	if ag, ok := e.agents.Get(agentName); ok {
		if d, ok := roleBaseDurations[ag.Role]; ok {
			base = d
		}
	}
	return time.Duration(float64(base) * factor).Round(time.Minute)
}

func scopeFactor(scope string) float64 {
	switch {
	case strings.EqualFold(scope, "Production-ready"):
		return scopeProductionFactor
	case strings.EqualFold(scope, "Full-featured"):
		return scopeFullFeaturedFactor
	default:
		return 1.0
	}
}

// criticalPath computes the longest finish time over the dependency DAG,
// with each agent running one task at a time. Tasks are considered in
// declaration order, which is a valid topological order for all the
// template graphs.
func criticalPath(tasks []*directive.Task) time.Duration {
	byID := make(map[string]*directive.Task, len(tasks))
	finish := make(map[string]time.Duration, len(tasks))
	agentFree := make(map[string]time.Duration)

	for _, t := range tasks {
		byID[t.ID] = t
	}
	for _, t := range tasks {
		var ready time.Duration
		for _, dep := range t.DependsOn {
			if f, ok := finish[dep]; ok && f > ready {
				ready = f
			}
		}
		if agentFree[t.Agent] > ready {
			ready = agentFree[t.Agent]
		}
		end := ready + t.EstimatedDuration
		finish[t.ID] = end
		agentFree[t.Agent] = end
	}

	var max time.Duration
	for _, f := range finish {
		if f > max {
			max = f
		}
	}
	return max
}

func roundEstimate(d time.Duration) string {
	return d.Round(time.Minute).String()
}
