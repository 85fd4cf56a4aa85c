// Package plan turns a finalized brief into a dependency-ordered task
// graph. Planning is template-driven and deterministic: the same finalized
// brief always yields the same tasks with the same IDs, agents, commands,
// and dependency edges.
package plan

import (
	"fmt"
	"strings"

	"github.com/BradleyMatera/ShellCompany-sub002/agent"
	"github.com/BradleyMatera/ShellCompany-sub002/brief"
	"github.com/BradleyMatera/ShellCompany-sub002/directive"
)

// Planner builds task graphs from finalized briefs using the agent roster
// to assign work by role.
type Planner struct {
	agents *agent.Registry
}

// NewPlanner creates a planner over the given roster.
func NewPlanner(agents *agent.Registry) *Planner {
	return &Planner{agents: agents}
}

// Build produces the task graph for a finalized brief. The returned tasks
// are all pending and carry no workflow ID yet.
func (p *Planner) Build(f *brief.Finalized) ([]*directive.Task, error) {
	if f == nil {
		return nil, directive.Errorf(directive.KindInvalidInput, "finalized brief is required")
	}

	b := newGraphBuilder(p.agents, f)
	switch f.ProjectKind {
	case brief.KindWebsite:
		b.website()
	case brief.KindDashboard:
		b.dashboard()
	case brief.KindFullstack:
		b.fullstack()
	case brief.KindBrainstorm:
		b.brainstorm()
	default:
		b.generic()
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.tasks, nil
}

// graphBuilder accumulates tasks with deterministic sequence-numbered IDs.
type graphBuilder struct {
	agents *agent.Registry
	brief  *brief.Finalized
	slug   string
	seq    int
	tasks  []*directive.Task
	err    error
}

func newGraphBuilder(agents *agent.Registry, f *brief.Finalized) *graphBuilder {
	return &graphBuilder{
		agents: agents,
		brief:  f,
		slug:   directive.Slugify(f.Directive),
	}
}

// add appends a task assigned to the named role's agent. dependsOn lists
// previously added task IDs.
func (b *graphBuilder) add(role, title, description string, commands, dependsOn []string) *directive.Task {
	if b.err != nil {
		return nil
	}
	ag, ok := b.agents.Resolve(role)
	if !ok {
		b.err = directive.Errorf(directive.KindInvalidInput, "no agent registered for role %s", role)
		return nil
	}
	return b.addFor(ag.Name, title, description, commands, dependsOn)
}

func (b *graphBuilder) addFor(agentName, title, description string, commands, dependsOn []string) *directive.Task {
	b.seq++
	t := &directive.Task{
		ID:          directive.TaskID(b.slug, b.seq),
		Title:       title,
		Description: description,
		Agent:       agentName,
		Commands:    commands,
		DependsOn:   append([]string(nil), dependsOn...),
		Status:      directive.TaskStatusPending,
	}
	b.tasks = append(b.tasks, t)
	return t
}

// deliveryAgent returns the agent for the main delivery task, honoring an
// explicit operator request when the named agent is on the roster.
func (b *graphBuilder) deliveryAgent(defaultRole string) string {
	if b.brief.AgentExplicit && b.brief.RequestedAgent != "" {
		if ag, ok := b.agents.Get(b.brief.RequestedAgent); ok {
			return ag.Name
		}
	}
	if ag, ok := b.agents.Resolve(defaultRole); ok {
		return ag.Name
	}
	return ""
}

func (b *graphBuilder) hasFeature(name string) bool {
	for _, f := range b.brief.KeyFeatures {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

func (b *graphBuilder) productionScope() bool {
	return strings.EqualFold(b.brief.Scope, "Production-ready")
}

// website: plan → design → frontend, with a donation task when requested
// and a hardening pass for production scope.
func (b *graphBuilder) website() {
	planTask := b.add("manager", "Plan the website build",
		"Break the directive into design and build steps.",
		planCommands(b.brief), nil)
	if b.err != nil {
		return
	}

	design := b.add("designer", "Design the page layout",
		"Produce layout and color direction notes for the build.",
		designCommands(b.brief), []string{planTask.ID})
	if b.err != nil {
		return
	}

	frontend := b.addFor(b.deliveryAgent("frontend"), "Build the page",
		"Write the page markup and stylesheet.",
		websiteCommands(b.brief), []string{design.ID})

	if b.hasFeature("Donation system") {
		b.add("backend", "Wire up the donation flow",
			"Add the donation form and its submission endpoint stub.",
			donationCommands(), []string{frontend.ID})
	}
	if b.productionScope() {
		b.add("security", "Harden the site",
			"Review the generated pages and record hardening notes.",
			securityCommands(), []string{frontend.ID})
	}
}

// dashboard: plan → backend → frontend.
func (b *graphBuilder) dashboard() {
	planTask := b.add("manager", "Plan the dashboard",
		"Decide the metrics and panels to surface.",
		planCommands(b.brief), nil)
	if b.err != nil {
		return
	}
	backend := b.add("backend", "Build the data layer",
		"Produce the metrics sample the dashboard reads.",
		dashboardDataCommands(), []string{planTask.ID})
	if b.err != nil {
		return
	}
	b.addFor(b.deliveryAgent("frontend"), "Build the dashboard page",
		"Render the metrics panels.",
		dashboardPageCommands(b.brief), []string{backend.ID})
}

// fullstack: plan → (design ∥ backend) → frontend → security → deploy.
func (b *graphBuilder) fullstack() {
	planTask := b.add("manager", "Plan the application",
		"Break the application into design, API, and delivery work.",
		planCommands(b.brief), nil)
	if b.err != nil {
		return
	}
	design := b.add("designer", "Design the application screens",
		"Produce screen and flow notes.",
		designCommands(b.brief), []string{planTask.ID})
	backend := b.add("backend", "Build the API",
		"Write the API surface sketch and sample payloads.",
		apiCommands(), []string{planTask.ID})
	if b.err != nil {
		return
	}
	frontend := b.addFor(b.deliveryAgent("frontend"), "Build the client",
		"Write the client shell against the API sketch.",
		websiteCommands(b.brief), []string{design.ID, backend.ID})
	sec := b.add("security", "Security review",
		"Audit the API sketch and client shell.",
		securityCommands(), []string{frontend.ID})
	if b.err != nil {
		return
	}
	b.add("devops", "Prepare deployment",
		"Write the deployment runbook.",
		deployCommands(), []string{sec.ID})
}

// brainstorm: plan → at least three parallel idea tasks from distinct
// non-manager agents → a synthesis task back on the manager.
func (b *graphBuilder) brainstorm() {
	planTask := b.add("manager", "Frame the brainstorm",
		"State the prompt and the angles to explore.",
		planCommands(b.brief), nil)
	if b.err != nil {
		return
	}

	contributors := b.agents.NonManagers()
	if len(contributors) > 3 {
		contributors = contributors[:3]
	}
	if len(contributors) < 3 {
		b.err = directive.Errorf(directive.KindInvalidInput,
			"brainstorm needs at least 3 non-manager agents, have %d", len(contributors))
		return
	}

	var ideaIDs []string
	for _, ag := range contributors {
		t := b.addFor(ag.Name, fmt.Sprintf("Ideas from %s", ag.Name),
			fmt.Sprintf("Contribute ideas from the %s angle.", ag.Role),
			ideaCommands(ag.Name), []string{planTask.ID})
		ideaIDs = append(ideaIDs, t.ID)
	}

	b.add("manager", "Synthesize the ideas",
		"Merge the contributed idea files into one ranked list.",
		synthesisCommands(), ideaIDs)
}

// generic: plan → execute.
func (b *graphBuilder) generic() {
	planTask := b.add("manager", "Plan the work",
		"Break the directive into concrete steps.",
		planCommands(b.brief), nil)
	if b.err != nil {
		return
	}
	b.addFor(b.deliveryAgent("backend"), "Carry out the directive",
		"Execute the planned steps and record the outcome.",
		genericCommands(b.brief), []string{planTask.ID})
}
