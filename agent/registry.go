// Package agent defines the role-specialized worker roster. Agents are named
// workers owning a workspace directory; the scheduler serializes work per
// agent and the planner assigns tasks by role.
package agent

import (
	"sort"
	"strings"
	"sync"
)

// Agent describes one role-specialized worker.
type Agent struct {
	// Name is the unique agent name (lowercase).
	Name string `json:"name"`

	// Role is the agent's primary role (manager, designer, frontend,
	// backend, security, devops).
	Role string `json:"role"`

	// Specializations lists the work kinds this agent handles.
	Specializations []string `json:"specializations,omitempty"`
}

// Specialized reports whether the agent covers the given work kind.
func (a *Agent) Specialized(kind string) bool {
	kind = strings.ToLower(kind)
	if strings.EqualFold(a.Role, kind) {
		return true
	}
	for _, s := range a.Specializations {
		if strings.EqualFold(s, kind) {
			return true
		}
	}
	return false
}

// Registry holds the agent roster, keyed by name and by role.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
	byRole map[string][]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]*Agent),
		byRole: make(map[string][]string),
	}
}

// NewDefaultRegistry creates a registry with the standard company roster.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, a := range []*Agent{
		{Name: "alex", Role: "manager", Specializations: []string{"planning", "review", "synthesis"}},
		{Name: "pixel", Role: "designer", Specializations: []string{"design", "ux", "branding"}},
		{Name: "nova", Role: "frontend", Specializations: []string{"html", "css", "react"}},
		{Name: "zephyr", Role: "backend", Specializations: []string{"api", "database", "payments"}},
		{Name: "cipher", Role: "security", Specializations: []string{"audit", "hardening"}},
		{Name: "sage", Role: "devops", Specializations: []string{"deploy", "infrastructure"}},
	} {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an agent.
func (r *Registry) Register(a *Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(a.Name)
	if old, ok := r.agents[name]; ok {
		r.removeFromRole(old.Role, name)
	}
	r.agents[name] = a
	role := strings.ToLower(a.Role)
	r.byRole[role] = append(r.byRole[role], name)
	sort.Strings(r.byRole[role])
}

func (r *Registry) removeFromRole(role, name string) {
	role = strings.ToLower(role)
	names := r.byRole[role]
	for i, n := range names {
		if n == name {
			r.byRole[role] = append(names[:i], names[i+1:]...)
			return
		}
	}
}

// Get returns the agent with the given name (case-insensitive).
func (r *Registry) Get(name string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[strings.ToLower(name)]
	return a, ok
}

// Resolve returns the first agent registered for a role, by name order.
func (r *Registry) Resolve(role string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := r.byRole[strings.ToLower(role)]
	if len(names) == 0 {
		return nil, false
	}
	return r.agents[names[0]], true
}

// List returns all agents sorted by name.
func (r *Registry) List() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Agent, 0, len(names))
	for _, name := range names {
		out = append(out, r.agents[name])
	}
	return out
}

// Names returns all agent names sorted.
func (r *Registry) Names() []string {
	agents := r.List()
	names := make([]string, len(agents))
	for i, a := range agents {
		names[i] = a.Name
	}
	return names
}

// Count returns the roster size.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// NonManagers returns all agents except those with the manager role, sorted
// by name. The planner uses this pool for parallel brainstorm tasks.
func (r *Registry) NonManagers() []*Agent {
	var out []*Agent
	for _, a := range r.List() {
		if !strings.EqualFold(a.Role, "manager") {
			out = append(out, a)
		}
	}
	return out
}
