package agent

import "testing"

func TestDefaultRegistryRoster(t *testing.T) {
	r := NewDefaultRegistry()
	if r.Count() != 6 {
		t.Fatalf("roster size = %d, want 6", r.Count())
	}

	tests := []struct {
		role string
		name string
	}{
		{"manager", "alex"},
		{"designer", "pixel"},
		{"frontend", "nova"},
		{"backend", "zephyr"},
		{"security", "cipher"},
		{"devops", "sage"},
	}
	for _, tt := range tests {
		a, ok := r.Resolve(tt.role)
		if !ok {
			t.Errorf("Resolve(%s) found no agent", tt.role)
			continue
		}
		if a.Name != tt.name {
			t.Errorf("Resolve(%s) = %s, want %s", tt.role, a.Name, tt.name)
		}
	}
}

func TestGetCaseInsensitive(t *testing.T) {
	r := NewDefaultRegistry()
	for _, name := range []string{"alex", "Alex", "ALEX"} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("Get(%q) should find the manager", name)
		}
	}
	if _, ok := r.Get("nobody"); ok {
		t.Error("Get(nobody) should fail")
	}
}

func TestResolveUnknownRole(t *testing.T) {
	r := NewDefaultRegistry()
	if _, ok := r.Resolve("astrologer"); ok {
		t.Error("Resolve(astrologer) should fail")
	}
}

func TestSpecialized(t *testing.T) {
	a := &Agent{Name: "zephyr", Role: "backend", Specializations: []string{"api", "payments"}}
	if !a.Specialized("payments") {
		t.Error("zephyr should be specialized in payments")
	}
	if !a.Specialized("backend") {
		t.Error("role counts as a specialization")
	}
	if a.Specialized("design") {
		t.Error("zephyr is not a designer")
	}
}

func TestNonManagers(t *testing.T) {
	r := NewDefaultRegistry()
	pool := r.NonManagers()
	if len(pool) != 5 {
		t.Fatalf("non-manager pool = %d, want 5", len(pool))
	}
	for _, a := range pool {
		if a.Role == "manager" {
			t.Errorf("manager %s leaked into non-manager pool", a.Name)
		}
	}
}

func TestRegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register(&Agent{Name: "rita", Role: "frontend"})
	r.Register(&Agent{Name: "rita", Role: "backend"})

	if _, ok := r.Resolve("frontend"); ok {
		t.Error("old role mapping should be removed on re-register")
	}
	a, ok := r.Resolve("backend")
	if !ok || a.Name != "rita" {
		t.Error("re-registered agent should resolve under the new role")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
}

func TestListSorted(t *testing.T) {
	r := NewDefaultRegistry()
	list := r.List()
	for i := 1; i < len(list); i++ {
		if list[i-1].Name > list[i].Name {
			t.Fatalf("List not sorted: %s before %s", list[i-1].Name, list[i].Name)
		}
	}
}
