package graph

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

// TestDefine tests task registration and duplicate rejection.
func TestDefine(t *testing.T) {
	g := New()

	if err := g.Define(&Task{Name: "build", Commands: []string{"go build ./..."}}); err != nil {
		t.Fatalf("Define(build) failed: %v", err)
	}

	err := g.Define(&Task{Name: "build"})
	if err == nil {
		t.Fatal("Expected error when defining duplicate task name")
	}

	var dup *DuplicateTaskError
	if !errors.As(err, &dup) {
		t.Errorf("Expected DuplicateTaskError, got %T: %v", err, err)
	}
	if dup.Name != "build" {
		t.Errorf("Expected duplicate name %q, got %q", "build", dup.Name)
	}
}

// TestResolve tests plan computation over various graph shapes.
func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		setup     func() *Graph
		target    string
		wantPlan  []string
		wantErr   bool
		errTarget any // pointer to concrete error type for errors.As
	}{
		{
			name: "single task no deps",
			setup: func() *Graph {
				g := New()
				g.Define(&Task{Name: "test", Commands: []string{"go test ./..."}})
				return g
			},
			target:   "test",
			wantPlan: []string{"test"},
		},
		{
			name: "aggregate target preserves declared prerequisite order",
			setup: func() *Graph {
				g := New()
				g.Define(&Task{Name: "test", Commands: []string{"cmdT"}})
				g.Define(&Task{Name: "build", Commands: []string{"cmdB"}})
				g.Define(&Task{Name: "publish", Commands: []string{"cmdP"}})
				g.Define(&Task{Name: "all", Deps: []string{"test", "build", "publish"}})
				return g
			},
			target:   "all",
			wantPlan: []string{"test", "build", "publish", "all"},
		},
		{
			name: "linear chain",
			setup: func() *Graph {
				g := New()
				g.Define(&Task{Name: "a"})
				g.Define(&Task{Name: "b", Deps: []string{"a"}})
				g.Define(&Task{Name: "c", Deps: []string{"b"}})
				return g
			},
			target:   "c",
			wantPlan: []string{"a", "b", "c"},
		},
		{
			name: "diamond resolves shared prerequisite once",
			setup: func() *Graph {
				g := New()
				g.Define(&Task{Name: "d"})
				g.Define(&Task{Name: "b", Deps: []string{"d"}})
				g.Define(&Task{Name: "c", Deps: []string{"d"}})
				g.Define(&Task{Name: "a", Deps: []string{"b", "c"}})
				return g
			},
			target:   "a",
			wantPlan: []string{"d", "b", "c", "a"},
		},
		{
			name: "resolve skips unrelated tasks",
			setup: func() *Graph {
				g := New()
				g.Define(&Task{Name: "lint"})
				g.Define(&Task{Name: "test"})
				g.Define(&Task{Name: "build", Deps: []string{"test"}})
				return g
			},
			target:   "build",
			wantPlan: []string{"test", "build"},
		},
		{
			name: "unknown target",
			setup: func() *Graph {
				g := New()
				g.Define(&Task{Name: "build"})
				return g
			},
			target:    "deploy",
			wantErr:   true,
			errTarget: new(*UnknownTaskError),
		},
		{
			name: "unknown transitive prerequisite",
			setup: func() *Graph {
				g := New()
				g.Define(&Task{Name: "build", Deps: []string{"generate"}})
				return g
			},
			target:    "build",
			wantErr:   true,
			errTarget: new(*UnknownTaskError),
		},
		{
			name: "direct cycle",
			setup: func() *Graph {
				g := New()
				g.Define(&Task{Name: "a", Deps: []string{"b"}})
				g.Define(&Task{Name: "b", Deps: []string{"a"}})
				return g
			},
			target:    "a",
			wantErr:   true,
			errTarget: new(*CycleError),
		},
		{
			name: "transitive cycle",
			setup: func() *Graph {
				g := New()
				g.Define(&Task{Name: "a", Deps: []string{"b"}})
				g.Define(&Task{Name: "b", Deps: []string{"c"}})
				g.Define(&Task{Name: "c", Deps: []string{"a"}})
				return g
			},
			target:    "a",
			wantErr:   true,
			errTarget: new(*CycleError),
		},
		{
			name: "self-loop",
			setup: func() *Graph {
				g := New()
				g.Define(&Task{Name: "a", Deps: []string{"a"}})
				return g
			},
			target:    "a",
			wantErr:   true,
			errTarget: new(*CycleError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := tt.setup()
			plan, err := g.Resolve(tt.target)

			if tt.wantErr {
				if err != nil && tt.errTarget != nil && !errors.As(err, tt.errTarget) {
					t.Errorf("Resolve(%q) error = %T (%v), want %T", tt.target, err, err, tt.errTarget)
				}
				if err == nil {
					t.Errorf("Resolve(%q) succeeded, want error", tt.target)
				}
				if plan != nil {
					t.Errorf("Resolve(%q) returned a plan alongside an error", tt.target)
				}
				return
			}

			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.target, err)
			}
			got := planNames(plan)
			if !reflect.DeepEqual(got, tt.wantPlan) {
				t.Errorf("Resolve(%q) = %v, want %v", tt.target, got, tt.wantPlan)
			}
			assertTopological(t, g, plan)
		})
	}
}

// TestResolveDeterministic verifies that resolving the same graph twice
// yields identical plans.
func TestResolveDeterministic(t *testing.T) {
	g := New()
	g.Define(&Task{Name: "fmt"})
	g.Define(&Task{Name: "vet", Deps: []string{"fmt"}})
	g.Define(&Task{Name: "test", Deps: []string{"fmt"}})
	g.Define(&Task{Name: "build", Deps: []string{"vet", "test"}})

	first, err := g.Resolve("build")
	if err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	second, err := g.Resolve("build")
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}

	if !reflect.DeepEqual(planNames(first), planNames(second)) {
		t.Errorf("Resolution not deterministic: %v vs %v", planNames(first), planNames(second))
	}
}

// TestResolveCycleMembers verifies the cycle error names the participants.
func TestResolveCycleMembers(t *testing.T) {
	g := New()
	g.Define(&Task{Name: "a", Deps: []string{"b"}})
	g.Define(&Task{Name: "b", Deps: []string{"a"}})

	_, err := g.Resolve("a")
	var cyc *CycleError
	if !errors.As(err, &cyc) {
		t.Fatalf("Expected CycleError, got %T: %v", err, err)
	}

	members := map[string]bool{}
	for _, m := range cyc.Members {
		members[m] = true
	}
	if !members["a"] || !members["b"] {
		t.Errorf("Cycle members = %v, want both %q and %q", cyc.Members, "a", "b")
	}
	if !strings.Contains(cyc.Error(), "cycle") {
		t.Errorf("Error message %q should mention the cycle", cyc.Error())
	}
}

// TestValidate tests whole-graph validation.
func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		setup     func() *Graph
		wantErr   bool
		errTarget any
	}{
		{
			name: "valid graph with disconnected components",
			setup: func() *Graph {
				g := New()
				g.Define(&Task{Name: "a"})
				g.Define(&Task{Name: "b", Deps: []string{"a"}})
				g.Define(&Task{Name: "c"})
				g.Define(&Task{Name: "d", Deps: []string{"c"}})
				return g
			},
		},
		{
			name: "missing prerequisite",
			setup: func() *Graph {
				g := New()
				g.Define(&Task{Name: "a", Deps: []string{"nonexistent"}})
				return g
			},
			wantErr:   true,
			errTarget: new(*UnknownTaskError),
		},
		{
			name: "cycle",
			setup: func() *Graph {
				g := New()
				g.Define(&Task{Name: "a", Deps: []string{"b"}})
				g.Define(&Task{Name: "b", Deps: []string{"a"}})
				return g
			},
			wantErr:   true,
			errTarget: new(*CycleError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := tt.setup()
			order, err := g.Validate()

			if tt.wantErr {
				if err == nil {
					t.Fatal("Validate() succeeded, want error")
				}
				if tt.errTarget != nil && !errors.As(err, tt.errTarget) {
					t.Errorf("Validate() error = %T (%v), want %T", err, err, tt.errTarget)
				}
				return
			}

			if err != nil {
				t.Fatalf("Validate() failed: %v", err)
			}
			if len(order) != g.Len() {
				t.Errorf("Validate() returned %d names, graph has %d tasks", len(order), g.Len())
			}
		})
	}
}

// TestGraphImmutability verifies that mutating a returned task does not
// affect the stored definition.
func TestGraphImmutability(t *testing.T) {
	g := New()
	g.Define(&Task{Name: "build", Deps: []string{"test"}, Commands: []string{"cmdB"}})
	g.Define(&Task{Name: "test"})

	got, _ := g.Get("build")
	got.Commands[0] = "tampered"
	got.Deps[0] = "tampered"

	fresh, _ := g.Get("build")
	if fresh.Commands[0] != "cmdB" || fresh.Deps[0] != "test" {
		t.Error("Mutating a returned task leaked into the graph")
	}
}

func planNames(plan []*Task) []string {
	names := make([]string, 0, len(plan))
	for _, task := range plan {
		names = append(names, task.Name)
	}
	return names
}

// assertTopological checks that every task in the plan appears after all of
// its prerequisites and exactly once.
func assertTopological(t *testing.T, g *Graph, plan []*Task) {
	t.Helper()

	position := make(map[string]int, len(plan))
	for i, task := range plan {
		if _, seen := position[task.Name]; seen {
			t.Errorf("Task %q appears more than once in plan", task.Name)
		}
		position[task.Name] = i
	}

	for i, task := range plan {
		for _, dep := range task.Deps {
			depPos, ok := position[dep]
			if !ok {
				t.Errorf("Plan omits prerequisite %q of %q", dep, task.Name)
				continue
			}
			if depPos >= i {
				t.Errorf("Prerequisite %q at %d does not precede %q at %d", dep, depPos, task.Name, i)
			}
		}
	}
}
