package graph

import (
	"sync"

	"github.com/gammazero/toposort"
)

// Graph holds the task definitions and their prerequisite relation.
// Tasks are registered once at load time and immutable afterwards.
type Graph struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	order []string // declaration order, drives deterministic tie-breaking
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		tasks: make(map[string]*Task),
	}
}

// Define registers a task. Returns DuplicateTaskError if the name is taken.
func (g *Graph) Define(task *Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.tasks[task.Name]; exists {
		return &DuplicateTaskError{Name: task.Name}
	}

	g.tasks[task.Name] = cloneTask(task)
	g.order = append(g.order, task.Name)
	return nil
}

// Get returns a copy of the task with the given name.
func (g *Graph) Get(name string) (*Task, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	task, exists := g.tasks[name]
	if !exists {
		return nil, false
	}
	return cloneTask(task), true
}

// Tasks returns all tasks in declaration order.
func (g *Graph) Tasks() []*Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tasks := make([]*Task, 0, len(g.order))
	for _, name := range g.order {
		tasks = append(tasks, cloneTask(g.tasks[name]))
	}
	return tasks
}

// Len returns the number of defined tasks.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tasks)
}

// Resolve computes the execution plan for the named task: the task and its
// transitive prerequisites, each exactly once, prerequisites always before
// dependents. Prerequisites are visited in declared order, so resolution is
// deterministic.
//
// Returns UnknownTaskError if the task or any reachable prerequisite is not
// defined, and CycleError if the traversal finds a back-edge.
func (g *Graph) Resolve(name string) ([]*Task, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var (
		plan     []*Task
		visiting = make(map[string]bool)
		done     = make(map[string]bool)
		stack    []string
	)

	var visit func(n string) error
	visit = func(n string) error {
		if done[n] {
			return nil
		}
		if visiting[n] {
			// Back-edge: the cycle is the stack suffix starting at n.
			for i, m := range stack {
				if m == n {
					return &CycleError{Members: append([]string(nil), stack[i:]...)}
				}
			}
			return &CycleError{Members: []string{n}}
		}

		task, exists := g.tasks[n]
		if !exists {
			return &UnknownTaskError{Name: n}
		}

		visiting[n] = true
		stack = append(stack, n)

		for _, dep := range task.Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		delete(visiting, n)
		done[n] = true
		plan = append(plan, cloneTask(task))
		return nil
	}

	if err := visit(name); err != nil {
		return nil, err
	}
	return plan, nil
}

// Validate checks the whole graph at once: every prerequisite must be
// defined and the relation must be acyclic. Returns a topological ordering
// of all task names on success. Used by the manifest loader so a malformed
// graph is rejected before any command runs.
func (g *Graph) Validate() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// Every referenced prerequisite must exist.
	for _, name := range g.order {
		for _, dep := range g.tasks[name].Deps {
			if _, exists := g.tasks[dep]; !exists {
				return nil, &UnknownTaskError{Name: dep}
			}
		}
	}

	// Build edges in declaration order for the topological sort.
	var edges []toposort.Edge
	for _, name := range g.order {
		task := g.tasks[name]
		if len(task.Deps) == 0 {
			// Root task: anchor it with a nil source so it appears in the result.
			edges = append(edges, toposort.Edge{nil, name})
			continue
		}
		for _, dep := range task.Deps {
			edges = append(edges, toposort.Edge{dep, name})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, &CycleError{Members: g.cycleMembersLocked()}
	}

	order := make([]string, 0, len(g.tasks))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	return order, nil
}

// cycleMembersLocked recovers the names participating in a cycle after the
// topological sort failed. It re-runs the DFS from every task; the first
// back-edge found names the cycle. Caller must hold at least a read lock.
func (g *Graph) cycleMembersLocked() []string {
	visiting := make(map[string]bool)
	done := make(map[string]bool)
	var stack []string
	var members []string

	var visit func(n string) bool
	visit = func(n string) bool {
		if done[n] {
			return false
		}
		if visiting[n] {
			for i, m := range stack {
				if m == n {
					members = append([]string(nil), stack[i:]...)
					return true
				}
			}
			members = []string{n}
			return true
		}
		task, exists := g.tasks[n]
		if !exists {
			return false
		}
		visiting[n] = true
		stack = append(stack, n)
		for _, dep := range task.Deps {
			if visit(dep) {
				return true
			}
		}
		stack = stack[:len(stack)-1]
		delete(visiting, n)
		done[n] = true
		return false
	}

	for _, name := range g.order {
		if visit(name) {
			return members
		}
	}
	return nil
}
