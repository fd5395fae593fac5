package graph

import (
	"fmt"
	"strings"
)

// DuplicateTaskError is returned by Define when a task name is already taken.
type DuplicateTaskError struct {
	Name string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task %q already defined", e.Name)
}

// UnknownTaskError is returned when a requested task, or a prerequisite
// reachable from it, is not defined in the graph.
type UnknownTaskError struct {
	Name string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task %q", e.Name)
}

// CycleError is returned when the prerequisite relation contains a cycle.
// Members lists the task names participating in the cycle, in traversal order.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	if len(e.Members) == 0 {
		return "dependency cycle detected"
	}
	return fmt.Sprintf("dependency cycle: %s -> %s", strings.Join(e.Members, " -> "), e.Members[0])
}
