package runner

import (
	"fmt"
	"time"
)

// State is the run state machine:
// Pending -> Running -> Succeeded | Failed. Terminal states are Succeeded
// and Failed; there is no partial success.
type State int

const (
	StatePending State = iota
	StateRunning
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CommandError identifies the command that aborted a run: the task it
// belongs to, its index within the task's command list, and how it exited.
type CommandError struct {
	Task     string
	Command  string
	Index    int
	ExitCode int
	Err      error // Infrastructure or cancellation error, nil for a plain non-zero exit
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task %q: command %d (%q): %v", e.Task, e.Index, e.Command, e.Err)
	}
	return fmt.Sprintf("task %q: command %d (%q) exited with status %d", e.Task, e.Index, e.Command, e.ExitCode)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Result is the outcome of one run.
type Result struct {
	RunID    string
	Target   string
	State    State
	Plan     []string      // Resolved execution order
	Failure  *CommandError // Set when State is StateFailed
	Duration time.Duration
}

// Succeeded reports whether the run reached the successful terminal state.
func (r *Result) Succeeded() bool {
	return r.State == StateSucceeded
}
