package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	Task() string
}

// Topic constants
const (
	TopicRun     = "run"
	TopicTask    = "task"
	TopicCommand = "command"
)

// Event type constants
const (
	EventTypeRunStarted     = "run.started"
	EventTypePlanResolved   = "run.plan"
	EventTypeRunFinished    = "run.finished"
	EventTypeTaskStarted    = "task.started"
	EventTypeTaskFinished   = "task.finished"
	EventTypeCommandStarted = "command.started"
	EventTypeCommandOutput  = "command.output"
)

// RunStartedEvent is published when a run begins.
type RunStartedEvent struct {
	RunID     string
	Target    string
	Timestamp time.Time
}

func (e RunStartedEvent) EventType() string { return EventTypeRunStarted }
func (e RunStartedEvent) Task() string      { return "" }

// PlanResolvedEvent is published after the target's plan is computed,
// before any command runs.
type PlanResolvedEvent struct {
	RunID     string
	Plan      []string
	Timestamp time.Time
}

func (e PlanResolvedEvent) EventType() string { return EventTypePlanResolved }
func (e PlanResolvedEvent) Task() string      { return "" }

// RunFinishedEvent is published when a run reaches a terminal state.
type RunFinishedEvent struct {
	RunID     string
	Succeeded bool
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e RunFinishedEvent) EventType() string { return EventTypeRunFinished }
func (e RunFinishedEvent) Task() string      { return "" }

// TaskStartedEvent is published when a task begins execution.
type TaskStartedEvent struct {
	RunID     string
	Name      string
	Position  int // Index in the plan
	Total     int // Plan length
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) Task() string      { return e.Name }

// TaskFinishedEvent is published when a task completes or fails.
type TaskFinishedEvent struct {
	RunID     string
	Name      string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFinishedEvent) EventType() string { return EventTypeTaskFinished }
func (e TaskFinishedEvent) Task() string      { return e.Name }

// CommandStartedEvent is published before a command is handed to the
// process runner.
type CommandStartedEvent struct {
	RunID     string
	TaskName  string
	Index     int // Position in the task's command list
	Command   string
	Timestamp time.Time
}

func (e CommandStartedEvent) EventType() string { return EventTypeCommandStarted }
func (e CommandStartedEvent) Task() string      { return e.TaskName }

// CommandOutputEvent is published for each line a command writes.
type CommandOutputEvent struct {
	TaskName  string
	Line      string
	Stderr    bool
	Timestamp time.Time
}

func (e CommandOutputEvent) EventType() string { return EventTypeCommandOutput }
func (e CommandOutputEvent) Task() string      { return e.TaskName }
