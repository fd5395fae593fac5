package runner

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/conveyordev/conveyor/internal/events"
	"github.com/conveyordev/conveyor/internal/graph"
	"github.com/conveyordev/conveyor/internal/history"
	"github.com/conveyordev/conveyor/internal/shell"
)

// Config wires the executor's collaborators. Bus and Store are optional;
// a nil Logger discards log output.
type Config struct {
	Bus     *events.Bus
	Store   history.Store
	Logger  *log.Logger
	BaseEnv map[string]string // Applied to every command, below per-task env
}

// Executor resolves a target into an execution plan and runs it
// sequentially, fail-fast: the first command that exits non-zero aborts the
// whole run, and nothing after it executes. Commands go through the
// injected process runner, so the executor never knows what they do, only
// how they exited.
type Executor struct {
	cfg   Config
	graph *graph.Graph
	proc  shell.Runner
}

// New creates an Executor over the given graph and process runner.
func New(cfg Config, g *graph.Graph, proc shell.Runner) *Executor {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	return &Executor{
		cfg:   cfg,
		graph: g,
		proc:  proc,
	}
}

// Run resolves the target and executes its plan.
//
// Configuration errors (unknown task, cycle) are returned as errors before
// any command runs. A failing command is NOT an error return: it yields a
// Result in StateFailed whose Failure names the task, command index, and
// exit status. No command is ever retried.
func (e *Executor) Run(ctx context.Context, target string) (*Result, error) {
	plan, err := e.graph.Resolve(target)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:  uuid.NewString(),
		Target: target,
		State:  StateRunning,
		Plan:   planNames(plan),
	}
	started := time.Now()

	e.cfg.Logger.Info("run started", "run", result.RunID, "target", target, "tasks", len(plan))
	e.publish(events.TopicRun, events.RunStartedEvent{RunID: result.RunID, Target: target, Timestamp: started})
	e.publish(events.TopicRun, events.PlanResolvedEvent{RunID: result.RunID, Plan: result.Plan, Timestamp: started})

	e.recordStart(ctx, result, started)

	for i, task := range plan {
		taskStart := time.Now()
		e.cfg.Logger.Info("task started", "task", task.Name, "position", i+1, "of", len(plan))
		e.publish(events.TopicTask, events.TaskStartedEvent{
			RunID:     result.RunID,
			Name:      task.Name,
			Position:  i,
			Total:     len(plan),
			Timestamp: taskStart,
		})

		cmdErr := e.runTask(ctx, result.RunID, task)
		taskDuration := time.Since(taskStart)

		if cmdErr != nil {
			e.cfg.Logger.Error("task failed", "task", task.Name, "command", cmdErr.Index, "exit", cmdErr.ExitCode)
			e.publish(events.TopicTask, events.TaskFinishedEvent{
				RunID:     result.RunID,
				Name:      task.Name,
				Err:       cmdErr,
				Duration:  taskDuration,
				Timestamp: time.Now(),
			})
			e.recordTask(ctx, result.RunID, i, task.Name, history.StatusFailed, taskDuration)

			result.State = StateFailed
			result.Failure = cmdErr
			break
		}

		e.cfg.Logger.Info("task finished", "task", task.Name, "duration", taskDuration)
		e.publish(events.TopicTask, events.TaskFinishedEvent{
			RunID:     result.RunID,
			Name:      task.Name,
			Duration:  taskDuration,
			Timestamp: time.Now(),
		})
		e.recordTask(ctx, result.RunID, i, task.Name, history.StatusSucceeded, taskDuration)
	}

	if result.State == StateRunning {
		result.State = StateSucceeded
	}
	result.Duration = time.Since(started)

	var finishErr error
	if result.Failure != nil {
		finishErr = result.Failure
	}
	e.publish(events.TopicRun, events.RunFinishedEvent{
		RunID:     result.RunID,
		Succeeded: result.Succeeded(),
		Err:       finishErr,
		Duration:  result.Duration,
		Timestamp: time.Now(),
	})
	e.recordFinish(ctx, result, started)
	e.cfg.Logger.Info("run finished", "run", result.RunID, "state", result.State.String(), "duration", result.Duration)

	return result, nil
}

// runTask executes the task's commands in declared order and returns the
// first failure, or nil when every command exits zero. An empty command
// list (pure aggregation node) succeeds immediately.
func (e *Executor) runTask(ctx context.Context, runID string, task *graph.Task) *CommandError {
	env := flattenEnv(e.cfg.BaseEnv, task.Env)

	sink := func(line string, stderr bool) {
		e.publish(events.TopicCommand, events.CommandOutputEvent{
			TaskName:  task.Name,
			Line:      line,
			Stderr:    stderr,
			Timestamp: time.Now(),
		})
	}

	for j, line := range task.Commands {
		// A cancelled run stops before the next command launches.
		if err := ctx.Err(); err != nil {
			return &CommandError{Task: task.Name, Command: line, Index: j, ExitCode: -1, Err: err}
		}

		e.publish(events.TopicCommand, events.CommandStartedEvent{
			RunID:     runID,
			TaskName:  task.Name,
			Index:     j,
			Command:   line,
			Timestamp: time.Now(),
		})

		info, err := e.proc.Run(ctx, shell.Command{Line: line, Dir: task.Dir, Env: env}, sink)
		if err != nil {
			return &CommandError{Task: task.Name, Command: line, Index: j, ExitCode: info.Code, Err: err}
		}
		if info.Code != 0 {
			return &CommandError{Task: task.Name, Command: line, Index: j, ExitCode: info.Code}
		}
	}

	return nil
}

func (e *Executor) publish(topic string, event events.Event) {
	if e.cfg.Bus != nil {
		e.cfg.Bus.Publish(topic, event)
	}
}

// History recording is best-effort: a broken store never aborts a run.

func (e *Executor) recordStart(ctx context.Context, result *Result, started time.Time) {
	if e.cfg.Store == nil {
		return
	}
	run := &history.Run{ID: result.RunID, Target: result.Target, StartedAt: started}
	if err := e.cfg.Store.StartRun(ctx, run); err != nil {
		e.cfg.Logger.Warn("failed to record run start", "err", err)
	}
}

func (e *Executor) recordTask(ctx context.Context, runID string, position int, name, status string, duration time.Duration) {
	if e.cfg.Store == nil {
		return
	}
	rec := &history.TaskRecord{
		RunID:    runID,
		Position: position,
		Name:     name,
		Status:   status,
		Duration: duration,
	}
	if err := e.cfg.Store.SaveTaskResult(ctx, rec); err != nil {
		e.cfg.Logger.Warn("failed to record task result", "task", name, "err", err)
	}
}

func (e *Executor) recordFinish(ctx context.Context, result *Result, started time.Time) {
	if e.cfg.Store == nil {
		return
	}
	run := &history.Run{
		ID:         result.RunID,
		Target:     result.Target,
		Status:     history.StatusSucceeded,
		FailedCmd:  -1,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if result.Failure != nil {
		run.Status = history.StatusFailed
		run.FailedTask = result.Failure.Task
		run.FailedCmd = result.Failure.Index
		run.ExitCode = result.Failure.ExitCode
	}
	if err := e.cfg.Store.FinishRun(ctx, run); err != nil {
		e.cfg.Logger.Warn("failed to record run finish", "err", err)
	}
}

// flattenEnv merges base and task environment into KEY=VALUE form, task
// entries overriding base ones.
func flattenEnv(base, task map[string]string) []string {
	if len(base) == 0 && len(task) == 0 {
		return nil
	}

	merged := make(map[string]string, len(base)+len(task))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range task {
		merged[k] = v
	}

	env := make([]string, 0, len(merged))
	for k, v := range merged {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

func planNames(plan []*graph.Task) []string {
	names := make([]string, 0, len(plan))
	for _, task := range plan {
		names = append(names, task.Name)
	}
	return names
}
