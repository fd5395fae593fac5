package graph

// Task represents a named unit of work in the pipeline.
type Task struct {
	Name     string            // Unique identifier
	Deps     []string          // Task names that must complete first, in declared order
	Commands []string          // Shell commands, executed in declared order
	Dir      string            // Working directory for commands ("" = process cwd)
	Env      map[string]string // Extra environment for commands
}

// IsAggregate reports whether the task only groups prerequisites and has no
// commands of its own. Aggregate tasks are valid targets.
func (t *Task) IsAggregate() bool {
	return len(t.Commands) == 0
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}

	cp := *task
	if task.Deps != nil {
		cp.Deps = append([]string(nil), task.Deps...)
	}
	if task.Commands != nil {
		cp.Commands = append([]string(nil), task.Commands...)
	}
	if task.Env != nil {
		cp.Env = make(map[string]string, len(task.Env))
		for k, v := range task.Env {
			cp.Env[k] = v
		}
	}
	return &cp
}
