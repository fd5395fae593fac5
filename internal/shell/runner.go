package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/shlex"
)

// Command is one opaque command invocation: the raw command line plus the
// working directory and environment it should run with.
type Command struct {
	Line string   // Raw command string from the manifest
	Dir  string   // Working directory ("" = inherit)
	Env  []string // Extra KEY=VALUE entries appended to the process environment
}

// ExitInfo describes how a finished process exited.
type ExitInfo struct {
	Code     int // Process exit code; 0 means success
	Duration time.Duration
}

// Sink receives one line of subprocess output at a time.
// stderr is true for lines read from the standard error stream.
type Sink func(line string, stderr bool)

// Runner executes a single command and reports its exit status.
// The executor only consumes the exit status; what the command does is
// opaque. Implementations must block until the process exits.
type Runner interface {
	Run(ctx context.Context, cmd Command, sink Sink) (ExitInfo, error)
}

// LocalRunner runs commands as local subprocesses.
//
// When Shell is non-empty (e.g. ["sh", "-c"]) the raw command line is
// passed to it as a single argument. When Shell is empty the line is split
// into argv with shlex and executed directly.
type LocalRunner struct {
	Shell []string
	pm    *ProcessManager
}

// NewLocalRunner creates a LocalRunner. pm may be nil, in which case
// subprocesses are not tracked for shutdown cleanup.
func NewLocalRunner(shellArgv []string, pm *ProcessManager) *LocalRunner {
	return &LocalRunner{
		Shell: append([]string(nil), shellArgv...),
		pm:    pm,
	}
}

// Run spawns the command and streams its output to sink line by line.
//
// The returned error covers infrastructure failures only (bad command line,
// spawn failure, context cancellation). A process that starts and exits
// non-zero is NOT an error here: the exit code is reported in ExitInfo and
// judged by the caller.
func (r *LocalRunner) Run(ctx context.Context, c Command, sink Sink) (ExitInfo, error) {
	argv, err := r.buildArgv(c.Line)
	if err != nil {
		return ExitInfo{}, err
	}

	cmd := newCommand(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return ExitInfo{}, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return ExitInfo{}, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return ExitInfo{}, fmt.Errorf("failed to start command: %w", err)
	}

	if r.pm != nil {
		r.pm.Track(cmd)
		defer r.pm.Untrack(cmd)
	}

	// Drain both pipes concurrently so the subprocess can never block on a
	// full pipe buffer before we call cmd.Wait().
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdoutPipe, sink, false)
	}()
	go func() {
		defer wg.Done()
		scanLines(stderrPipe, sink, true)
	}()
	wg.Wait()

	waitErr := cmd.Wait()
	info := ExitInfo{
		Code:     cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	// A cancelled context killed the process; surface that instead of the
	// synthetic exit status.
	if ctx.Err() != nil {
		return info, ctx.Err()
	}

	if waitErr != nil && info.Code < 0 {
		return info, fmt.Errorf("command terminated abnormally: %w", waitErr)
	}

	return info, nil
}

// buildArgv turns the raw command line into an argv vector.
func (r *LocalRunner) buildArgv(line string) ([]string, error) {
	if len(r.Shell) > 0 {
		return append(append([]string(nil), r.Shell...), line), nil
	}

	argv, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("parsing command %q: %w", line, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return argv, nil
}

// scanLines forwards each line from rd to the sink.
func scanLines(rd io.Reader, sink Sink, stderr bool) {
	if sink == nil {
		io.Copy(io.Discard, rd)
		return
	}

	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		sink(scanner.Text(), stderr)
	}
}
