package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/google/shlex"
	"golang.org/x/sync/errgroup"

	"github.com/conveyordev/conveyor/internal/config"
	"github.com/conveyordev/conveyor/internal/events"
	"github.com/conveyordev/conveyor/internal/history"
	"github.com/conveyordev/conveyor/internal/runner"
	"github.com/conveyordev/conveyor/internal/shell"
	"github.com/conveyordev/conveyor/internal/tui"
)

// Exit codes: 0 on success, 1 when a command fails, 2 for configuration
// errors (bad manifest, unknown task, cycle, duplicate).
const (
	exitOK        = 0
	exitRunFailed = 1
	exitConfig    = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("conveyor", flag.ContinueOnError)
	manifestPath := fs.String("f", config.DefaultManifestName, "manifest file")
	chdir := fs.String("C", "", "change to directory before loading the manifest")
	list := fs.Bool("list", false, "list defined tasks and exit")
	dryRun := fs.Bool("dry-run", false, "print the execution plan without running it")
	watch := fs.Bool("watch", false, "show a live view while the run executes")
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	if *chdir != "" {
		if err := os.Chdir(*chdir); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitConfig
		}
	}

	settings, err := config.LoadDefaultSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return exitConfig
	}
	logger := newLogger(settings.LogLevel)

	// Subcommands that don't need a loaded manifest
	switch fs.Arg(0) {
	case "init":
		return runInit(logger, *manifestPath)
	case "history":
		return runHistory(logger, settings, fs.Args()[1:])
	}

	manifest, err := config.LoadManifest(*manifestPath)
	if err != nil {
		logger.Error("manifest error", "err", err)
		return exitConfig
	}
	g, err := manifest.Graph()
	if err != nil {
		logger.Error("manifest error", "err", err)
		return exitConfig
	}

	if *list {
		for _, task := range g.Tasks() {
			label := task.Name
			if task.IsAggregate() {
				label += "*"
			}
			deps := ""
			if len(task.Deps) > 0 {
				deps = " <- " + strings.Join(task.Deps, ", ")
			}
			fmt.Printf("%s%s\n", label, deps)
		}
		return exitOK
	}

	// Like make, the first declared task is the default target.
	target := fs.Arg(0)
	if target == "" {
		target = manifest.Tasks[0].Name
	}

	if *dryRun {
		plan, err := g.Resolve(target)
		if err != nil {
			logger.Error("cannot resolve target", "target", target, "err", err)
			return exitConfig
		}
		for _, task := range plan {
			fmt.Println(task.Name)
		}
		return exitOK
	}

	// Signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pm := shell.NewProcessManager()
	go func() {
		<-ctx.Done()
		if err := pm.KillAll(); err != nil {
			logger.Warn("error killing subprocesses", "err", err)
		}
	}()

	shellArgv, err := parseShell(settings.Shell)
	if err != nil {
		logger.Error("bad shell setting", "shell", settings.Shell, "err", err)
		return exitConfig
	}
	proc := shell.NewLocalRunner(shellArgv, pm)

	bus := events.NewBus()
	defer bus.Close()

	var store history.Store
	if settings.HistoryPath != "" && settings.HistoryPath != "off" {
		s, err := history.NewSQLiteStore(ctx, settings.HistoryPath)
		if err != nil {
			logger.Warn("run history disabled", "err", err)
		} else {
			store = s
			defer s.Close()
		}
	}

	exec := runner.New(runner.Config{
		Bus:     bus,
		Store:   store,
		Logger:  logger,
		BaseEnv: settings.Env,
	}, g, proc)

	if *watch {
		return runWatch(ctx, logger, exec, bus, target)
	}
	return runPlain(ctx, logger, exec, bus, target)
}

// runPlain executes the target while echoing command output to the terminal.
func runPlain(ctx context.Context, logger *log.Logger, exec *runner.Executor, bus *events.Bus, target string) int {
	sub := bus.Subscribe(events.TopicCommand, 512)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sub {
			out, ok := ev.(events.CommandOutputEvent)
			if !ok {
				continue
			}
			if out.Stderr {
				fmt.Fprintln(os.Stderr, out.Line)
			} else {
				fmt.Println(out.Line)
			}
		}
	}()

	result, err := exec.Run(ctx, target)

	bus.Close()
	<-done

	return classify(logger, result, err)
}

// runWatch executes the target behind the live TUI. Quitting the TUI
// aborts the run.
func runWatch(ctx context.Context, logger *log.Logger, exec *runner.Executor, bus *events.Bus, target string) int {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(tui.New(bus, target), tea.WithAltScreen())

	var result *runner.Result
	var runErr error

	eg := new(errgroup.Group)
	eg.Go(func() error {
		defer cancel()
		_, err := p.Run()
		return err
	})
	eg.Go(func() error {
		result, runErr = exec.Run(runCtx, target)
		// The RunFinished event quits the TUI; Quit again in case the bus
		// dropped it.
		p.Quit()
		return nil
	})

	if err := eg.Wait(); err != nil {
		logger.Error("display error", "err", err)
	}

	return classify(logger, result, runErr)
}

// classify maps a run outcome to the process exit code.
func classify(logger *log.Logger, result *runner.Result, err error) int {
	if err != nil {
		logger.Error("configuration error", "err", err)
		return exitConfig
	}
	if result == nil || !result.Succeeded() {
		if result != nil && result.Failure != nil {
			f := result.Failure
			logger.Error("run failed", "task", f.Task, "command", f.Index, "exit", f.ExitCode)
		}
		return exitRunFailed
	}
	return exitOK
}

// runInit writes a starter manifest and a project config skeleton into the
// working directory.
func runInit(logger *log.Logger, path string) int {
	if err := config.WriteStarterManifest(path); err != nil {
		logger.Error("init failed", "err", err)
		return exitConfig
	}
	logger.Info("wrote starter manifest", "path", path)

	_, projectPath := config.DefaultPaths()
	if _, err := os.Stat(projectPath); os.IsNotExist(err) {
		skeleton := &config.Settings{Shell: config.DefaultSettings().Shell}
		if err := config.SaveSettings(skeleton, projectPath); err != nil {
			logger.Warn("could not write project config", "err", err)
		} else {
			logger.Info("wrote project config", "path", projectPath)
		}
	}
	return exitOK
}

// runHistory prints recent runs from the history database.
func runHistory(logger *log.Logger, settings *config.Settings, args []string) int {
	fs := flag.NewFlagSet("conveyor history", flag.ContinueOnError)
	limit := fs.Int("n", 20, "number of runs to show")
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	if settings.HistoryPath == "" || settings.HistoryPath == "off" {
		logger.Error("run history is disabled in settings")
		return exitConfig
	}

	ctx := context.Background()
	store, err := history.NewSQLiteStore(ctx, settings.HistoryPath)
	if err != nil {
		logger.Error("cannot open history", "err", err)
		return exitConfig
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, *limit)
	if err != nil {
		logger.Error("cannot list runs", "err", err)
		return exitConfig
	}

	for _, r := range runs {
		line := fmt.Sprintf("%s  %-10s %-9s %s", r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Target, r.Status, shortID(r.ID))
		if r.Status == history.StatusFailed && r.FailedTask != "" {
			line += fmt.Sprintf("  (%s #%d exit %d)", r.FailedTask, r.FailedCmd, r.ExitCode)
		}
		fmt.Println(line)
	}
	return exitOK
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// parseShell splits the shell setting into argv. An empty setting means
// direct exec mode.
func parseShell(setting string) ([]string, error) {
	if strings.TrimSpace(setting) == "" {
		return nil, nil
	}
	argv, err := shlex.Split(setting)
	if err != nil {
		return nil, err
	}
	return argv, nil
}

func newLogger(level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{Level: lvl})
}
