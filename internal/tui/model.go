package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/conveyordev/conveyor/internal/events"
)

// taskStatus is the display state of one plan entry.
type taskStatus int

const (
	statusPending taskStatus = iota
	statusRunning
	statusSucceeded
	statusFailed
)

// maxOutputLines bounds the output tail kept in memory.
const maxOutputLines = 200

type outputLine struct {
	text   string
	stderr bool
}

// Model is the root Bubble Tea model for the live run view.
type Model struct {
	target   string
	plan     []string
	statuses map[string]taskStatus
	output   []outputLine
	spinner  spinner.Model
	eventSub <-chan events.Event
	width    int
	height   int
	quitting bool
}

// New creates a run view subscribed to all events from the bus.
func New(bus *events.Bus, target string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StyleTaskRunning

	return Model{
		target:   target,
		statuses: make(map[string]taskStatus),
		spinner:  sp,
		eventSub: bus.SubscribeAll(256),
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.eventSub))
}

// waitForEvent returns a command that waits for the next event from the bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case events.PlanResolvedEvent:
		m.plan = msg.Plan
		for _, name := range msg.Plan {
			m.statuses[name] = statusPending
		}
		return m, waitForEvent(m.eventSub)

	case events.TaskStartedEvent:
		m.statuses[msg.Name] = statusRunning
		return m, waitForEvent(m.eventSub)

	case events.TaskFinishedEvent:
		if msg.Err != nil {
			m.statuses[msg.Name] = statusFailed
		} else {
			m.statuses[msg.Name] = statusSucceeded
		}
		return m, waitForEvent(m.eventSub)

	case events.CommandOutputEvent:
		m.output = append(m.output, outputLine{text: msg.Line, stderr: msg.Stderr})
		if len(m.output) > maxOutputLines {
			m.output = m.output[len(m.output)-maxOutputLines:]
		}
		return m, waitForEvent(m.eventSub)

	case events.RunFinishedEvent:
		return m, tea.Quit

	case events.Event:
		// Other event types just re-arm the wait
		return m, waitForEvent(m.eventSub)
	}

	return m, nil
}

// View renders the run view.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(StyleTitle.Render(fmt.Sprintf("conveyor · %s", m.target)))
	b.WriteString("\n\n")

	for _, name := range m.plan {
		b.WriteString("  ")
		b.WriteString(m.renderTask(name))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderOutput())
	b.WriteString("\n")
	b.WriteString(HelpView())

	return b.String()
}

func (m Model) renderTask(name string) string {
	switch m.statuses[name] {
	case statusRunning:
		return m.spinner.View() + StyleTaskRunning.Render(name)
	case statusSucceeded:
		return StyleTaskSucceeded.Render("✓ " + name)
	case statusFailed:
		return StyleTaskFailed.Render("✗ " + name)
	default:
		return StyleTaskPending.Render("○ " + name)
	}
}

// renderOutput shows the tail of command output that fits the window.
func (m Model) renderOutput() string {
	// Reserve room for title, plan, and help bar
	visible := m.height - len(m.plan) - 6
	if visible < 3 {
		visible = 3
	}
	if visible > len(m.output) {
		visible = len(m.output)
	}

	lines := make([]string, 0, visible)
	for _, out := range m.output[len(m.output)-visible:] {
		style := StyleOutputLine
		if out.stderr {
			style = StyleStderrLine
		}
		lines = append(lines, style.Render(out.text))
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	return StyleOutputBox.Width(width).Render(strings.Join(lines, "\n"))
}
