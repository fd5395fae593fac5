package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Shared styles for the run view.
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	StyleOutputBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	StyleTaskPending = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	StyleTaskRunning = lipgloss.NewStyle().
				Foreground(lipgloss.Color("62")).
				Bold(true)

	StyleTaskSucceeded = lipgloss.NewStyle().
				Foreground(lipgloss.Color("10"))

	StyleTaskFailed = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	StyleOutputLine = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	StyleStderrLine = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	StyleHelp = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)
