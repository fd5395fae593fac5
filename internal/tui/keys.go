package tui

// Key bindings for the run view.
const (
	KeyQuit  = "q"
	KeyCtrlC = "ctrl+c"
)

// HelpView renders the help bar shown under the run view.
func HelpView() string {
	return StyleHelp.Render("q / ctrl+c: abort run")
}
