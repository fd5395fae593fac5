package config

// Settings is the runner configuration merged from defaults, the global
// config file, and the project config file.
type Settings struct {
	// Shell wraps every command, e.g. "sh -c". Empty string means commands
	// are split into argv and executed directly.
	Shell string `json:"shell"`

	// HistoryPath is the SQLite run-history database location.
	// "off" disables history recording.
	HistoryPath string `json:"history_path,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// Env is extra environment applied to every command, below per-task env.
	Env map[string]string `json:"env,omitempty"`
}
