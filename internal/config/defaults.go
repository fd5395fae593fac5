package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// DefaultSettings returns the built-in runner settings.
func DefaultSettings() *Settings {
	return &Settings{
		Shell:       "sh -c",
		HistoryPath: filepath.Join(xdg.DataHome, "conveyor", "history.db"),
		LogLevel:    "info",
		Env:         map[string]string{},
	}
}
