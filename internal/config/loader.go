package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// LoadSettings reads and merges settings from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func LoadSettings(globalPath, projectPath string) (*Settings, error) {
	settings := DefaultSettings()

	if globalPath != "" {
		if err := mergeSettingsFile(settings, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeSettingsFile(settings, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return settings, nil
}

// DefaultPaths returns the conventional settings locations.
// Global: $XDG_CONFIG_HOME/conveyor/config.json
// Project: .conveyor/config.json (relative to cwd)
func DefaultPaths() (globalPath, projectPath string) {
	globalPath = filepath.Join(xdg.ConfigHome, "conveyor", "config.json")
	projectPath = filepath.Join(".conveyor", "config.json")
	return globalPath, projectPath
}

// LoadDefaultSettings loads settings from the conventional paths.
func LoadDefaultSettings() (*Settings, error) {
	globalPath, projectPath := DefaultPaths()
	return LoadSettings(globalPath, projectPath)
}

// mergeSettingsFile reads a JSON settings file and merges it into base.
// Missing files are silently skipped. Malformed JSON returns an error.
func mergeSettingsFile(base *Settings, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing file is not an error
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	// Decode into a raw map first so we can tell "field absent" apart from
	// "field set to its zero value".
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	var loaded Settings
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if _, ok := raw["shell"]; ok {
		base.Shell = loaded.Shell
	}
	if _, ok := raw["history_path"]; ok {
		base.HistoryPath = loaded.HistoryPath
	}
	if _, ok := raw["log_level"]; ok {
		base.LogLevel = loaded.LogLevel
	}
	for key, value := range loaded.Env {
		base.Env[key] = value
	}

	return nil
}
