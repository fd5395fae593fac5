package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveSettings persists the settings to a JSON file.
// Creates parent directories if they don't exist.
func SaveSettings(settings *Settings, path string) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing settings to %s: %w", path, err)
	}

	return nil
}
