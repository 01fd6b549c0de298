package config

import (
	"os"
	"path/filepath"
)

// defaultDBPath returns the default run history database path.
//
// Returns: ~/.config/browsersync/runs.db.
func defaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./runs.db"
	}

	return filepath.Join(homeDir, ".config", "browsersync", "runs.db")
}

// DefaultConfigPath returns the per-user configuration file path.
//
// Returns: ~/.config/browsersync/config.yaml.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./browsersync.yaml"
	}

	return filepath.Join(homeDir, ".config", "browsersync", "config.yaml")
}
