package utils

import (
	"os"
	"path/filepath"
)

// GetProjectRoot walks up from the working directory to the directory
// holding go.mod, falling back to ".".
func GetProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "."
}

// DefaultConfigPath is config.toml under the project root.
func DefaultConfigPath() string {
	return filepath.Join(GetProjectRoot(), "config.toml")
}
