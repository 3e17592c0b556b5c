package mapping

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	appName = "redmine2github"
	// defaultFileName is the name of the mapping file within the data directory
	defaultFileName = "redmine2github_map.json"
)

// DataDir returns the directory where redmine2github keeps its state:
// $XDG_DATA_HOME/redmine2github, or ~/.local/share/redmine2github
func DataDir() (string, error) {
	if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
		return filepath.Join(xdgDataHome, appName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot obtain user home dir: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", appName), nil
}

// DefaultPath returns the default location of the mapping file
func DefaultPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, defaultFileName), nil
}

// EnsureDir creates the directory holding the mapping file at path
func EnsureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("cannot create directory for mapping file %s: %w", path, err)
	}
	return nil
}
