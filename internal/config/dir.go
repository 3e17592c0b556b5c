package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	appName       = "redmine2github"
	tokenFileName = "github-token"
)

// ConfigDir returns the redmine2github directory in the user configuration directory
func ConfigDir() (string, error) {
	userDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot obtain user config dir: %w", err)
	}
	return filepath.Join(userDir, appName), nil
}

// MustConfigDir is ConfigDir for flag defaults, where there is no way to report an error
func MustConfigDir() string {
	dir, err := ConfigDir()
	if err != nil {
		panic(err)
	}
	return dir
}

// DefaultTokenPath is where the GitHub token file is looked up unless a path is given
func DefaultTokenPath() string {
	return filepath.Join(MustConfigDir(), tokenFileName)
}
