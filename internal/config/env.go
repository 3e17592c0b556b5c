package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read from the working directory when present
const DefaultEnvFile = ".env"

const (
	EnvRedmineServer = "REDMINE_SERVER"
	EnvGitHubOwner   = "GITHUB_OWNER"
	EnvGitHubRepo    = "GITHUB_REPO"
)

// LoadEnv loads environment defaults from a dotenv file. Variables already set in the
// environment are kept. A missing DefaultEnvFile is not an error, any other missing file is.
func LoadEnv(path string) error {
	if path == "" {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && path == DefaultEnvFile {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("cannot load environment file %s: %w", path, err)
	}
	return nil
}
