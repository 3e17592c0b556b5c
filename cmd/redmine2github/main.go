package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/petr-muller/redmine2github/internal/config"
	"github.com/petr-muller/redmine2github/internal/flagutil"
)

const envFileFlag = "env-file"

type rootOptions struct {
	logLevel   string
	configFile string
	envFile    string

	github flagutil.GitHubOptions
}

func main() {
	// Flag defaults come from the environment, so the env file is loaded before flags exist
	if err := config.LoadEnv(envFileFromArgs(os.Args[1:])); err != nil {
		logrus.WithError(err).Fatal("cannot load environment")
	}

	if err := fang.Execute(context.Background(), newRootCmd()); err != nil {
		logrus.WithError(err).Fatal("command failed")
	}
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "redmine2github",
		Short: "Migrate Redmine issues to GitHub",
		Long: `redmine2github migrates issues exported from Redmine to a GitHub repository.

Issues are created through the GitHub issue import API in ascending Redmine id order,
and the mapping between Redmine ids and GitHub issue numbers is stored in a file.
A second pass uses the mapping to add cross-references between migrated issues.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.complete(cmd)
		},
	}

	fs := rootCmd.PersistentFlags()
	fs.StringVar(&o.logLevel, "log-level", logrus.InfoLevel.String(), "Logging level (trace, debug, info, warn, error)")
	fs.StringVar(&o.configFile, "config", "", "YAML file with migration settings, flags given on the command line take precedence")
	fs.StringVar(&o.envFile, envFileFlag, "", fmt.Sprintf("File with environment defaults (default %s when present)", config.DefaultEnvFile))
	o.github.AddPFlags(fs)

	rootCmd.AddCommand(
		newMigrateCmd(o),
		newLinkCmd(o),
		newCloseCmd(o),
		newMappingCmd(o),
	)

	return rootCmd
}

// complete sets up logging and applies the run file to the flags of the executed command
func (o *rootOptions) complete(cmd *cobra.Command) error {
	level, err := logrus.ParseLevel(o.logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	logrus.SetLevel(level)

	if o.configFile == "" {
		return nil
	}
	run, err := config.LoadRunFile(o.configFile)
	if err != nil {
		return err
	}
	return run.ApplyTo(cmd.Flags())
}

// envFileFromArgs finds the --env-file value before cobra parses the command line
func envFileFromArgs(args []string) string {
	flag := "--" + envFileFlag
	for i, arg := range args {
		switch {
		case arg == "--":
			return ""
		case arg == flag && i+1 < len(args):
			return args[i+1]
		case strings.HasPrefix(arg, flag+"="):
			return strings.TrimPrefix(arg, flag+"=")
		}
	}
	return ""
}
