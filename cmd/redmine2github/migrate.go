package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/petr-muller/redmine2github/internal/config"
	"github.com/petr-muller/redmine2github/internal/mapping"
	"github.com/petr-muller/redmine2github/internal/migration"
)

// noEnd is the --end value meaning the migration runs up to the highest exported id
const noEnd = -1

// sourceOptions are the flags shared by all commands reading the Redmine export
type sourceOptions struct {
	issues         string
	mappingPath    string
	defaultMapping string
	redmineServer  string
}

func (o *sourceOptions) addFlags(fs *pflag.FlagSet) {
	var err error
	if o.defaultMapping, err = mapping.DefaultPath(); err != nil {
		logrus.WithError(err).Warn("Cannot determine default mapping file location")
	}
	fs.StringVar(&o.issues, "issues", "", "Directory holding the exported Redmine issues, one <id>.json file per issue")
	fs.StringVar(&o.mappingPath, "mapping", o.defaultMapping, "File storing the mapping between Redmine ids and GitHub issue numbers")
	fs.StringVar(&o.redmineServer, "redmine-server", os.Getenv(config.EnvRedmineServer), "Base URL of the Redmine server, used for links back to Redmine issues")
}

func (o *sourceOptions) validate() error {
	var errs []error
	if o.issues == "" {
		errs = append(errs, errors.New("--issues must be specified"))
	}
	if o.mappingPath == "" {
		errs = append(errs, errors.New("--mapping must be specified"))
	}
	return errors.Join(errs...)
}

// ensureDataDir creates the data directory when the default mapping file is used
func (o *sourceOptions) ensureDataDir() error {
	if o.mappingPath == "" || o.mappingPath != o.defaultMapping {
		return nil
	}
	return mapping.EnsureDir(o.mappingPath)
}

// migrationOptions are the flags of the commands running a migration
type migrationOptions struct {
	sourceOptions

	users      string
	labels     string
	milestones string

	start               int
	end                 int
	includeRedmineLinks bool

	// creation pass only
	includeComments    bool
	includeAssignee    bool
	insertPlaceholders bool
	fixIssueMentions   bool
	resubmitMapped     bool
	checkpointEvery    int
	skipLink           bool

	dryRun bool
}

func (o *migrationOptions) addFlags(fs *pflag.FlagSet) {
	o.sourceOptions.addFlags(fs)
	fs.StringVar(&o.users, "users", "", "YAML file mapping Redmine user names to GitHub logins")
	fs.StringVar(&o.labels, "labels", "", "YAML file mapping Redmine trackers, priorities, categories and statuses to GitHub labels")
	fs.StringVar(&o.milestones, "milestones", "", "YAML file mapping Redmine versions to GitHub milestone numbers")
	fs.IntVar(&o.start, "start", 0, "Lowest Redmine id to migrate")
	fs.IntVar(&o.end, "end", noEnd, "Highest Redmine id to migrate, -1 for no limit")
	fs.BoolVar(&o.includeRedmineLinks, "include-redmine-links", true, "Link back to the Redmine issues")
}

func (o *migrationOptions) addCreateFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.includeComments, "include-comments", true, "Migrate Redmine journal notes as comments")
	fs.BoolVar(&o.includeAssignee, "include-assignee", true, "Assign GitHub issues to the mapped Redmine assignee")
	fs.BoolVar(&o.insertPlaceholders, "insert-placeholders", false, "Create closed placeholder issues for missing Redmine ids so GitHub numbers follow Redmine ids")
	fs.BoolVar(&o.fixIssueMentions, "fix-issue-mentions", false, "Rewrite #<id> mentions of already migrated Redmine issues to their GitHub numbers")
	fs.BoolVar(&o.resubmitMapped, "resubmit-mapped", false, "Submit issues again even when the mapping already holds them")
	fs.IntVar(&o.checkpointEvery, "checkpoint-every", 0, "Resolve and save the mapping after this many submissions, 0 saves it only at the end")
	fs.BoolVar(&o.skipLink, "skip-link", false, "Do not run the cross-reference pass after creating issues")
}

func (o *migrationOptions) validate() error {
	errs := []error{o.sourceOptions.validate()}
	if o.end < noEnd {
		errs = append(errs, fmt.Errorf("--end must be %d or a Redmine id, got %d", noEnd, o.end))
	}
	return errors.Join(errs...)
}

func (o *migrationOptions) migrationRange() migration.Range {
	r := migration.Range{Start: o.start}
	if o.end != noEnd {
		end := o.end
		r.End = &end
	}
	return r
}

func (o *migrationOptions) options(create, link bool) migration.Options {
	return migration.Options{
		Range:               o.migrationRange(),
		IncludeComments:     o.includeComments,
		IncludeAssignee:     o.includeAssignee,
		IncludeRedmineLinks: o.includeRedmineLinks,
		InsertPlaceholders:  o.insertPlaceholders,
		FixIssueMentions:    o.fixIssueMentions,
		ResubmitMapped:      o.resubmitMapped,
		CheckpointEvery:     o.checkpointEvery,
		Create:              create,
		Link:                link,
	}
}

func (o *migrationOptions) config(client migration.ImportClient) migration.Config {
	return migration.Config{
		RecordDir:      o.issues,
		MappingPath:    o.mappingPath,
		UserTable:      o.users,
		LabelTable:     o.labels,
		MilestoneTable: o.milestones,
		RedmineServer:  o.redmineServer,
		Importer:       client,
	}
}

func newMigrateCmd(root *rootOptions) *cobra.Command {
	o := &migrationOptions{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create GitHub issues for exported Redmine issues",
		Long: `Create GitHub issues for exported Redmine issues in ascending id order.

Issues are submitted through the GitHub issue import API. Once all submissions are
processed by GitHub, their issue numbers are stored in the mapping file. Unless
--skip-link is given, the cross-reference pass runs afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigration(cmd.Context(), root, o, o.options(true, !o.skipLink))
		},
	}
	o.addFlags(cmd.Flags())
	o.addCreateFlags(cmd.Flags())
	return cmd
}

func newLinkCmd(root *rootOptions) *cobra.Command {
	o := &migrationOptions{}
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Add cross-references between migrated GitHub issues",
		Long: `Add related issues and sub-issues to the descriptions of migrated GitHub issues.

Only issues present in the mapping file are updated, and references to Redmine
issues that were not migrated are listed by their Redmine id only. Running the
command again replaces the section it added before.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigration(cmd.Context(), root, o, o.options(false, true))
		},
	}
	o.addFlags(cmd.Flags())
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "Log issue edits instead of performing them")
	return cmd
}

func runMigration(ctx context.Context, root *rootOptions, o *migrationOptions, options migration.Options) error {
	if err := o.validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	if err := root.github.Validate(); err != nil {
		return fmt.Errorf("invalid GitHub options: %w", err)
	}
	if err := o.ensureDataDir(); err != nil {
		return err
	}

	client, err := root.github.ImportClient(o.dryRun)
	if err != nil {
		return err
	}
	logrus.Infof("Migrating Redmine issues from %s to %s", o.issues, client.Repository())

	result, err := migration.New(o.config(client), options).Run(ctx)
	logResult(result)
	return err
}

func logResult(result *migration.Result) {
	logrus.WithFields(logrus.Fields{
		"state":        result.State.String(),
		"submitted":    result.Submitted,
		"placeholders": result.Placeholders,
		"skipped":      result.Skipped,
		"resolved":     result.Resolved,
		"unresolved":   result.Unresolved,
		"linked":       result.Linked,
		"linkSkipped":  result.LinkSkipped,
		"linkFailures": result.LinkFailures,
	}).Info("Migration finished")
}
