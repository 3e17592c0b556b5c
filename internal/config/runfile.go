package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// RunFile holds migration settings read from a YAML file. Every field corresponds to
// a command line flag of the same meaning; unset fields leave the flag alone.
type RunFile struct {
	Issues         string `yaml:"issues"`
	Mapping        string `yaml:"mapping"`
	UserTable      string `yaml:"users"`
	LabelTable     string `yaml:"labels"`
	MilestoneTable string `yaml:"milestones"`
	RedmineServer  string `yaml:"redmineServer"`

	Start *int `yaml:"start"`
	End   *int `yaml:"end"`

	IncludeComments     *bool `yaml:"includeComments"`
	IncludeAssignee     *bool `yaml:"includeAssignee"`
	IncludeRedmineLinks *bool `yaml:"includeRedmineLinks"`
	InsertPlaceholders  *bool `yaml:"insertPlaceholders"`
	FixIssueMentions    *bool `yaml:"fixIssueMentions"`
	ResubmitMapped      *bool `yaml:"resubmitMapped"`
	CheckpointEvery     *int  `yaml:"checkpointEvery"`

	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
}

// LoadRunFile reads a run file. Unknown keys are rejected.
func LoadRunFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	var run RunFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&run); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse run file %s: %w", path, err)
	}
	return &run, nil
}

// Values returns the flag values the run file sets, keyed by flag name
func (r *RunFile) Values() map[string]string {
	values := map[string]string{}
	setString := func(flag, value string) {
		if value != "" {
			values[flag] = value
		}
	}
	setInt := func(flag string, value *int) {
		if value != nil {
			values[flag] = strconv.Itoa(*value)
		}
	}
	setBool := func(flag string, value *bool) {
		if value != nil {
			values[flag] = strconv.FormatBool(*value)
		}
	}

	setString("issues", r.Issues)
	setString("mapping", r.Mapping)
	setString("users", r.UserTable)
	setString("labels", r.LabelTable)
	setString("milestones", r.MilestoneTable)
	setString("redmine-server", r.RedmineServer)
	setString("github.owner", r.Owner)
	setString("github.repo", r.Repo)
	setInt("start", r.Start)
	setInt("end", r.End)
	setInt("checkpoint-every", r.CheckpointEvery)
	setBool("include-comments", r.IncludeComments)
	setBool("include-assignee", r.IncludeAssignee)
	setBool("include-redmine-links", r.IncludeRedmineLinks)
	setBool("insert-placeholders", r.InsertPlaceholders)
	setBool("fix-issue-mentions", r.FixIssueMentions)
	setBool("resubmit-mapped", r.ResubmitMapped)
	return values
}

// ApplyTo sets flags from the run file. Flags set explicitly on the command line win,
// and values for flags the command does not have are ignored.
func (r *RunFile) ApplyTo(fs *pflag.FlagSet) error {
	values := r.Values()
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if fs.Lookup(name) == nil || fs.Changed(name) {
			continue
		}
		if err := fs.Set(name, values[name]); err != nil {
			return fmt.Errorf("run file sets invalid value for %s: %w", name, err)
		}
	}
	return nil
}
