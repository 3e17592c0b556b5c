// Package migration drives a Redmine to GitHub migration: it creates GitHub issues
// for Redmine issues in ascending id order, resolves their GitHub numbers into the
// identity mapping and then backfills cross-references between migrated issues.
package migration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"sigs.k8s.io/prow/pkg/github"

	"github.com/petr-muller/redmine2github/internal/importer"
	"github.com/petr-muller/redmine2github/internal/lookup"
	"github.com/petr-muller/redmine2github/internal/mapping"
	"github.com/petr-muller/redmine2github/internal/redmine"
	"github.com/petr-muller/redmine2github/internal/translate"
)

// ErrConfiguration marks problems with the migration setup found before any GitHub call
var ErrConfiguration = errors.New("invalid migration configuration")

const (
	// sinceMargin is subtracted from the run start when asking GitHub for imports
	sinceMargin = 10 * time.Second

	throttleEvery     = 2
	throttleLongEvery = 50
	throttlePause     = time.Second
)

// ImportClient is the part of the GitHub client a migration uses
type ImportClient interface {
	Submit(ctx context.Context, payload *importer.CreationPayload) (importer.ImportHandle, error)
	PollResolution(ctx context.Context, since time.Time) (map[importer.ImportHandle]int, error)
	FetchTicket(number int) (*github.Issue, error)
	ApplyUpdate(current *github.Issue, update importer.TicketUpdate) (*github.Issue, error)
}

// Config holds the inputs and collaborators of a migration
type Config struct {
	RecordDir   string
	MappingPath string

	// Lookup tables are optional, an empty path means no table
	UserTable      string
	LabelTable     string
	MilestoneTable string

	RedmineServer  string
	Markup         translate.Markup
	ClosedStatuses []string

	Importer ImportClient
	Logger   *logrus.Entry
	Sleep    func(ctx context.Context, d time.Duration) error
	Now      func() time.Time
}

// Options control what a migration run does
type Options struct {
	Range

	IncludeComments     bool
	IncludeAssignee     bool
	IncludeRedmineLinks bool
	// InsertPlaceholders creates placeholder issues for ids missing in the export so
	// GitHub numbers follow Redmine ids
	InsertPlaceholders bool
	FixIssueMentions   bool
	// ResubmitMapped submits issues again even when the mapping already holds them
	ResubmitMapped bool
	// CheckpointEvery resolves and saves the mapping after this many submissions, 0 disables it
	CheckpointEvery int

	Create bool
	Link   bool
}

// Result summarizes a migration run
type Result struct {
	State State

	Submitted    int
	Placeholders int
	Skipped      int
	Resolved     int
	Unresolved   int

	Linked       int
	LinkSkipped  int
	LinkFailures int
}

// Migration is a single run of the migration state machine
type Migration struct {
	config  Config
	options Options
	logger  *logrus.Entry

	records    *redmine.Store
	mapping    *mapping.Store
	translator *translate.Translator

	startedAt   time.Time
	submissions int
	result      Result
}

// New creates a migration run
func New(config Config, options Options) *Migration {
	if config.Logger == nil {
		config.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if config.Sleep == nil {
		config.Sleep = importer.SleepContext
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Migration{
		config:  config,
		options: options,
		logger:  config.Logger,
	}
}

// Mapping returns the identity mapping the run works with, nil before initialization
func (m *Migration) Mapping() *mapping.Store {
	return m.mapping
}

// Run drives the migration until it is done or fails. The returned result is never nil
// and holds the terminal state.
func (m *Migration) Run(ctx context.Context) (*Result, error) {
	m.startedAt = m.config.Now()

	steps := []struct {
		state State
		run   func(ctx context.Context) error
		skip  bool
	}{
		{state: Initializing, run: m.initialize},
		{state: Validating, run: m.validate},
		{state: Creating, run: m.create, skip: !m.options.Create},
		{state: Polling, run: m.poll, skip: !m.options.Create},
		{state: Linking, run: m.link, skip: !m.options.Link},
	}

	for _, step := range steps {
		if step.skip {
			continue
		}
		m.enter(step.state)
		if err := step.run(ctx); err != nil {
			failedIn := m.result.State
			m.enter(Failed)
			return m.finish(), fmt.Errorf("%s: %w", failedIn, err)
		}
	}

	m.enter(Done)
	return m.finish(), nil
}

func (m *Migration) enter(state State) {
	m.result.State = state
	m.logger.WithField("state", state.String()).Info("Entering migration state")
}

func (m *Migration) finish() *Result {
	result := m.result
	return &result
}

func (m *Migration) initialize(_ context.Context) error {
	store, err := mapping.Load(m.config.MappingPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	m.mapping = store
	m.logger.WithField("entries", store.Len()).Infof("Loaded identity mapping from %s", store.Path())

	cfg := translate.Config{
		Markup:         m.config.Markup,
		RedmineServer:  m.config.RedmineServer,
		ClosedStatuses: m.config.ClosedStatuses,
	}
	if path := m.config.UserTable; path != "" {
		if cfg.Users, err = lookup.LoadUsers(path); err != nil {
			return fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		m.logger.WithField("users", cfg.Users.Len()).Infof("Loaded user table from %s", path)
	}
	if path := m.config.LabelTable; path != "" {
		if cfg.Labels, err = lookup.LoadLabels(path); err != nil {
			return fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	}
	if path := m.config.MilestoneTable; path != "" {
		if cfg.Milestones, err = lookup.LoadMilestones(path); err != nil {
			return fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	}
	m.translator = translate.New(cfg)
	m.records = redmine.NewStore(m.config.RecordDir)
	return nil
}

func (m *Migration) validate(_ context.Context) error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...)))
	}

	if err := m.validateRecords(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrConfiguration, err))
	}

	for _, path := range []string{m.config.UserTable, m.config.LabelTable, m.config.MilestoneTable} {
		if path == "" {
			continue
		}
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			invalid("lookup table %s not found", path)
		}
	}

	if info, err := os.Stat(filepath.Dir(m.config.MappingPath)); err != nil || !info.IsDir() {
		invalid("directory for mapping file %s not found", m.config.MappingPath)
	}

	if m.options.Start < 0 {
		invalid("start offset must not be negative, got %d", m.options.Start)
	}
	if m.options.End != nil && *m.options.End < m.options.Start {
		invalid("end offset %d must not be lower than start offset %d", *m.options.End, m.options.Start)
	}
	if m.options.InsertPlaceholders && m.options.FixIssueMentions {
		invalid("placeholder insertion and issue mention rewriting cannot be combined")
	}
	if m.options.CheckpointEvery < 0 {
		invalid("checkpoint interval must not be negative, got %d", m.options.CheckpointEvery)
	}
	if m.config.Importer == nil {
		invalid("no GitHub client configured")
	}

	return errors.Join(errs...)
}

// validateRecords checks the export holds at least one issue that can be parsed
func (m *Migration) validateRecords() error {
	ids, err := m.records.TicketIDs()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("directory %s does not contain any Redmine issue", m.records.Dir())
	}

	var lastErr error
	for _, id := range ids {
		if _, err := m.records.Load(id); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("directory %s does not contain any well-formed Redmine issue: %w", m.records.Dir(), lastErr)
}
