// Package translate turns Redmine issues into GitHub issue import payloads and
// renders the cross-reference sections added to migrated issues afterwards
package translate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/petr-muller/redmine2github/internal/importer"
	"github.com/petr-muller/redmine2github/internal/lookup"
	"github.com/petr-muller/redmine2github/internal/redmine"
)

const noDescription = "no description"

// DefaultClosedStatuses are the Redmine status names migrated as closed GitHub issues
var DefaultClosedStatuses = []string{"Rejected", "Closed", "Resolved"}

// Markup converts Redmine text into GitHub flavored markdown
type Markup interface {
	ToMarkdown(text string) string
}

// Verbatim is a Markup that leaves text unchanged
type Verbatim struct{}

func (Verbatim) ToMarkdown(text string) string { return text }

// IdentityLookup resolves Redmine issue ids to GitHub issue numbers
type IdentityLookup interface {
	Lookup(source int) (int, bool)
}

// Config holds the collaborators a Translator delegates to
type Config struct {
	Users      *lookup.Users
	Labels     *lookup.Labels
	Milestones *lookup.Milestones
	Markup     Markup
	// RedmineServer is the base URL backlinks are rendered against
	RedmineServer  string
	ClosedStatuses []string
}

// Options control what a creation payload includes
type Options struct {
	IncludeComments     bool
	IncludeAssignee     bool
	IncludeRedmineLinks bool
	// RewriteMentions, when set, rewrites #<id> mentions of already migrated issues
	// to their GitHub numbers
	RewriteMentions IdentityLookup
}

// Translator builds GitHub payloads from Redmine issues
type Translator struct {
	users      *lookup.Users
	labels     *lookup.Labels
	milestones *lookup.Milestones
	markup     Markup
	server     string
	closed     sets.Set[string]
}

// New creates a Translator from its collaborators
func New(cfg Config) *Translator {
	markup := cfg.Markup
	if markup == nil {
		markup = Verbatim{}
	}
	closed := cfg.ClosedStatuses
	if len(closed) == 0 {
		closed = DefaultClosedStatuses
	}
	return &Translator{
		users:      cfg.Users,
		labels:     cfg.Labels,
		milestones: cfg.Milestones,
		markup:     markup,
		server:     strings.TrimSuffix(cfg.RedmineServer, "/"),
		closed:     sets.New(closed...),
	}
}

// RedmineLink returns the URL of the Redmine issue, or an empty string when no server is configured
func (t *Translator) RedmineLink(id int) string {
	if t.server == "" {
		return ""
	}
	return fmt.Sprintf("%s/issues/%d", t.server, id)
}

// IsClosed reports whether the Redmine status name is migrated as a closed issue
func (t *Translator) IsClosed(status string) bool {
	return t.closed.Has(status)
}

// CreationPayload builds the import payload for a Redmine issue
func (t *Translator) CreationPayload(ticket *redmine.Ticket, opts Options) (*importer.CreationPayload, error) {
	description := t.text(ticket.Description, opts.RewriteMentions)
	if strings.TrimSpace(description) == "" {
		description = noDescription
	}

	params := descriptionParams{
		ID:            ticket.ID,
		Description:   description,
		AuthorName:    ticket.Author,
		AuthorMention: t.mention(ticket.Author),
		Assignee:      ticket.AssignedTo,
		StartDate:     ticket.StartDate,
	}
	if opts.IncludeRedmineLinks {
		params.RedmineLink = t.RedmineLink(ticket.ID)
	}
	body, err := render(descriptionTemplate, params)
	if err != nil {
		return nil, fmt.Errorf("failed to render description: %w", err)
	}

	payload := &importer.CreationPayload{
		Issue: importer.Issue{
			Title:     ticket.Subject,
			Body:      body,
			CreatedAt: importer.Timestamp(ticket.CreatedOn),
			Closed:    t.IsClosed(ticket.Status.Name),
			Labels:    t.issueLabels(ticket),
		},
		Comments: []importer.Comment{},
	}
	if milestone, ok := t.milestones.Resolve(ticket.FixedVersion); ok {
		payload.Issue.Milestone = milestone
	}
	// GitHub rejects imports assigned to unknown logins, so only mapped assignees are sent
	if opts.IncludeAssignee {
		if login, ok := t.users.Resolve(ticket.AssignedTo); ok {
			payload.Issue.Assignee = login
		}
	}

	if opts.IncludeComments {
		comments, err := t.comments(ticket, opts.RewriteMentions)
		if err != nil {
			return nil, err
		}
		payload.Comments = comments
	}

	return payload, nil
}

// Placeholder builds the payload of a closed, empty issue keeping GitHub numbering
// aligned with a Redmine id that has no exported issue
func (t *Translator) Placeholder(id int) *importer.CreationPayload {
	return &importer.CreationPayload{
		Issue: importer.Issue{
			Title:  fmt.Sprintf("Placeholder for Redmine issue #%d", id),
			Closed: true,
		},
		Comments: []importer.Comment{},
	}
}

func (t *Translator) comments(ticket *redmine.Ticket, mentions IdentityLookup) ([]importer.Comment, error) {
	comments := []importer.Comment{}
	for _, journal := range ticket.Journals {
		params := commentParams{
			Text:          strings.TrimSpace(t.text(journal.Notes, mentions)),
			AuthorName:    journal.User,
			AuthorMention: t.mention(journal.User),
			Date:          importer.Timestamp(journal.CreatedOn),
		}
		// Only the change into the current status can be named from the export
		if journal.ChangedStatusTo(ticket.Status.ID) {
			params.NewStatus = ticket.Status.Name
		}
		if params.Text == "" && params.NewStatus == "" {
			continue
		}

		body, err := render(commentTemplate, params)
		if err != nil {
			return nil, fmt.Errorf("failed to render comment: %w", err)
		}
		comments = append(comments, importer.Comment{
			Body:      body,
			CreatedAt: importer.Timestamp(journal.CreatedOn),
		})
	}
	return comments, nil
}

func (t *Translator) issueLabels(ticket *redmine.Ticket) []string {
	labels := sets.New[string]()
	for _, source := range []string{ticket.Tracker, ticket.Priority, ticket.Category, ticket.Status.Name} {
		if label, ok := t.labels.Resolve(source); ok {
			labels.Insert(label)
		}
	}
	if labels.Len() == 0 {
		return nil
	}
	return sets.List(labels)
}

// mention returns the @mention of a mapped Redmine user, or an empty string for
// users rendered by their Redmine name only
func (t *Translator) mention(name string) string {
	if mention := t.users.GitHubUser(name, true); mention != name {
		return mention
	}
	return ""
}

func (t *Translator) text(source string, mentions IdentityLookup) string {
	text := t.markup.ToMarkdown(source)
	if mentions != nil {
		text = RewriteMentions(text, mentions)
	}
	return text
}

var mentionPattern = regexp.MustCompile(`(^|[^\w&/#])#(\d+)\b`)

// RewriteMentions replaces #<id> mentions of migrated Redmine issues with their
// GitHub numbers. Mentions of issues that are not mapped are left alone.
func RewriteMentions(text string, mapping IdentityLookup) string {
	return mentionPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := mentionPattern.FindStringSubmatch(match)
		source, err := strconv.Atoi(groups[2])
		if err != nil {
			return match
		}
		destination, ok := mapping.Lookup(source)
		if !ok {
			return match
		}
		return fmt.Sprintf("%s#%d", groups[1], destination)
	})
}
