package importer

import (
	"errors"
	"fmt"
	"strings"

	"sigs.k8s.io/prow/pkg/github"
)

// TicketUpdate lists the issue fields to change, nil fields are left alone
type TicketUpdate struct {
	Title *string
	Body  *string
	State *string
}

func (c *Client) issueClient() (IssueClient, error) {
	if c.issues == nil {
		return nil, errors.New("no github issue client configured")
	}
	return c.issues, nil
}

// FetchTicket returns the GitHub issue with the given number
func (c *Client) FetchTicket(number int) (*github.Issue, error) {
	issues, err := c.issueClient()
	if err != nil {
		return nil, err
	}
	issue, err := issues.GetIssue(c.owner, c.repo, number)
	if err != nil {
		if c.isNotFound(err) {
			return nil, fmt.Errorf("%w: %s#%d", ErrTicketNotFound, c.Repository(), number)
		}
		return nil, fmt.Errorf("failed to get issue %s#%d: %w", c.Repository(), number, err)
	}
	return issue, nil
}

// UpdateTicket changes the given fields of a GitHub issue and returns the updated issue
func (c *Client) UpdateTicket(number int, update TicketUpdate) (*github.Issue, error) {
	current, err := c.FetchTicket(number)
	if err != nil {
		return nil, err
	}
	return c.ApplyUpdate(current, update)
}

// ApplyUpdate changes the given fields of an issue fetched before
func (c *Client) ApplyUpdate(current *github.Issue, update TicketUpdate) (*github.Issue, error) {
	issues, err := c.issueClient()
	if err != nil {
		return nil, err
	}

	// EditIssue sends the whole issue, so start from its current state
	edited := *current
	if update.Title != nil {
		edited.Title = *update.Title
	}
	if update.Body != nil {
		edited.Body = *update.Body
	}
	if update.State != nil {
		edited.State = *update.State
	}

	issue, err := issues.EditIssue(c.owner, c.repo, current.Number, &edited)
	if err != nil {
		if c.isNotFound(err) {
			return nil, fmt.Errorf("%w: %s#%d", ErrTicketNotFound, c.Repository(), current.Number)
		}
		return nil, fmt.Errorf("failed to edit issue %s#%d: %w", c.Repository(), current.Number, err)
	}
	return issue, nil
}

// CloseTicket closes a GitHub issue. An issue that is already closed is left as is.
// It reports whether the issue ended up closed; in dry-run mode an open issue is only
// logged and reported as closed.
func (c *Client) CloseTicket(number int) (bool, error) {
	logger := c.logger.WithField("github", number)

	issue, err := c.FetchTicket(number)
	if err != nil {
		return false, err
	}
	if isClosed(issue) {
		logger.Debug("Issue is already closed")
		return true, nil
	}
	if c.dryRun {
		logger.Info("Would close issue")
		return true, nil
	}

	if err := c.issues.CloseIssue(c.owner, c.repo, number); err != nil {
		return false, fmt.Errorf("failed to close issue %s#%d: %w", c.Repository(), number, err)
	}

	issue, err = c.FetchTicket(number)
	if err != nil {
		return false, err
	}
	if !isClosed(issue) {
		logger.WithField("state", issue.State).Warn("Issue is not closed after closing it")
		return false, nil
	}
	logger.Info("Closed issue")
	return true, nil
}

func isClosed(issue *github.Issue) bool {
	return strings.EqualFold(issue.State, closedState)
}
