// Package importer talks to GitHub: it submits issues through the asynchronous issue
// import API, resolves import handles to issue numbers and edits migrated issues.
package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/prow/pkg/github"
)

const (
	DefaultEndpoint     = "https://api.github.com"
	DefaultPollInterval = 5 * time.Second
	// RateLimitMargin is added to the time left until the rate limit resets
	RateLimitMargin = 10 * time.Second

	importAccept    = "application/vnd.github.golden-comet-preview+json"
	maxResponseSize = 10 * 1024 * 1024
	closedState     = "closed"
)

// IssueClient is the subset of the prow GitHub client used to edit migrated issues
type IssueClient interface {
	GetIssue(org, repo string, number int) (*github.Issue, error)
	EditIssue(org, repo string, number int, issue *github.Issue) (*github.Issue, error)
	CloseIssue(org, repo string, number int) error
}

// Options configure a Client
type Options struct {
	Endpoint string
	Owner    string
	Repo     string
	// Token returns the GitHub token used for the import API
	Token func() []byte

	HTTPClient *http.Client
	Issues     IssueClient
	Logger     *logrus.Entry
	// DryRun must match the Issues client: a dry-run prow client drops every edit, so
	// edits cannot be verified by reading the issue back
	DryRun bool

	PollInterval time.Duration
	// Sleep waits for the rate limit to reset, defaults to a context aware sleep
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
	// IsNotFound classifies IssueClient errors, defaults to github.IsNotFound
	IsNotFound func(error) bool
}

// Client submits and resolves GitHub issue imports and edits imported issues
type Client struct {
	endpoint string
	owner    string
	repo     string
	token    func() []byte

	http   *http.Client
	issues IssueClient
	logger *logrus.Entry
	dryRun bool

	pollInterval time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time
	isNotFound   func(error) bool
}

// New creates a Client, filling defaults for the options not set
func New(opts Options) (*Client, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, errors.New("github owner and repository are required")
	}
	if opts.Token == nil {
		return nil, errors.New("github token is required")
	}

	c := &Client{
		endpoint:     strings.TrimSuffix(opts.Endpoint, "/"),
		owner:        opts.Owner,
		repo:         opts.Repo,
		token:        opts.Token,
		http:         opts.HTTPClient,
		issues:       opts.Issues,
		logger:       opts.Logger,
		dryRun:       opts.DryRun,
		pollInterval: opts.PollInterval,
		sleep:        opts.Sleep,
		now:          opts.Now,
		isNotFound:   opts.IsNotFound,
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if _, err := url.Parse(c.endpoint); err != nil {
		return nil, fmt.Errorf("invalid github endpoint %q: %w", c.endpoint, err)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: time.Minute}
	}
	if c.logger == nil {
		c.logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.sleep == nil {
		c.sleep = SleepContext
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.isNotFound == nil {
		c.isNotFound = github.IsNotFound
	}
	return c, nil
}

// SleepContext waits for d or until ctx is done, whichever comes first
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Repository returns the owner/repo the client imports into
func (c *Client) Repository() string {
	return c.owner + "/" + c.repo
}

func (c *Client) importURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/import/issues", c.endpoint, url.PathEscape(c.owner), url.PathEscape(c.repo))
}

// SubmitCreation submits an issue import once. Failures are returned as *APIError
// carrying the rate limit reset time when GitHub sent one.
func (c *Client) SubmitCreation(ctx context.Context, payload *CreationPayload) (ImportHandle, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal import payload: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, c.importURL(), body)
	if err != nil {
		return 0, err
	}

	var response struct {
		ID     *int64 `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &response); err != nil {
		return 0, fmt.Errorf("%w: cannot parse import response: %v", ErrUnexpectedImportState, err)
	}
	if response.ID == nil {
		return 0, fmt.Errorf("%w: import response has no id: %s", ErrUnexpectedImportState, string(data))
	}
	return ImportHandle(*response.ID), nil
}

// Submit submits an issue import, sleeping until the rate limit resets and retrying
// once when GitHub reports an exhausted rate limit
func (c *Client) Submit(ctx context.Context, payload *CreationPayload) (ImportHandle, error) {
	var handle ImportHandle
	err := c.withRateLimitRecovery(ctx, "submitting import", func() error {
		var err error
		handle, err = c.SubmitCreation(ctx, payload)
		return err
	})
	return handle, err
}

type importStatus struct {
	ID       int64  `json:"id"`
	Status   string `json:"status"`
	IssueURL string `json:"issue_url"`
}

// PollResolution resolves all imports submitted since the given time to issue numbers.
// It keeps polling while any import is pending.
func (c *Client) PollResolution(ctx context.Context, since time.Time) (map[ImportHandle]int, error) {
	resolved := map[ImportHandle]int{}
	pollURL := c.importURL() + "?" + url.Values{"since": []string{Timestamp(since)}}.Encode()

	err := wait.PollUntilContextCancel(ctx, c.pollInterval, true, func(ctx context.Context) (bool, error) {
		var statuses []importStatus
		err := c.withRateLimitRecovery(ctx, "polling imports", func() error {
			data, err := c.do(ctx, http.MethodGet, pollURL, nil)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(data, &statuses); err != nil {
				return fmt.Errorf("%w: cannot parse import status response: %v", ErrUnexpectedImportState, err)
			}
			return nil
		})
		if err != nil {
			return false, err
		}

		pending := 0
		for _, status := range statuses {
			if status.IssueURL == "" {
				if status.Status == "pending" {
					pending++
					continue
				}
				return false, fmt.Errorf("%w: import %d has status %q and no issue url", ErrUnexpectedImportState, status.ID, status.Status)
			}
			number, err := issueNumber(status.IssueURL)
			if err != nil {
				return false, fmt.Errorf("%w: import %d: %v", ErrUnexpectedImportState, status.ID, err)
			}
			resolved[ImportHandle(status.ID)] = number
		}

		if pending > 0 {
			c.logger.WithField("pending", pending).Infof("Issue imports still pending, checking again in %s", c.pollInterval)
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return resolved, fmt.Errorf("failed to resolve imports: %w", err)
	}
	return resolved, nil
}

func issueNumber(issueURL string) (int, error) {
	last := issueURL[strings.LastIndex(issueURL, "/")+1:]
	number, err := strconv.Atoi(last)
	if err != nil || number <= 0 {
		return 0, fmt.Errorf("issue url %q does not end with an issue number", issueURL)
	}
	return number, nil
}

// withRateLimitRecovery runs op, and when it fails on an exhausted rate limit, waits
// for the reset plus RateLimitMargin and runs it exactly once more
func (c *Client) withRateLimitRecovery(ctx context.Context, what string, op func() error) error {
	err := op()
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.RateLimited() {
		return err
	}

	delay := c.rateLimitDelay(apiErr.RateLimitReset)
	c.logger.WithError(err).Warnf("Rate limit exceeded while %s, sleeping %s", what, delay)
	if err := c.sleep(ctx, delay); err != nil {
		return fmt.Errorf("interrupted while waiting for rate limit reset: %w", err)
	}

	if err := op(); err != nil {
		return fmt.Errorf("%s failed after waiting for rate limit reset: %w", what, err)
	}
	return nil
}

func (c *Client) rateLimitDelay(reset time.Time) time.Duration {
	if reset.IsZero() {
		return RateLimitMargin
	}
	return max(reset.Sub(c.now()), 0) + RateLimitMargin
}

func (c *Client) do(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "token "+strings.TrimSpace(string(c.token())))
	req.Header.Set("Accept", importAccept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, newAPIError(resp, data)
	}
	return data, nil
}

func newAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
	var message struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &message); err == nil {
		apiErr.Message = message.Message
	}
	if reset, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		apiErr.RateLimitReset = time.Unix(reset, 0)
	}
	return apiErr
}
