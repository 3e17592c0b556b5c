package importer

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrTransport             = errors.New("github request failed")
	ErrRateLimitExceeded     = errors.New("github rate limit exceeded")
	ErrUnexpectedImportState = errors.New("unexpected github import state")
	ErrTicketNotFound        = errors.New("github issue not found")
)

// rateLimitMarker is the message GitHub returns when the rate limit is exhausted
const rateLimitMarker = "rate limit exceeded"

// ImportHandle identifies a submitted issue import. It is not the issue number.
type ImportHandle int64

// CreationPayload is the body of an issue import request
type CreationPayload struct {
	Issue    Issue     `json:"issue"`
	Comments []Comment `json:"comments"`
}

// Issue holds the issue fields of an import request
type Issue struct {
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	CreatedAt string   `json:"created_at,omitempty"`
	Assignee  string   `json:"assignee,omitempty"`
	Milestone int      `json:"milestone,omitempty"`
	Closed    bool     `json:"closed"`
	Labels    []string `json:"labels,omitempty"`
}

// Comment is a single comment of an import request
type Comment struct {
	Body      string `json:"body"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Timestamp formats t the way the import API expects it
func Timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// APIError is a non-2xx response from GitHub
type APIError struct {
	StatusCode int
	Message    string
	Body       string
	// RateLimitReset is the time the rate limit resets, zero when GitHub did not say
	RateLimitReset time.Time
}

func (e *APIError) Error() string {
	message := e.Message
	if message == "" {
		message = e.Body
	}
	return fmt.Sprintf("github responded with status %d: %s", e.StatusCode, message)
}

// Unwrap classifies the error as a rate limit failure or a generic transport failure
func (e *APIError) Unwrap() error {
	if e.RateLimited() {
		return ErrRateLimitExceeded
	}
	return ErrTransport
}

// RateLimited reports whether the response signals an exhausted rate limit
func (e *APIError) RateLimited() bool {
	return strings.Contains(strings.ToLower(e.Message), rateLimitMarker) ||
		(e.Message == "" && strings.Contains(strings.ToLower(e.Body), rateLimitMarker))
}
