package redmine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Ticket is a single Redmine issue as exported by the Redmine REST API
type Ticket struct {
	ID          int
	Subject     string
	Description string
	Author      string
	// AssignedTo is empty when the issue has no assignee
	AssignedTo string
	Status     Status
	CreatedOn  time.Time
	StartDate  string

	Tracker      string
	Priority     string
	Category     string
	FixedVersion string

	Journals  []Journal
	Relations []int
	Children  []int
}

// Status is the Redmine status of an issue
type Status struct {
	// ID is 0 when the export does not carry it
	ID   int
	Name string
}

// Journal is a single Redmine journal entry (a note and/or attribute changes)
type Journal struct {
	User      string
	Notes     string
	CreatedOn time.Time
	Details   []Detail
}

// Detail is a single attribute change recorded in a journal
type Detail struct {
	Name     string
	NewValue string
}

// ChangedStatusTo reports whether the journal changed the issue status to the given status id.
// An unknown status id (0) never matches.
func (j Journal) ChangedStatusTo(statusID int) bool {
	if statusID <= 0 {
		return false
	}
	for _, detail := range j.Details {
		if detail.Name != "status_id" {
			continue
		}
		value, err := strconv.Atoi(detail.NewValue)
		if err != nil {
			continue
		}
		if value == statusID {
			return true
		}
	}
	return false
}

// RelatedIDs returns ids of related issues, ascending, without relations pointing back at the issue itself
func (t *Ticket) RelatedIDs() []int {
	var ids []int
	for _, id := range t.Relations {
		if id != t.ID {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// ChildIDs returns ids of child issues, ascending
func (t *Ticket) ChildIDs() []int {
	ids := append([]int(nil), t.Children...)
	sort.Ints(ids)
	return ids
}

type namedRef struct {
	ID   *int    `json:"id"`
	Name *string `json:"name"`
}

type rawTicket struct {
	ID           *int      `json:"id"`
	Subject      *string   `json:"subject"`
	Description  *string   `json:"description"`
	Author       *namedRef `json:"author"`
	AssignedTo   *namedRef `json:"assigned_to"`
	Status       *namedRef `json:"status"`
	CreatedOn    *string   `json:"created_on"`
	StartDate    *string   `json:"start_date"`
	Tracker      *namedRef `json:"tracker"`
	Priority     *namedRef `json:"priority"`
	Category     *namedRef `json:"category"`
	FixedVersion *namedRef `json:"fixed_version"`
	Journals     []struct {
		User      *namedRef `json:"user"`
		Notes     *string   `json:"notes"`
		CreatedOn *string   `json:"created_on"`
		Details   []struct {
			Name     string  `json:"name"`
			NewValue *string `json:"new_value"`
		} `json:"details"`
	} `json:"journals"`
	Relations []struct {
		IssueToID *int `json:"issue_to_id"`
	} `json:"relations"`
	Children []struct {
		ID *int `json:"id"`
	} `json:"children"`
}

// ParseTicket parses a Redmine issue JSON document. Missing required fields and
// values of the wrong type are reported as ErrMalformedRecord; optional fields that
// are absent are left at their zero value.
func ParseTicket(data []byte) (*Ticket, error) {
	data = bytes.TrimSpace(data)
	// Some exports wrap the document as {"issue": {...}}
	var wrapped struct {
		Issue json.RawMessage `json:"issue"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Issue) > 0 {
		data = wrapped.Issue
	}

	var raw rawTicket
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	var errs []error
	required := func(field string, ok bool) {
		if !ok {
			errs = append(errs, fmt.Errorf("missing %s", field))
		}
	}
	required("id", raw.ID != nil)
	required("subject", raw.Subject != nil)
	required("author.name", raw.Author != nil && raw.Author.Name != nil)
	required("status.name", raw.Status != nil && raw.Status.Name != nil)
	required("created_on", raw.CreatedOn != nil)
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, errors.Join(errs...))
	}

	createdOn, err := time.Parse(time.RFC3339, *raw.CreatedOn)
	if err != nil {
		return nil, fmt.Errorf("%w: created_on: %v", ErrMalformedRecord, err)
	}

	ticket := &Ticket{
		ID:           *raw.ID,
		Subject:      *raw.Subject,
		Description:  deref(raw.Description),
		Author:       *raw.Author.Name,
		AssignedTo:   refName(raw.AssignedTo),
		Status:       Status{Name: *raw.Status.Name},
		CreatedOn:    createdOn,
		StartDate:    deref(raw.StartDate),
		Tracker:      refName(raw.Tracker),
		Priority:     refName(raw.Priority),
		Category:     refName(raw.Category),
		FixedVersion: refName(raw.FixedVersion),
	}

	if raw.Status.ID != nil {
		ticket.Status.ID = *raw.Status.ID
	}

	for i, j := range raw.Journals {
		journal := Journal{
			User:  refName(j.User),
			Notes: deref(j.Notes),
		}
		if j.CreatedOn != nil {
			journal.CreatedOn, err = time.Parse(time.RFC3339, *j.CreatedOn)
			if err != nil {
				return nil, fmt.Errorf("%w: journals[%d].created_on: %v", ErrMalformedRecord, i, err)
			}
		}
		for _, d := range j.Details {
			journal.Details = append(journal.Details, Detail{Name: d.Name, NewValue: deref(d.NewValue)})
		}
		ticket.Journals = append(ticket.Journals, journal)
	}

	for _, relation := range raw.Relations {
		if relation.IssueToID != nil {
			ticket.Relations = append(ticket.Relations, *relation.IssueToID)
		}
	}
	for _, child := range raw.Children {
		if child.ID != nil {
			ticket.Children = append(ticket.Children, *child.ID)
		}
	}

	return ticket, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func refName(ref *namedRef) string {
	if ref == nil {
		return ""
	}
	return deref(ref.Name)
}
