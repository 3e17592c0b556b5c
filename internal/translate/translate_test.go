package translate

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/petr-muller/redmine2github/internal/importer"
	"github.com/petr-muller/redmine2github/internal/lookup"
	"github.com/petr-muller/redmine2github/internal/redmine"
)

type mappingTable map[int]int

func (m mappingTable) Lookup(source int) (int, bool) {
	destination, ok := m[source]
	return destination, ok
}

type upperMarkup struct{}

func (upperMarkup) ToMarkdown(text string) string { return strings.ToUpper(text) }

func testTranslator() *Translator {
	return New(Config{
		Users: lookup.NewUsers(map[string]string{
			"Philip Durbin": "pdurbin",
			"Elda Sotiri":   "esotiri",
		}),
		Labels: lookup.NewLabels(map[string]string{
			"Feature": "enhancement",
			"Normal":  "priority: normal",
			"Closed":  "status: done",
			"UX":      "enhancement",
		}),
		Milestones:    lookup.NewMilestones(map[string]int{"4.0": 3}),
		RedmineServer: "https://redmine.example.com/",
	})
}

func testTicket() *redmine.Ticket {
	return &redmine.Ticket{
		ID:           4160,
		Subject:      "Icons in results and facet",
		Description:  "See #4062",
		Author:       "Philip Durbin",
		AssignedTo:   "Elda Sotiri",
		Status:       redmine.Status{ID: 5, Name: "Closed"},
		CreatedOn:    time.Date(2014, 6, 30, 14, 48, 26, 0, time.UTC),
		StartDate:    "2014-06-30",
		Tracker:      "Feature",
		Priority:     "Normal",
		Category:     "UX",
		FixedVersion: "4.0",
		Journals: []redmine.Journal{
			{User: "Philip Durbin", Notes: "first note", CreatedOn: time.Date(2014, 7, 1, 10, 0, 0, 0, time.UTC)},
			{User: "Gustavo Durand", CreatedOn: time.Date(2014, 7, 2, 10, 0, 0, 0, time.UTC), Details: []redmine.Detail{{Name: "done_ratio", NewValue: "50"}}},
			{User: "Elda Sotiri", CreatedOn: time.Date(2014, 7, 3, 10, 0, 0, 0, time.UTC), Details: []redmine.Detail{{Name: "status_id", NewValue: "5"}}},
			{User: "Elda Sotiri", Notes: "   ", CreatedOn: time.Date(2014, 7, 4, 10, 0, 0, 0, time.UTC), Details: []redmine.Detail{{Name: "status_id", NewValue: "2"}}},
		},
		Relations: []int{4160, 4062, 3643},
		Children:  []int{3454},
	}
}

func TestCreationPayload(t *testing.T) {
	payload, err := testTranslator().CreationPayload(testTicket(), Options{
		IncludeComments:     true,
		IncludeAssignee:     true,
		IncludeRedmineLinks: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedBody := `See #4062

---

Migrated from Redmine issue [#4160](https://redmine.example.com/issues/4160)
* Author: Philip Durbin (@pdurbin)
* Assignee: Elda Sotiri
* Start date: 2014-06-30
`
	expected := &importer.CreationPayload{
		Issue: importer.Issue{
			Title:     "Icons in results and facet",
			Body:      expectedBody,
			CreatedAt: "2014-06-30T14:48:26Z",
			Assignee:  "esotiri",
			Milestone: 3,
			Closed:    true,
			Labels:    []string{"enhancement", "priority: normal", "status: done"},
		},
		Comments: []importer.Comment{
			{
				Body:      "first note\n\n---\nComment by Philip Durbin (@pdurbin) on 2014-07-01T10:00:00Z\n",
				CreatedAt: "2014-07-01T10:00:00Z",
			},
			{
				Body:      "Status changed to **Closed**\n\n---\nComment by Elda Sotiri (@esotiri) on 2014-07-03T10:00:00Z\n",
				CreatedAt: "2014-07-03T10:00:00Z",
			},
		},
	}
	if diff := cmp.Diff(expected, payload); diff != "" {
		t.Errorf("payload differs (-want +got):\n%s", diff)
	}
}

func TestCreationPayloadOptionsOff(t *testing.T) {
	ticket := testTicket()
	ticket.Description = ""
	ticket.Status = redmine.Status{ID: 1, Name: "New"}
	ticket.AssignedTo = "Gustavo Durand"

	payload, err := testTranslator().CreationPayload(ticket, Options{IncludeAssignee: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if payload.Issue.Closed {
		t.Errorf("issue in status New must not be closed")
	}
	if payload.Issue.Assignee != "" {
		t.Errorf("unmapped assignee must not be sent, got %q", payload.Issue.Assignee)
	}
	if len(payload.Comments) != 0 {
		t.Errorf("expected no comments, got %d", len(payload.Comments))
	}
	if !strings.HasPrefix(payload.Issue.Body, "no description\n") {
		t.Errorf("expected default description, got %q", payload.Issue.Body)
	}
	// #4160 would link to GitHub issue 4160
	if !strings.Contains(payload.Issue.Body, "Migrated from Redmine issue 4160\n") {
		t.Errorf("expected body without backlink, got %q", payload.Issue.Body)
	}
	if !strings.Contains(payload.Issue.Body, "* Assignee: Gustavo Durand\n") {
		t.Errorf("expected Redmine assignee in body, got %q", payload.Issue.Body)
	}
}

func TestUnmappedUsersAreRenderedByName(t *testing.T) {
	ticket := testTicket()
	ticket.Author = "Gustavo Durand"
	ticket.Journals = []redmine.Journal{{User: "Gustavo Durand", Notes: "note"}, {User: "Elda Sotiri", Notes: "reply"}}

	payload, err := testTranslator().CreationPayload(ticket, Options{IncludeComments: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(payload.Issue.Body, "* Author: Gustavo Durand\n") {
		t.Errorf("expected unmapped author without mention, got %q", payload.Issue.Body)
	}
	if len(payload.Comments) != 2 {
		t.Fatalf("expected two comments, got %d", len(payload.Comments))
	}
	if !strings.Contains(payload.Comments[0].Body, "Comment by Gustavo Durand\n") {
		t.Errorf("expected unmapped commenter without mention, got %q", payload.Comments[0].Body)
	}
	if !strings.Contains(payload.Comments[1].Body, "Comment by Elda Sotiri (@esotiri)\n") {
		t.Errorf("expected mapped commenter with mention, got %q", payload.Comments[1].Body)
	}
}

func TestCommentsWithoutStatusIDHaveNoStatusAnnotation(t *testing.T) {
	ticket := testTicket()
	ticket.Status = redmine.Status{Name: "Closed"}
	ticket.Journals = []redmine.Journal{{User: "Elda Sotiri", Details: []redmine.Detail{{Name: "status_id", NewValue: "5"}}}}

	payload, err := testTranslator().CreationPayload(ticket, Options{IncludeComments: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payload.Comments) != 0 {
		t.Errorf("expected no status comment without a status id, got %+v", payload.Comments)
	}
}

func TestCommentsWithoutTextOrStatusAreDropped(t *testing.T) {
	ticket := testTicket()
	ticket.Journals = []redmine.Journal{
		{User: "Philip Durbin"},
		{User: "Philip Durbin", Notes: "\n\t"},
		{User: "Philip Durbin", Details: []redmine.Detail{{Name: "status_id", NewValue: "3"}}},
	}

	payload, err := testTranslator().CreationPayload(ticket, Options{IncludeComments: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payload.Comments) != 0 {
		t.Errorf("expected all comments to be dropped, got %+v", payload.Comments)
	}
}

func TestCreationPayloadMarkupAndMentions(t *testing.T) {
	translator := New(Config{Markup: upperMarkup{}})
	ticket := testTicket()
	ticket.Description = "dup of #4062 and #9"
	ticket.Journals = []redmine.Journal{{User: "Gustavo Durand", Notes: "see #4062"}}

	payload, err := translator.CreationPayload(ticket, Options{
		IncludeComments: true,
		RewriteMentions: mappingTable{4062: 17},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(payload.Issue.Body, "DUP OF #17 AND #9\n") {
		t.Errorf("unexpected body %q", payload.Issue.Body)
	}
	if expected := "SEE #17\n\n---\nComment by Gustavo Durand\n"; payload.Comments[0].Body != expected {
		t.Errorf("expected comment %q, got %q", expected, payload.Comments[0].Body)
	}
	if payload.Issue.Labels != nil || payload.Issue.Milestone != 0 {
		t.Errorf("expected no labels and milestone without tables, got %v %d", payload.Issue.Labels, payload.Issue.Milestone)
	}
}

func TestRewriteMentions(t *testing.T) {
	mapping := mappingTable{1: 101, 12: 112}
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{name: "leading mention", text: "#1 is done", expected: "#101 is done"},
		{name: "several mentions", text: "see #1,#12 and (#12)", expected: "see #101,#112 and (#112)"},
		{name: "unmapped mention", text: "see #2", expected: "see #2"},
		{name: "html entity", text: "&#12; stays", expected: "&#12; stays"},
		{name: "url fragment", text: "http://x/#1", expected: "http://x/#1"},
		{name: "longer number", text: "#123", expected: "#123"},
		{name: "word prefix", text: "issue#1", expected: "issue#1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RewriteMentions(tt.text, mapping); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestPlaceholder(t *testing.T) {
	expected := &importer.CreationPayload{
		Issue:    importer.Issue{Title: "Placeholder for Redmine issue #11", Closed: true},
		Comments: []importer.Comment{},
	}
	if diff := cmp.Diff(expected, testTranslator().Placeholder(11)); diff != "" {
		t.Errorf("placeholder differs (-want +got):\n%s", diff)
	}
}

func TestIsClosed(t *testing.T) {
	translator := testTranslator()
	for _, status := range []string{"Rejected", "Closed", "Resolved"} {
		if !translator.IsClosed(status) {
			t.Errorf("expected %s to be closed", status)
		}
	}
	if translator.IsClosed("closed") || translator.IsClosed("In Progress") {
		t.Errorf("only exact closed status names are closed")
	}

	custom := New(Config{ClosedStatuses: []string{"Done"}})
	if !custom.IsClosed("Done") || custom.IsClosed("Closed") {
		t.Errorf("custom closed statuses must replace the default ones")
	}
}
