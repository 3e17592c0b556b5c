package translate

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/petr-muller/redmine2github/internal/redmine"
)

func TestCrossReferenceUpdate(t *testing.T) {
	tests := []struct {
		name     string
		ticket   *redmine.Ticket
		mapping  mappingTable
		expected *CrossReferences
	}{
		{
			name:    "related and children resolved and sorted",
			ticket:  &redmine.Ticket{ID: 5, Relations: []int{9, 3, 7}, Children: []int{8, 6}},
			mapping: mappingTable{3: 30, 7: 20, 9: 10, 6: 60, 8: 50},
			expected: &CrossReferences{
				OriginalRelated:  []int{3, 7, 9},
				Related:          []int{10, 20, 30},
				OriginalChildren: []int{6, 8},
				Children:         []int{50, 60},
			},
		},
		{
			name:    "unmapped ids only in original lists",
			ticket:  &redmine.Ticket{ID: 5, Relations: []int{3, 4}},
			mapping: mappingTable{3: 30},
			expected: &CrossReferences{
				OriginalRelated: []int{3, 4},
				Related:         []int{30},
			},
		},
		{
			name:     "self relation excluded",
			ticket:   &redmine.Ticket{ID: 5, Relations: []int{5}},
			mapping:  mappingTable{5: 50},
			expected: nil,
		},
		{
			name:     "nothing related",
			ticket:   &redmine.Ticket{ID: 5},
			mapping:  mappingTable{},
			expected: nil,
		},
		{
			name:    "collisions are kept",
			ticket:  &redmine.Ticket{ID: 5, Relations: []int{1, 2}},
			mapping: mappingTable{1: 40, 2: 40},
			expected: &CrossReferences{
				OriginalRelated: []int{1, 2},
				Related:         []int{40, 40},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CrossReferenceUpdate(tt.ticket, tt.mapping)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("cross references differ (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRelatedBody(t *testing.T) {
	translator := testTranslator()
	refs := &CrossReferences{
		OriginalRelated:  []int{3643, 4062},
		Related:          []int{12},
		OriginalChildren: []int{3454},
	}

	body, err := translator.RelatedBody("Original body\n", refs, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := `Original body

<!-- redmine2github:related -->
* Related issues: #12 (Redmine: [3643](https://redmine.example.com/issues/3643), [4062](https://redmine.example.com/issues/4062))
* Sub-issues: none migrated yet (Redmine: [3454](https://redmine.example.com/issues/3454))
<!-- /redmine2github:related -->
`
	if diff := cmp.Diff(expected, body); diff != "" {
		t.Errorf("body differs (-want +got):\n%s", diff)
	}

	again, err := translator.RelatedBody(body, refs, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(body, again); diff != "" {
		t.Errorf("rendering twice changed the body (-first +second):\n%s", diff)
	}
}

func TestRelatedBodyWithoutLinks(t *testing.T) {
	refs := &CrossReferences{OriginalRelated: []int{4}, Related: []int{40}}
	body, err := testTranslator().RelatedBody("", refs, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "<!-- redmine2github:related -->\n* Related issues: #40 (Redmine: 4)\n<!-- /redmine2github:related -->\n"
	if body != expected {
		t.Errorf("expected %q, got %q", expected, body)
	}
}

func TestStripRelated(t *testing.T) {
	body := "before\n\n" + relatedStartMarker + "\n* x\n" + relatedEndMarker + "\nafter"
	if got := StripRelated(body); got != "before\nafter" {
		t.Errorf("unexpected stripped body %q", got)
	}
	if got := StripRelated("no section"); got != "no section" {
		t.Errorf("body without section must not change, got %q", got)
	}
	unterminated := "x " + relatedStartMarker
	if got := StripRelated(unterminated); got != unterminated {
		t.Errorf("unterminated section must not change, got %q", got)
	}
}
