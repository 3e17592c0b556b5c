package translate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/petr-muller/redmine2github/internal/redmine"
)

// CrossReferences lists the issues a Redmine issue relates to, both as Redmine ids
// and as the GitHub numbers of those already migrated
type CrossReferences struct {
	OriginalRelated  []int
	Related          []int
	OriginalChildren []int
	Children         []int
}

// CrossReferenceUpdate resolves related and child issues of the ticket through mapping.
// Ids that are not mapped yet are only kept in the original lists. It returns nil
// when the ticket has neither related nor child issues.
func CrossReferenceUpdate(ticket *redmine.Ticket, mapping IdentityLookup) *CrossReferences {
	refs := &CrossReferences{
		OriginalRelated:  ticket.RelatedIDs(),
		OriginalChildren: ticket.ChildIDs(),
	}
	if len(refs.OriginalRelated) == 0 && len(refs.OriginalChildren) == 0 {
		return nil
	}

	refs.Related = resolve(refs.OriginalRelated, mapping)
	refs.Children = resolve(refs.OriginalChildren, mapping)
	return refs
}

func resolve(ids []int, mapping IdentityLookup) []int {
	var numbers []int
	for _, id := range ids {
		if number, ok := mapping.Lookup(id); ok {
			numbers = append(numbers, number)
		}
	}
	sort.Ints(numbers)
	return numbers
}

// RelatedBody returns the issue body with the cross-reference section appended.
// A section rendered by an earlier run is replaced.
func (t *Translator) RelatedBody(current string, refs *CrossReferences, includeRedmineLinks bool) (string, error) {
	params := relatedParams{
		OriginalRelated:  t.redmineRefs(refs.OriginalRelated, includeRedmineLinks),
		Related:          githubRefs(refs.Related),
		OriginalChildren: t.redmineRefs(refs.OriginalChildren, includeRedmineLinks),
		Children:         githubRefs(refs.Children),
	}
	section, err := render(relatedTemplate, params)
	if err != nil {
		return "", fmt.Errorf("failed to render related issues: %w", err)
	}

	body := strings.TrimRight(StripRelated(current), "\n ")
	if body == "" {
		return section + "\n", nil
	}
	return body + "\n\n" + section + "\n", nil
}

// StripRelated removes a cross-reference section from an issue body
func StripRelated(body string) string {
	start := strings.Index(body, relatedStartMarker)
	if start < 0 {
		return body
	}
	end := strings.Index(body[start:], relatedEndMarker)
	if end < 0 {
		return body
	}
	end += start + len(relatedEndMarker)
	return strings.TrimRight(body[:start], "\n ") + body[end:]
}

func (t *Translator) redmineRefs(ids []int, withLinks bool) []string {
	refs := make([]string, 0, len(ids))
	for _, id := range ids {
		link := t.RedmineLink(id)
		if withLinks && link != "" {
			refs = append(refs, fmt.Sprintf("[%d](%s)", id, link))
			continue
		}
		refs = append(refs, strconv.Itoa(id))
	}
	return refs
}

func githubRefs(numbers []int) []string {
	refs := make([]string, 0, len(numbers))
	for _, number := range numbers {
		refs = append(refs, fmt.Sprintf("#%d", number))
	}
	return refs
}
