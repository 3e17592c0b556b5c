package migration

import "k8s.io/apimachinery/pkg/util/sets"

// Step is a single Redmine id a migration pass processes
type Step struct {
	ID int
	// Present is false for ids without an exported issue, which only occur in dense sequences
	Present bool
}

// Range limits the Redmine ids a migration processes. End is inclusive, nil means no limit.
type Range struct {
	Start int
	End   *int
}

// Contains reports whether id falls into the range
func (r Range) Contains(id int) bool {
	return id >= r.Start && (r.End == nil || id <= *r.End)
}

// Sequence returns the steps of a migration pass over the exported ids, ascending.
// Without dense, only exported ids within the range are returned. With dense, every
// integer in the range is returned; when the range has no end, it ends at the
// highest exported id.
func Sequence(ids []int, r Range, dense bool) []Step {
	present := sets.New(ids...)

	if !dense {
		var steps []Step
		for _, id := range sets.List(present) {
			if r.End != nil && id > *r.End {
				break
			}
			if id < r.Start {
				continue
			}
			steps = append(steps, Step{ID: id, Present: true})
		}
		return steps
	}

	var last int
	switch {
	case r.End != nil:
		last = *r.End
	case present.Len() > 0:
		last = sets.List(present)[present.Len()-1]
	default:
		return nil
	}

	var steps []Step
	for id := r.Start; id <= last; id++ {
		steps = append(steps, Step{ID: id, Present: present.Has(id)})
	}
	return steps
}
