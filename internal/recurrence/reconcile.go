package recurrence

import (
	"sort"
	"time"
)

// Exceptions is the difference between the occurrences a rule implies and
// the instances that actually exist.
type Exceptions struct {
	// Removed are generated starts with no instance (EXDATE).
	Removed []time.Time
	// Added are instance starts the rule does not imply (RDATE).
	Added []time.Time
}

// Reconcile diffs generated against actual start times. Instants are
// compared exactly, regardless of location. Both result sets are sorted
// ascending and free of duplicates.
func Reconcile(generated, actual []time.Time) Exceptions {
	return Exceptions{
		Removed: difference(generated, actual),
		Added:   difference(actual, generated),
	}
}

// difference returns a − b.
func difference(a, b []time.Time) []time.Time {
	exclude := make(map[int64]struct{}, len(b))
	for _, t := range b {
		exclude[t.UnixNano()] = struct{}{}
	}

	seen := make(map[int64]struct{}, len(a))
	var out []time.Time
	for _, t := range a {
		k := t.UnixNano()
		if _, ok := exclude[k]; ok {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
