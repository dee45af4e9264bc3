package recurrence

import "time"

// Classify returns Repeated for entries of a repeating series, Prolonged when
// start and end fall on different dates in loc and Single otherwise.
func Classify(start, end time.Time, repeating bool, loc *time.Location) ScheduleType {
	if repeating {
		return Repeated
	}
	if !sameDate(start.In(loc), end.In(loc)) {
		return Prolonged
	}
	return Single
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
