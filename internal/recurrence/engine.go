package recurrence

import "time"

// DefaultLocation is the civil timezone used when none is configured.
const DefaultLocation = "Europe/Copenhagen"

// Engine resolves schedules in one civil timezone. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	loc *time.Location
}

// NewEngine returns an Engine rendering in loc. A nil loc means UTC.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{loc: loc}
}

// Location returns the engine's civil timezone.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Resolve computes the schedule entries of one series.
//
// Weekly and monthly definitions yield one entry for the first occurrence;
// when they repeat, the entry carries the rule plus RDATE/EXDATE reconciled
// against instances. Custom definitions yield one entry per instance.
// Unsupported definitions yield no entries and no error.
//
// On error no entries are returned.
func (e *Engine) Resolve(def Definition, instances []Instance) ([]ScheduleEntry, error) {
	p, err := build(def, instances, e.loc)
	if err != nil {
		return nil, err
	}
	if len(p.ranges) == 0 {
		return nil, nil
	}

	var rule, rdate, exdate string
	if p.descriptor != nil {
		generated, err := Occurrences(*p.descriptor)
		if err != nil {
			return nil, err
		}
		actual := make([]time.Time, 0, len(instances))
		for _, inst := range instances {
			actual = append(actual, inst.Start)
		}
		exc := Reconcile(generated, actual)

		rule = p.descriptor.RRule()
		rdate = FormatDateList(exc.Added)
		exdate = FormatDateList(exc.Removed)
	}

	entries := make([]ScheduleEntry, 0, len(p.ranges))
	for _, r := range p.ranges {
		entries = append(entries, ScheduleEntry{
			IDSuffix: r.suffix,
			Start:    r.Start.In(e.loc),
			End:      r.End.In(e.loc),
			Type:     Classify(r.Start, r.End, p.descriptor != nil, e.loc),
			RRule:    rule,
			RDate:    rdate,
			ExDate:   exdate,
		})
	}
	return entries, nil
}

// Descriptor returns the repeating rule def implies, or nil when it does not
// repeat.
func (e *Engine) Descriptor(def Definition) (*Descriptor, error) {
	p, err := build(def, nil, e.loc)
	if err != nil {
		return nil, err
	}
	return p.descriptor, nil
}
