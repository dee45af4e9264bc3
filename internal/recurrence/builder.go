package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Frequency is the FREQ part of a descriptor.
type Frequency string

const (
	FreqWeekly  Frequency = "WEEKLY"
	FreqMonthly Frequency = "MONTHLY"
)

// Descriptor is the repeating rule of a series, limited to the
// FREQ/BYDAY/BYMONTHDAY/UNTIL subset of RFC 5545.
type Descriptor struct {
	Start time.Time
	Freq  Frequency
	// ByDay is a comma-separated BYDAY value such as "MO,WE" or "1TU,-1FR".
	ByDay string
	// ByMonthDay is zero when unset.
	ByMonthDay int
	// Until is inclusive.
	Until time.Time
}

// suffixedRange is an occurrence range tagged with its id suffix.
type suffixedRange struct {
	Range
	suffix string
}

// plan is the builder output: ranges to render and, for repeating series,
// the descriptor they repeat by.
type plan struct {
	ranges     []suffixedRange
	descriptor *Descriptor
}

const storedDateLayout = "2006-01-02"

// clockLayouts are the accepted 12-hour time formats, tried in order.
var clockLayouts = []string{
	"2006-01-02 3:04 pm",
	"2006-01-02 3:04pm",
}

func build(def Definition, instances []Instance, loc *time.Location) (plan, error) {
	switch d := def.(type) {
	case Weekly:
		return buildWeekly(d, loc)
	case *Weekly:
		return buildWeekly(*d, loc)
	case Monthly:
		return buildMonthly(d, loc)
	case *Monthly:
		return buildMonthly(*d, loc)
	case Custom:
		return buildCustom(d, instances), nil
	case *Custom:
		return buildCustom(*d, instances), nil
	default:
		return plan{}, nil
	}
}

func buildWeekly(w Weekly, loc *time.Location) (plan, error) {
	p, err := buildTiming(w.Timing, loc)
	if err != nil || p.descriptor == nil {
		return p, err
	}
	p.descriptor.Freq = FreqWeekly
	p.descriptor.ByDay = strings.Join(dayCodes(w.Days), ",")
	return p, nil
}

func buildMonthly(m Monthly, loc *time.Location) (plan, error) {
	p, err := buildTiming(m.Timing, loc)
	if err != nil || p.descriptor == nil {
		return p, err
	}
	p.descriptor.Freq = FreqMonthly
	switch m.Mode {
	case NthWeekday:
		p.descriptor.ByDay = nthByDay(m.Nths, m.Days)
	default:
		p.descriptor.ByMonthDay = m.DayOfMonth
	}
	return p, nil
}

// buildTiming resolves the first occurrence of a weekly or monthly series
// and, when the stored dates span more than one day, the descriptor skeleton.
func buildTiming(t Timing, loc *time.Location) (plan, error) {
	startDate, _, err := storedDate("start_date", t.StartDate)
	if err != nil {
		return plan{}, err
	}
	endDate, endDay, err := storedDate("end_date", t.EndDate)
	if err != nil {
		return plan{}, err
	}

	start, err := combine("time", startDate, t.Time, loc)
	if err != nil {
		return plan{}, err
	}

	var end time.Time
	switch t.EndMode {
	case EndTime:
		end, err = combine("end_time", startDate, t.EndTime, loc)
		if err != nil {
			return plan{}, err
		}
	default:
		end = start.Add(time.Duration(t.Duration) * time.Second)
	}

	p := plan{ranges: []suffixedRange{{Range: Range{Start: start, End: end}}}}
	if startDate == endDate {
		return p, nil
	}

	// The stored end date is inclusive: repeat until the last second of it.
	y, m, d := endDay.Date()
	p.descriptor = &Descriptor{
		Start: start,
		Until: time.Date(y, m, d, 23, 59, 59, 0, loc),
	}
	return p, nil
}

func buildCustom(c Custom, instances []Instance) plan {
	ranges := make([]Range, 0, len(instances))
	for _, inst := range instances {
		ranges = append(ranges, Range{Start: inst.Start, End: inst.End})
	}
	if len(ranges) == 0 {
		ranges = append(ranges, c.Ranges...)
	}
	sort.SliceStable(ranges, func(i, j int) bool {
		return ranges[i].Start.Before(ranges[j].Start)
	})

	out := make([]suffixedRange, 0, len(ranges))
	for i, r := range ranges {
		sr := suffixedRange{Range: r}
		if len(ranges) > 1 {
			sr.suffix = "-" + strconv.Itoa(i+1)
		}
		out = append(out, sr)
	}
	return plan{ranges: out}
}

// storedDate returns the date part of a stored datetime, both as text and
// parsed (UTC midnight).
func storedDate(field, value string) (string, time.Time, error) {
	date, _, _ := strings.Cut(strings.TrimSpace(value), "T")
	day, err := time.Parse(storedDateLayout, date)
	if err != nil {
		return "", time.Time{}, &ParseError{Field: field, Value: value, Err: err}
	}
	return date, day, nil
}

// combine parses a 12-hour clock value on the given date in loc.
func combine(field, date, clock string, loc *time.Location) (time.Time, error) {
	v := date + " " + strings.ToLower(strings.TrimSpace(clock))
	for _, layout := range clockLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ParseError{Field: field, Value: clock, Err: errors.New("not a 12-hour clock time")}
}

// dayCode returns the two-letter iCalendar code of d, e.g. "TU".
func dayCode(d time.Weekday) string {
	return strings.ToUpper(d.String()[:2])
}

func dayCodes(days []time.Weekday) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, dayCode(d))
	}
	return out
}

// nthByDay combines ordinals with weekdays, days outer and nths inner:
// first,last × Tuesday,Friday becomes "1TU,-1TU,1FR,-1FR".
func nthByDay(nths []Nth, days []time.Weekday) string {
	groups := make([]string, 0, len(days))
	for _, d := range days {
		tokens := make([]string, 0, len(nths))
		for _, n := range nths {
			tokens = append(tokens, fmt.Sprintf("%d%s", n.Ordinal(), dayCode(d)))
		}
		groups = append(groups, strings.Join(tokens, ","))
	}
	return strings.Join(groups, ",")
}
