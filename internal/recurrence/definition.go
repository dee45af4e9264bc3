// Package recurrence resolves the recurrence definition of an event series
// into the schedule entries published in the feed.
//
// The package is pure: it never loads data and holds no state between calls.
// Callers hand in an already mapped Definition together with the series'
// published instances and get back a list of ScheduleEntry values.
package recurrence

import (
	"fmt"
	"time"
)

// Kind is the stored recurrence type of a series.
type Kind string

const (
	KindWeekly      Kind = "weekly_recurring_date"
	KindMonthly     Kind = "monthly_recurring_date"
	KindCustom      Kind = "custom"
	KindConsecutive Kind = "consecutive_recurring_date"
	KindUnsupported Kind = "unsupported"
)

// Definition is the tagged recurrence definition attached to a series.
// Implementations are Weekly, Monthly, Custom and Unsupported.
type Definition interface {
	Kind() Kind
	isDefinition()
}

// EndMode selects how the end of an occurrence is stored.
type EndMode int

const (
	EndDuration EndMode = iota
	EndTime
)

// Timing holds the raw stored values shared by weekly and monthly series.
type Timing struct {
	// StartDate and EndDate are stored datetimes ("2024-01-01T10:00:00");
	// only the date part is meaningful. EndDate is the inclusive last day.
	StartDate string
	EndDate   string

	// Time is the start time of day as a 12-hour clock string ("9:30 am").
	Time string

	EndMode EndMode
	// Duration in seconds, used when EndMode is EndDuration.
	Duration int
	// EndTime is a 12-hour clock string on the start date, used when
	// EndMode is EndTime.
	EndTime string
}

// Weekly repeats on the given days every week.
type Weekly struct {
	Timing
	Days []time.Weekday
}

// MonthlyMode selects between day-of-month and nth-weekday repetition.
type MonthlyMode int

const (
	DayOfMonth MonthlyMode = iota
	NthWeekday
)

// Nth is an ordinal week within a month.
type Nth int

const (
	First Nth = iota + 1
	Second
	Third
	Fourth
	Last
)

// Ordinal returns the iCalendar ordinal for n (Last is -1).
func (n Nth) Ordinal() int {
	if n == Last {
		return -1
	}
	return int(n)
}

func (n Nth) String() string {
	switch n {
	case First:
		return "first"
	case Second:
		return "second"
	case Third:
		return "third"
	case Fourth:
		return "fourth"
	case Last:
		return "last"
	default:
		return fmt.Sprintf("Nth(%d)", int(n))
	}
}

// ParseNth parses the stored names "first" .. "fourth" and "last".
func ParseNth(s string) (Nth, error) {
	switch s {
	case "first":
		return First, nil
	case "second":
		return Second, nil
	case "third":
		return Third, nil
	case "fourth":
		return Fourth, nil
	case "last":
		return Last, nil
	}
	return 0, &ParseError{Field: "day_occurrence", Value: s, Err: fmt.Errorf("unknown ordinal")}
}

// Monthly repeats every month, either on DayOfMonth or on the Nths × Days
// weekdays of the month.
type Monthly struct {
	Timing
	Mode       MonthlyMode
	DayOfMonth int
	Nths       []Nth
	Days       []time.Weekday
}

// Range is a concrete start/end pair.
type Range struct {
	Start time.Time
	End   time.Time
}

// Custom lists explicit date ranges. They are only used while a series has
// no instances; once instances exist they are the source of truth.
type Custom struct {
	Ranges []Range
}

// Unsupported covers consecutive series and unknown stored types.
type Unsupported struct {
	Type string
}

func (Weekly) Kind() Kind      { return KindWeekly }
func (Monthly) Kind() Kind     { return KindMonthly }
func (Custom) Kind() Kind      { return KindCustom }
func (Unsupported) Kind() Kind { return KindUnsupported }

func (Weekly) isDefinition()      {}
func (Monthly) isDefinition()     {}
func (Custom) isDefinition()      {}
func (Unsupported) isDefinition() {}

// Instance is one published occurrence of a series.
type Instance struct {
	Start time.Time
	End   time.Time
}

// ScheduleType classifies a rendered entry.
type ScheduleType string

const (
	Single    ScheduleType = "single"
	Prolonged ScheduleType = "prolonged"
	Repeated  ScheduleType = "repeated"
)

// ScheduleEntry is one published schedule of a series.
type ScheduleEntry struct {
	// IDSuffix is appended to the series id. Empty unless the series
	// produced more than one entry.
	IDSuffix string

	// Start and End are in the engine's civil timezone.
	Start time.Time
	End   time.Time

	Type ScheduleType

	RRule  string
	RDate  string
	ExDate string
}

// ParseError reports a malformed stored date or time value.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("recurrence: parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
