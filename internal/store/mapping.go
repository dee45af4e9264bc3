package store

import (
	"errors"
	"strings"
	"time"

	"eventfeed/internal/model"
	"eventfeed/internal/recurrence"
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Definition maps the stored recurrence columns of a series into its typed
// recurrence definition. Consecutive and unknown types map to
// recurrence.Unsupported. Malformed day lists fail with a
// *recurrence.ParseError.
func Definition(f model.RecurrenceFields) (recurrence.Definition, error) {
	switch recurrence.Kind(f.Type) {
	case recurrence.KindWeekly:
		days, err := parseDays(f.Days)
		if err != nil {
			return nil, err
		}
		return recurrence.Weekly{Timing: timing(f), Days: days}, nil

	case recurrence.KindMonthly:
		m := recurrence.Monthly{Timing: timing(f)}
		if f.MonthlyType == "weekday" {
			m.Mode = recurrence.NthWeekday
			days, err := parseDays(f.Days)
			if err != nil {
				return nil, err
			}
			m.Days = days
			for _, v := range splitList(f.DayOccurrence) {
				n, err := recurrence.ParseNth(strings.ToLower(v))
				if err != nil {
					return nil, err
				}
				m.Nths = append(m.Nths, n)
			}
		} else {
			m.Mode = recurrence.DayOfMonth
			m.DayOfMonth = f.DayOfMonth
		}
		return m, nil

	case recurrence.KindCustom:
		return recurrence.Custom{Ranges: f.CustomDates}, nil

	default:
		return recurrence.Unsupported{Type: f.Type}, nil
	}
}

func timing(f model.RecurrenceFields) recurrence.Timing {
	t := recurrence.Timing{
		StartDate: f.StartValue,
		EndDate:   f.EndValue,
		Time:      f.Time,
		Duration:  f.Duration,
		EndTime:   f.EndTime,
	}
	if f.DurationOrEndTime == "end_time" {
		t.EndMode = recurrence.EndTime
	}
	return t
}

func parseDays(v string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, name := range splitList(v) {
		d, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			return nil, &recurrence.ParseError{Field: "days", Value: v, Err: errors.New("unknown weekday " + name)}
		}
		days = append(days, d)
	}
	return days, nil
}
