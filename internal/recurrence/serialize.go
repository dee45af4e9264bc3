package recurrence

import (
	"strconv"
	"strings"
	"time"
)

const (
	// UTCLayout is the RFC 5545 DATE-TIME form in UTC.
	UTCLayout = "20060102T150405Z"
	// ISO8601 always carries a numeric offset, also for UTC.
	ISO8601 = "2006-01-02T15:04:05-07:00"
)

// RRule renders d as an RFC 5545 recurrence rule parameter list, without the
// DTSTART line and the "RRULE:" label:
//
//	FREQ=WEEKLY;BYDAY=MO,WE;UNTIL=20240131T225959Z
func (d Descriptor) RRule() string {
	parts := []string{"FREQ=" + string(d.Freq)}
	if d.ByDay != "" {
		parts = append(parts, "BYDAY="+d.ByDay)
	}
	if d.ByMonthDay != 0 {
		parts = append(parts, "BYMONTHDAY="+strconv.Itoa(d.ByMonthDay))
	}
	if !d.Until.IsZero() {
		parts = append(parts, "UNTIL="+FormatUTC(d.Until))
	}
	return strings.Join(parts, ";")
}

// FormatUTC renders t as a UTC DATE-TIME ("20240115T090000Z").
func FormatUTC(t time.Time) string {
	return t.UTC().Format(UTCLayout)
}

// FormatDateList renders ts as a comma-separated RDATE/EXDATE value, or an
// empty string for an empty list.
func FormatDateList(ts []time.Time) string {
	parts := make([]string, 0, len(ts))
	for _, t := range ts {
		parts = append(parts, FormatUTC(t))
	}
	return strings.Join(parts, ",")
}

// FormatCivil renders t in loc as ISO 8601 with offset.
func FormatCivil(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(ISO8601)
}
