package model

import (
	"time"

	"eventfeed/internal/recurrence"
)

// Series is an authored recurring event with its metadata, as loaded from
// the store.
type Series struct {
	ID   int64
	UUID string

	Title   string
	Teaser  string
	Changed time.Time

	// Path is the series page path, made absolute with the configured base URL.
	Path string
	// ImagePath is the stored image file path; empty when there is no image.
	ImagePath string
	// TicketURL is the external ticket/event link.
	TicketURL string
	// Place is the free-text event place.
	Place string

	// Address overrides the branch address when set.
	Address *Address
	Branch  *Branch

	District     string
	TargetGroups []string
	Categories   []string
	Tags         []string

	Paragraphs       []Paragraph
	TicketCategories []TicketCategory

	Recurrence RecurrenceFields
}

// RecurrenceFields are the stored recurrence columns of a series, before
// they are mapped into a recurrence.Definition.
type RecurrenceFields struct {
	// Type is the stored recurrence type, e.g. "weekly_recurring_date".
	Type string

	StartValue string
	EndValue   string
	Time       string
	// DurationOrEndTime is "duration" or "end_time".
	DurationOrEndTime string
	Duration          int
	EndTime           string

	// Days is a comma-separated list of lower-case English weekday names.
	Days string

	// MonthlyType is "weekday" or "monthday".
	MonthlyType string
	// DayOccurrence is a comma-separated list of "first" .. "fourth", "last".
	DayOccurrence string
	DayOfMonth    int

	CustomDates []recurrence.Range
}

// Instance is one published occurrence of a series.
type Instance struct {
	ID       int64
	SeriesID int64
	Start    time.Time
	End      time.Time
	Status   bool
}

// Branch is the library branch hosting a series.
type Branch struct {
	ID      int64
	Name    string
	Phone   string
	Address *Address
}

// Address is a postal address.
type Address struct {
	Line1      string
	PostalCode string
	Locality   string
}

// IsEmpty reports whether a carries no address line, postal code or locality.
func (a *Address) IsEmpty() bool {
	return a == nil || (a.Line1 == "" && a.PostalCode == "" && a.Locality == "")
}

// Paragraph is a content block of a series body. Only "text_body"
// paragraphs end up in the feed.
type Paragraph struct {
	Bundle string
	Body   string
}

// TicketCategory is a priced ticket option. Price is in whole currency units.
type TicketCategory struct {
	Bundle string
	Name   string
	Price  float64
}
