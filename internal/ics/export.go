// Package ics renders feed items as an iCalendar document.
package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"eventfeed/internal/model"
	"eventfeed/internal/recurrence"
)

// ProductID is the PRODID of exported calendars.
const ProductID = "-//eventfeed//feed//EN"

// Export renders items as a VCALENDAR with one VEVENT per item. stamp is
// written as DTSTAMP of every event.
//
// Item dates must be in the feed's ISO 8601 form; an item that fails to
// parse fails the export.
func Export(items []model.Item, stamp time.Time) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)

	for _, it := range items {
		if err := addEvent(cal, it, stamp); err != nil {
			return "", fmt.Errorf("item %s: %w", it.ID, err)
		}
	}
	return cal.Serialize(), nil
}

func addEvent(cal *ical.Calendar, it model.Item, stamp time.Time) error {
	start, err := time.Parse(recurrence.ISO8601, it.StartDate)
	if err != nil {
		return fmt.Errorf("parse start_date: %w", err)
	}
	end, err := time.Parse(recurrence.ISO8601, it.EndDate)
	if err != nil {
		return fmt.Errorf("parse end_date: %w", err)
	}

	ev := cal.AddEvent(it.ID)
	ev.SetDtStampTime(stamp)
	ev.SetStartAt(start)
	ev.SetEndAt(end)
	ev.SetSummary(it.Title)
	if it.Teaser != "" {
		ev.SetDescription(it.Teaser)
	}
	if it.URL != "" {
		ev.SetURL(it.URL)
	}
	if it.LastUpdate != "" {
		if changed, err := time.Parse(recurrence.ISO8601, it.LastUpdate); err == nil {
			ev.SetModifiedAt(changed)
		}
	}
	if loc := location(it.Contact); loc != "" {
		ev.SetLocation(loc)
	}

	// RDATE and EXDATE only make sense next to a rule.
	if it.Schedule.RRule != "" {
		ev.AddRrule(it.Schedule.RRule)
		if it.Schedule.RDate != "" {
			ev.AddRdate(it.Schedule.RDate)
		}
		if it.Schedule.ExDate != "" {
			ev.AddExdate(it.Schedule.ExDate)
		}
	}
	return nil
}

// location flattens a contact into a single LOCATION line.
func location(c *model.Contact) string {
	if c == nil {
		return ""
	}
	out := ""
	for _, part := range []string{c.Location, c.Name, c.StreetAndNum, c.Zip + " " + c.City} {
		if part == "" || part == " " {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += part
	}
	return out
}
