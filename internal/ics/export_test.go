package ics

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventfeed/internal/model"
)

var stamp = time.Date(2024, time.January, 2, 12, 0, 0, 0, time.UTC)

func repeatedItem() model.Item {
	return model.Item{
		ID:           "11111111-aaaa",
		UUID:         "11111111-aaaa",
		Title:        "Strikkecafe",
		Teaser:       "Kom og strik",
		URL:          "https://bib.example.org/events/strikkecafe",
		LastUpdate:   "2024-01-01T09:00:00+01:00",
		StartDate:    "2024-01-01T10:00:00+01:00",
		EndDate:      "2024-01-01T12:00:00+01:00",
		ScheduleType: "repeated",
		Schedule: model.Schedule{
			RRule:  "FREQ=WEEKLY;BYDAY=MO,WE;UNTIL=20240131T225959Z",
			RDate:  "20240116T090000Z",
			ExDate: "20240115T090000Z",
		},
		Contact: &model.Contact{
			Name:         "Hovedbiblioteket",
			Location:     "Salen",
			StreetAndNum: "Krystalgade 15",
			Zip:          "1172",
			City:         "København K",
		},
	}
}

func TestExportRepeated(t *testing.T) {
	out, err := Export([]model.Item{repeatedItem()}, stamp)
	require.NoError(t, err)
	assert.Contains(t, out, "PRODID:"+ProductID)

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 1)
	ev := events[0]

	assert.Equal(t, "11111111-aaaa", ev.Id())

	start, err := ev.GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)))
	end, err := ev.GetEndAt()
	require.NoError(t, err)
	assert.True(t, end.Equal(time.Date(2024, time.January, 1, 11, 0, 0, 0, time.UTC)))

	prop := func(name ical.ComponentProperty) string {
		p := ev.GetProperty(name)
		require.NotNil(t, p, "missing %s", name)
		return p.Value
	}
	assert.Equal(t, "Strikkecafe", prop(ical.ComponentPropertySummary))
	assert.Equal(t, "Kom og strik", prop(ical.ComponentPropertyDescription))
	assert.Equal(t, "https://bib.example.org/events/strikkecafe", prop(ical.ComponentPropertyUrl))
	assert.Equal(t, "20240101T080000Z", prop(ical.ComponentPropertyLastModified))
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO,WE;UNTIL=20240131T225959Z", prop(ical.ComponentPropertyRrule))
	assert.Equal(t, "20240116T090000Z", prop(ical.ComponentPropertyRdate))
	assert.Equal(t, "20240115T090000Z", prop(ical.ComponentPropertyExdate))
}

func TestExportSingle(t *testing.T) {
	it := repeatedItem()
	it.ID = "22222222-bbbb-1"
	it.Teaser = ""
	it.Contact = nil
	it.Schedule = model.Schedule{}

	out, err := Export([]model.Item{it}, stamp)
	require.NoError(t, err)

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, cal.Events(), 1)
	ev := cal.Events()[0]
	assert.Equal(t, "22222222-bbbb-1", ev.Id())
	assert.Nil(t, ev.GetProperty(ical.ComponentPropertyRrule))
	assert.Nil(t, ev.GetProperty(ical.ComponentPropertyExdate))
	assert.Nil(t, ev.GetProperty(ical.ComponentPropertyDescription))
	assert.Nil(t, ev.GetProperty(ical.ComponentPropertyLocation))
}

func TestExportEmpty(t *testing.T) {
	out, err := Export(nil, stamp)
	require.NoError(t, err)
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.NotContains(t, out, "BEGIN:VEVENT")
}

func TestExportBadDate(t *testing.T) {
	it := repeatedItem()
	it.StartDate = "2024-01-01 10:00"
	_, err := Export([]model.Item{it}, stamp)
	assert.ErrorContains(t, err, "11111111-aaaa")
}

func TestLocation(t *testing.T) {
	assert.Equal(t, "Salen, Hovedbiblioteket, Krystalgade 15, 1172 København K", location(repeatedItem().Contact))
	assert.Equal(t, "Café", location(&model.Contact{Name: "Café"}))
	assert.Equal(t, "", location(nil))
}
