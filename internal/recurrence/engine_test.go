package recurrence

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"
)

func copenhagen(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(DefaultLocation)
	require.NoError(t, err)
	return loc
}

func weeklyMoWe() Weekly {
	return Weekly{
		Timing: Timing{
			StartDate: "2024-01-01T00:00:00",
			EndDate:   "2024-01-31T00:00:00",
			Time:      "10:00 am",
			EndMode:   EndDuration,
			Duration:  7200,
		},
		Days: []time.Weekday{time.Monday, time.Wednesday},
	}
}

func instancesAt(loc *time.Location, days ...int) []Instance {
	out := make([]Instance, 0, len(days))
	for _, d := range days {
		start := time.Date(2024, time.January, d, 10, 0, 0, 0, loc)
		out = append(out, Instance{Start: start, End: start.Add(2 * time.Hour)})
	}
	return out
}

func TestWeeklyOccurrences(t *testing.T) {
	loc := copenhagen(t)
	e := NewEngine(loc)

	d, err := e.Descriptor(weeklyMoWe())
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, FreqWeekly, d.Freq)
	assert.Equal(t, "MO,WE", d.ByDay)
	assert.True(t, d.Until.Equal(time.Date(2024, time.January, 31, 23, 59, 59, 0, loc)))

	got, err := Occurrences(*d)
	require.NoError(t, err)

	want := []int{1, 3, 8, 10, 15, 17, 22, 24, 29, 31}
	require.Len(t, got, len(want))
	for i, day := range want {
		exp := time.Date(2024, time.January, day, 10, 0, 0, 0, loc)
		assert.True(t, got[i].Equal(exp), "occurrence %d: got %s, want %s", i, got[i], exp)
	}
}

func TestResolveWeeklyReconciled(t *testing.T) {
	loc := copenhagen(t)
	e := NewEngine(loc)

	// Jan 15 cancelled, Jan 16 added.
	instances := instancesAt(loc, 1, 3, 8, 10, 16, 17, 22, 24, 29, 31)

	entries, err := e.Resolve(weeklyMoWe(), instances)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "", entry.IDSuffix)
	assert.Equal(t, Repeated, entry.Type)
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO,WE;UNTIL=20240131T225959Z", entry.RRule)
	assert.Equal(t, "20240115T090000Z", entry.ExDate)
	assert.Equal(t, "20240116T090000Z", entry.RDate)
	assert.Equal(t, "2024-01-01T10:00:00+01:00", FormatCivil(entry.Start, loc))
	assert.Equal(t, "2024-01-01T12:00:00+01:00", FormatCivil(entry.End, loc))
}

func TestResolveWeeklyNoExceptions(t *testing.T) {
	loc := copenhagen(t)
	e := NewEngine(loc)

	entries, err := e.Resolve(weeklyMoWe(), instancesAt(loc, 1, 3, 8, 10, 15, 17, 22, 24, 29, 31))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].RDate)
	assert.Empty(t, entries[0].ExDate)
}

func TestResolveIsDeterministic(t *testing.T) {
	loc := copenhagen(t)
	e := NewEngine(loc)
	instances := instancesAt(loc, 3, 1, 16, 8)

	first, err := e.Resolve(weeklyMoWe(), instances)
	require.NoError(t, err)
	second, err := e.Resolve(weeklyMoWe(), instances)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMonthlyNthWeekdayByDay(t *testing.T) {
	loc := copenhagen(t)
	e := NewEngine(loc)

	def := Monthly{
		Timing: Timing{
			StartDate: "2024-01-02",
			EndDate:   "2024-03-31",
			Time:      "7:00 pm",
			EndMode:   EndTime,
			EndTime:   "9:00 pm",
		},
		Mode: NthWeekday,
		Nths: []Nth{First, Last},
		Days: []time.Weekday{time.Tuesday, time.Friday},
	}
	d, err := e.Descriptor(def)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, FreqMonthly, d.Freq)
	assert.Equal(t, "1TU,-1TU,1FR,-1FR", d.ByDay)
	assert.Zero(t, d.ByMonthDay)
}

func TestMonthlyNthWeekdayOccurrences(t *testing.T) {
	loc := copenhagen(t)
	e := NewEngine(loc)

	def := Monthly{
		Timing: Timing{
			StartDate: "2024-01-02",
			EndDate:   "2024-03-31",
			Time:      "7:00 pm",
			EndMode:   EndTime,
			EndTime:   "9:00 pm",
		},
		Mode: NthWeekday,
		Nths: []Nth{First, Last},
		Days: []time.Weekday{time.Tuesday},
	}
	d, err := e.Descriptor(def)
	require.NoError(t, err)

	got, err := Occurrences(*d)
	require.NoError(t, err)

	want := []time.Time{
		time.Date(2024, time.January, 2, 19, 0, 0, 0, loc),
		time.Date(2024, time.January, 30, 19, 0, 0, 0, loc),
		time.Date(2024, time.February, 6, 19, 0, 0, 0, loc),
		time.Date(2024, time.February, 27, 19, 0, 0, 0, loc),
		time.Date(2024, time.March, 5, 19, 0, 0, 0, loc),
		time.Date(2024, time.March, 26, 19, 0, 0, 0, loc),
	}
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, got[i].Equal(want[i]), "occurrence %d: got %s, want %s", i, got[i], want[i])
	}
}

func TestMonthlyDayOfMonth(t *testing.T) {
	loc := copenhagen(t)
	e := NewEngine(loc)

	def := Monthly{
		Timing: Timing{
			StartDate: "2024-01-15T00:00:00",
			EndDate:   "2024-06-30T00:00:00",
			Time:      "6:30 pm",
			Duration:  3600,
		},
		Mode:       DayOfMonth,
		DayOfMonth: 15,
	}
	entries, err := e.Resolve(def, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// Until falls in summer time.
	assert.Equal(t, "FREQ=MONTHLY;BYMONTHDAY=15;UNTIL=20240630T215959Z", entries[0].RRule)
	// No instances at all: every generated occurrence is excluded.
	assert.Equal(t,
		"20240115T173000Z,20240215T173000Z,20240315T173000Z,20240415T163000Z,20240515T163000Z,20240615T163000Z",
		entries[0].ExDate)
	assert.Empty(t, entries[0].RDate)
}

func TestRRuleRoundTrip(t *testing.T) {
	loc := copenhagen(t)
	e := NewEngine(loc)

	defs := map[string]Definition{
		"weekly": weeklyMoWe(),
		"monthly nth": Monthly{
			Timing: Timing{StartDate: "2024-01-02", EndDate: "2024-12-31", Time: "7:00 pm", Duration: 60},
			Mode:   NthWeekday,
			Nths:   []Nth{Second, Last},
			Days:   []time.Weekday{time.Thursday, time.Sunday},
		},
		"monthly day": Monthly{
			Timing:     Timing{StartDate: "2024-01-31", EndDate: "2024-12-31", Time: "8:00 am", Duration: 60},
			Mode:       DayOfMonth,
			DayOfMonth: 31,
		},
	}

	for name, def := range defs {
		t.Run(name, func(t *testing.T) {
			d, err := e.Descriptor(def)
			require.NoError(t, err)
			require.NotNil(t, d)

			opt, err := rrule.StrToROption(d.RRule())
			require.NoError(t, err)

			want, err := d.options()
			require.NoError(t, err)

			assert.Equal(t, want.Freq, opt.Freq)
			assert.Equal(t, want.Byweekday, opt.Byweekday)
			assert.Equal(t, want.Bymonthday, opt.Bymonthday)
			assert.True(t, opt.Until.Equal(d.Until), "until: got %s, want %s", opt.Until, d.Until)
		})
	}
}

func TestDegenerateSingle(t *testing.T) {
	loc := copenhagen(t)
	e := NewEngine(loc)

	tests := []struct {
		name     string
		timing   Timing
		wantType ScheduleType
		wantEnd  string
	}{
		{
			name:     "same day",
			timing:   Timing{StartDate: "2024-06-01T00:00:00", EndDate: "2024-06-01T00:00:00", Time: "10:00 am", Duration: 5400},
			wantType: Single,
			wantEnd:  "2024-06-01T11:30:00+02:00",
		},
		{
			name:     "past midnight",
			timing:   Timing{StartDate: "2024-06-01T00:00:00", EndDate: "2024-06-01T00:00:00", Time: "10:00 am", Duration: 15 * 3600},
			wantType: Prolonged,
			wantEnd:  "2024-06-02T01:00:00+02:00",
		},
		{
			name:     "end time",
			timing:   Timing{StartDate: "2024-06-01", EndDate: "2024-06-01", Time: "10:00 AM", EndMode: EndTime, EndTime: "12:15 PM"},
			wantType: Single,
			wantEnd:  "2024-06-01T12:15:00+02:00",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := Weekly{Timing: tt.timing, Days: []time.Weekday{time.Saturday}}
			// Instances are ignored for a series that does not repeat.
			entries, err := e.Resolve(def, instancesAt(loc, 5))
			require.NoError(t, err)
			require.Len(t, entries, 1)

			entry := entries[0]
			assert.Equal(t, tt.wantType, entry.Type)
			assert.Equal(t, "2024-06-01T10:00:00+02:00", FormatCivil(entry.Start, loc))
			assert.Equal(t, tt.wantEnd, FormatCivil(entry.End, loc))
			assert.Empty(t, entry.RRule)
			assert.Empty(t, entry.RDate)
			assert.Empty(t, entry.ExDate)
		})
	}
}

func TestCustom(t *testing.T) {
	loc := copenhagen(t)
	e := NewEngine(loc)

	at := func(month time.Month, day, hour int) time.Time {
		return time.Date(2024, month, day, hour, 0, 0, 0, loc)
	}

	t.Run("instances ordered and suffixed", func(t *testing.T) {
		instances := []Instance{
			{Start: at(time.March, 3, 10), End: at(time.March, 3, 12)},
			{Start: at(time.January, 5, 10), End: at(time.January, 6, 2)},
			{Start: at(time.February, 1, 10), End: at(time.February, 1, 11)},
		}
		entries, err := e.Resolve(Custom{}, instances)
		require.NoError(t, err)
		require.Len(t, entries, 3)

		assert.Equal(t, "-1", entries[0].IDSuffix)
		assert.Equal(t, "-2", entries[1].IDSuffix)
		assert.Equal(t, "-3", entries[2].IDSuffix)
		assert.True(t, entries[0].Start.Equal(at(time.January, 5, 10)))
		assert.Equal(t, Prolonged, entries[0].Type)
		assert.Equal(t, Single, entries[1].Type)
		for _, entry := range entries {
			assert.Empty(t, entry.RRule)
			assert.Empty(t, entry.RDate)
			assert.Empty(t, entry.ExDate)
		}
	})

	t.Run("single instance has no suffix", func(t *testing.T) {
		entries, err := e.Resolve(Custom{}, []Instance{{Start: at(time.May, 1, 9), End: at(time.May, 1, 10)}})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "", entries[0].IDSuffix)
	})

	t.Run("stored ranges without instances", func(t *testing.T) {
		def := Custom{Ranges: []Range{
			{Start: at(time.May, 2, 9), End: at(time.May, 2, 10)},
			{Start: at(time.May, 1, 9), End: at(time.May, 1, 10)},
		}}
		entries, err := e.Resolve(def, nil)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.True(t, entries[0].Start.Equal(at(time.May, 1, 9)))
		assert.Equal(t, "-2", entries[1].IDSuffix)
	})

	t.Run("nothing to render", func(t *testing.T) {
		entries, err := e.Resolve(Custom{}, nil)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestUnsupported(t *testing.T) {
	e := NewEngine(copenhagen(t))
	entries, err := e.Resolve(Unsupported{Type: string(KindConsecutive)}, instancesAt(time.UTC, 1))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParseErrors(t *testing.T) {
	e := NewEngine(copenhagen(t))

	tests := []struct {
		name  string
		def   Definition
		field string
	}{
		{"bad start date", Weekly{Timing: Timing{StartDate: "01/02/2024", EndDate: "2024-01-31", Time: "10:00 am"}}, "start_date"},
		{"bad end date", Weekly{Timing: Timing{StartDate: "2024-01-01", EndDate: "", Time: "10:00 am"}}, "end_date"},
		{"24h clock", Weekly{Timing: Timing{StartDate: "2024-01-01", EndDate: "2024-01-31", Time: "14:00"}}, "time"},
		{"bad end time", Monthly{Timing: Timing{StartDate: "2024-01-01", EndDate: "2024-01-31", Time: "2:00 pm", EndMode: EndTime, EndTime: "noon"}}, "end_time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := e.Resolve(tt.def, nil)
			require.Error(t, err)
			assert.Nil(t, entries)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.field, perr.Field)
		})
	}
}
