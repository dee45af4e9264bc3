package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

var weekdayByCode = map[string]rrule.Weekday{
	"MO": rrule.MO,
	"TU": rrule.TU,
	"WE": rrule.WE,
	"TH": rrule.TH,
	"FR": rrule.FR,
	"SA": rrule.SA,
	"SU": rrule.SU,
}

// Occurrences expands d into the ordered start times it implies, Until
// included. The rule object is built per call.
func Occurrences(d Descriptor) ([]time.Time, error) {
	opt, err := d.options()
	if err != nil {
		return nil, err
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("recurrence: build rule: %w", err)
	}
	return r.All(), nil
}

func (d Descriptor) options() (rrule.ROption, error) {
	opt := rrule.ROption{
		Dtstart: d.Start,
		Until:   d.Until,
	}
	switch d.Freq {
	case FreqWeekly:
		opt.Freq = rrule.WEEKLY
	case FreqMonthly:
		opt.Freq = rrule.MONTHLY
	default:
		return opt, fmt.Errorf("recurrence: unsupported frequency %q", d.Freq)
	}

	days, err := parseByDay(d.ByDay)
	if err != nil {
		return opt, err
	}
	opt.Byweekday = days
	if d.ByMonthDay != 0 {
		opt.Bymonthday = []int{d.ByMonthDay}
	}
	return opt, nil
}

// parseByDay parses a BYDAY value such as "MO,WE" or "1TU,-1FR".
func parseByDay(s string) ([]rrule.Weekday, error) {
	if s == "" {
		return nil, nil
	}
	tokens := strings.Split(s, ",")
	out := make([]rrule.Weekday, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if len(tok) < 2 {
			return nil, fmt.Errorf("recurrence: invalid BYDAY token %q", tok)
		}
		code := tok[len(tok)-2:]
		wd, ok := weekdayByCode[code]
		if !ok {
			return nil, fmt.Errorf("recurrence: invalid BYDAY token %q", tok)
		}
		if prefix := tok[:len(tok)-2]; prefix != "" {
			n, err := strconv.Atoi(prefix)
			if err != nil || n == 0 {
				return nil, fmt.Errorf("recurrence: invalid BYDAY ordinal %q", tok)
			}
			wd = wd.Nth(n)
		}
		out = append(out, wd)
	}
	return out, nil
}
