package attendance

import (
	"time"

	"github.com/pkg/errors"
)

// Calendar knows which days classes meet: every Sunday except the configured holidays.
type Calendar struct {
	holidays map[Day]struct{}
}

// NewCalendar builds a Calendar from YYYY-MM-DD holiday dates.
func NewCalendar(holidays []string) (*Calendar, error) {
	cal := &Calendar{holidays: make(map[Day]struct{}, len(holidays))}
	for _, h := range holidays {
		d, err := ParseDay(h)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing holiday %q", h)
		}
		cal.holidays[d] = struct{}{}
	}
	return cal, nil
}

// IsClassDay reports whether classes meet on d.
func (cal *Calendar) IsClassDay(d Day) bool {
	if d.IsZero() || d.Weekday() != time.Sunday {
		return false
	}
	_, off := cal.holidays[d]
	return !off
}

// ExpectedClassDays counts the class days in [start, end].
// Zero bounds or an inverted range hold no class day.
func (cal *Calendar) ExpectedClassDays(start, end Day) int {
	n := CountExpectedClassDays(start, end)
	if n == 0 {
		return 0
	}
	for h := range cal.holidays {
		if h.Weekday() == time.Sunday && h.Within(start, end) {
			n--
		}
	}
	if n < 0 {
		return 0
	}
	return n
}

// ClassDays lists the class days in [start, end], oldest first.
func (cal *Calendar) ClassDays(start, end Day) []Day {
	days := make([]Day, 0)
	if start.IsZero() || end.IsZero() {
		return days
	}
	first := start.AddDays((int(time.Sunday) - int(start.Weekday()) + 7) % 7)
	for d := first; !d.After(end); d = d.AddDays(7) {
		if cal.IsClassDay(d) {
			days = append(days, d)
		}
	}
	return days
}
