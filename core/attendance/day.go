package attendance

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// DayLayout is the wire and storage format of a Day.
const DayLayout = "2006-01-02"

var errInvalidDay = errors.New("invalid date, expected YYYY-MM-DD")

// Day is a calendar date. Time of day is never meaningful for attendance:
// two instants on the same calendar date are the same Day.
// The zero Day means "unset".
type Day struct {
	t time.Time // midnight UTC
}

// NewDay returns the Day for the given calendar date.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf returns the calendar date of t in t's own location.
func DayOf(t time.Time) Day {
	if t.IsZero() {
		return Day{}
	}
	y, m, d := t.Date()
	return NewDay(y, m, d)
}

// DayIn returns the calendar date of t as seen from loc.
func DayIn(t time.Time, loc *time.Location) Day {
	if loc == nil || t.IsZero() {
		return DayOf(t)
	}
	return DayOf(t.In(loc))
}

// ParseDay accepts YYYY-MM-DD or an RFC3339 instant (whose own offset decides the date).
func ParseDay(s string) (Day, error) {
	if s == "" {
		return Day{}, errInvalidDay
	}
	if t, err := time.Parse(DayLayout, s); err == nil {
		return DayOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DayOf(t), nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return DayOf(t), nil
	}
	return Day{}, errInvalidDay
}

// MustParseDay is ParseDay for literals; it panics on malformed input.
func MustParseDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(fmt.Sprintf("attendance.MustParseDay(%q): %v", s, err))
	}
	return d
}

func (d Day) IsZero() bool          { return d.t.IsZero() }
func (d Day) Time() time.Time       { return d.t }
func (d Day) Weekday() time.Weekday { return d.t.Weekday() }
func (d Day) Year() int             { return d.t.Year() }
func (d Day) Month() time.Month     { return d.t.Month() }
func (d Day) Before(o Day) bool     { return d.t.Before(o.t) }
func (d Day) After(o Day) bool      { return d.t.After(o.t) }
func (d Day) Equal(o Day) bool      { return d.t.Equal(o.t) }
func (d Day) AddDays(n int) Day     { return Day{t: d.t.AddDate(0, 0, n)} }

// Start returns the first instant of the day in loc.
func (d Day) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.t.Year(), d.t.Month(), d.t.Day(), 0, 0, 0, 0, loc)
}

// End returns the last instant of the day in loc.
func (d Day) End(loc *time.Location) time.Time {
	return d.Start(loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// FirstOfMonth returns the first day of d's calendar month.
func (d Day) FirstOfMonth() Day {
	return NewDay(d.t.Year(), d.t.Month(), 1)
}

// LastOfMonth returns the last day of d's calendar month.
func (d Day) LastOfMonth() Day {
	return DayOf(d.FirstOfMonth().t.AddDate(0, 1, -1))
}

// SameMonth reports whether both days fall in the same calendar month.
func (d Day) SameMonth(o Day) bool {
	return d.t.Year() == o.t.Year() && d.t.Month() == o.t.Month()
}

// Within reports whether d is in [start, end]; a zero bound is open.
func (d Day) Within(start, end Day) bool {
	if !start.IsZero() && d.Before(start) {
		return false
	}
	if !end.IsZero() && d.After(end) {
		return false
	}
	return true
}

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DayLayout)
}

func (d Day) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Day) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return errInvalidDay
	}
	if s == nil || *s == "" {
		*d = Day{}
		return nil
	}
	parsed, err := ParseDay(*s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalParam lets echo bind query params into a Day.
func (d *Day) UnmarshalParam(param string) error {
	if param == "" {
		*d = Day{}
		return nil
	}
	parsed, err := ParseDay(param)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores a Day as a YYYY-MM-DD string.
func (d Day) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan reads DATE columns as returned by lib/pq, pgx (time.Time) and sqlite3 (time.Time or text).
func (d *Day) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Day{}
		return nil
	case time.Time:
		*d = DayOf(v)
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("attendance.Day: cannot scan %T", src)
	}
}

func (d *Day) scanString(s string) error {
	if len(s) >= len(DayLayout) {
		if t, err := time.Parse(DayLayout, s[:len(DayLayout)]); err == nil {
			*d = DayOf(t)
			return nil
		}
	}
	return errors.Wrapf(errInvalidDay, "scanning %q", s)
}

// LatestOf returns the most recent day among records, false if there are none.
func LatestOf(records []Record) (Day, bool) {
	var latest Day
	for _, rec := range records {
		if latest.IsZero() || rec.Day.After(latest) {
			latest = rec.Day
		}
	}
	return latest, !latest.IsZero()
}
