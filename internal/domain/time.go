package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	MinutesPerDay = 24 * 60
	DateLayout    = "2006-01-02"
)

// TimeOfDay is a wall-clock time expressed in minutes since midnight.
// 24:00 is allowed so a window may end at the close of the day.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' || !isDigit(s[0]) || !isDigit(s[1]) || !isDigit(s[3]) || !isDigit(s[4]) {
		return 0, errors.Newf("time %q must be HH:MM", s)
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, errors.Wrapf(err, "parse hour of %q", s)
	}
	m, err := strconv.Atoi(s[3:])
	if err != nil {
		return 0, errors.Wrapf(err, "parse minute of %q", s)
	}
	if h < 0 || m < 0 || m > 59 {
		return 0, errors.Newf("time %q out of range", s)
	}
	t := NewTimeOfDay(h, m)
	if !t.Valid() {
		return 0, errors.Newf("time %q out of range", s)
	}
	return t, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t <= MinutesPerDay
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Window is a half-open [Start, End) range of wall-clock time on one day.
type Window struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

func (w Window) Valid() bool {
	return w.Start.Valid() && w.End.Valid() && w.Start < w.End
}

func (w Window) Minutes() int {
	return int(w.End - w.Start)
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// On anchors the window to a calendar date in loc.
func (w Window) On(date time.Time, loc *time.Location) Interval {
	return Interval{Start: At(date, w.Start, loc), End: At(date, w.End, loc)}
}

// At returns the instant of t on the calendar day of date, in loc.
// 24:00 normalizes to midnight of the following day.
func At(date time.Time, t TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
}

// ParseDate parses YYYY-MM-DD into a civil date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "date %q must be YYYY-MM-DD", s)
	}
	return d, nil
}

// CivilDate truncates t to its calendar day in loc, returned at UTC midnight.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
