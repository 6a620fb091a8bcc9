// Package calendar provides the date and time-of-day arithmetic used by the
// appointment scheduler. Everything here is pure: no clocks, no I/O.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSlot is returned when a time is malformed or a computed end time
// would cross into the next day.
var ErrInvalidSlot = errors.New("invalid slot")

const (
	dateLayout  = "2006-01-02"
	minutesADay = 24 * 60
)

// Date is a civil calendar date in the organization's timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a Date, normalizing out-of-range values the same way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the date portion of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: date %q: %v", ErrInvalidSlot, s, err)
	}
	return DateOf(t), nil
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns midnight of d in loc. A nil loc means UTC.
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday {
	return d.Time(time.UTC).Weekday()
}

func (d Date) String() string {
	return d.Time(time.UTC).Format(dateLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock is a time of day, in minutes after midnight.
type Clock int

// NewClock returns the Clock for hour:minute.
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock parses an HH:MM string in 24-hour format.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: time %q: %v", ErrInvalidSlot, s, err)
	}
	return NewClock(t.Hour(), t.Minute()), nil
}

// Valid reports whether c is a time of day on a single day.
func (c Clock) Valid() bool {
	return c >= 0 && c < minutesADay
}

// Hour returns the hour component of c.
func (c Clock) Hour() int { return int(c) / 60 }

// Minute returns the minute component of c.
func (c Clock) Minute() int { return int(c) % 60 }

// Add returns c shifted by d, truncated to whole minutes. The result is not
// wrapped at midnight; use Valid to check it.
func (c Clock) Add(d time.Duration) Clock {
	return c + Clock(d/time.Minute)
}

// On returns the instant c occurs on date in loc.
func (c Clock) On(date Date, loc *time.Location) time.Time {
	return date.Time(loc).Add(time.Duration(c) * time.Minute)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// MarshalText implements encoding.TextMarshaler.
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ComputeEndTime returns start+duration on date. The end must stay strictly
// before midnight; anything that reaches the next day is ErrInvalidSlot.
func ComputeEndTime(date Date, start Clock, duration time.Duration) (Clock, error) {
	if date.IsZero() {
		return 0, fmt.Errorf("%w: date is required", ErrInvalidSlot)
	}
	if !start.Valid() {
		return 0, fmt.Errorf("%w: start %d minutes is not a time of day", ErrInvalidSlot, int(start))
	}
	if duration <= 0 || duration%time.Minute != 0 {
		return 0, fmt.Errorf("%w: duration %s must be a positive whole number of minutes", ErrInvalidSlot, duration)
	}
	end := start.Add(duration)
	if !end.Valid() {
		return 0, fmt.Errorf("%w: %s on %s plus %s crosses midnight", ErrInvalidSlot, start, date, duration)
	}
	return end, nil
}

// IntervalsOverlap compares half-open intervals [aStart, aEnd) and [bStart, bEnd).
// Touching intervals do not overlap.
func IntervalsOverlap(aStart, aEnd, bStart, bEnd Clock) bool {
	return aStart < bEnd && bStart < aEnd
}

// Interval is a half-open [Start, End) span within one day.
type Interval struct {
	Start Clock
	End   Clock
}

// Overlaps reports whether i and other share any minute.
func (i Interval) Overlaps(other Interval) bool {
	return IntervalsOverlap(i.Start, i.End, other.Start, other.End)
}

// Duration returns the length of i.
func (i Interval) Duration() time.Duration {
	return time.Duration(i.End-i.Start) * time.Minute
}

func (i Interval) String() string {
	return i.Start.String() + "-" + i.End.String()
}

// Window is a daily working-hours window. The zero Window is closed.
type Window struct {
	Start Clock
	End   Clock
}

// ParseWindow parses a pair of HH:MM values.
func ParseWindow(start, end string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	w := Window{Start: s, End: e}
	if !w.Open() {
		return Window{}, fmt.Errorf("%w: window %s-%s is empty", ErrInvalidSlot, start, end)
	}
	return w, nil
}

// Open reports whether the window admits any time at all.
func (w Window) Open() bool {
	return w.Start.Valid() && w.End > w.Start && w.End <= minutesADay
}

// Contains reports whether interval lies entirely inside the window.
func (w Window) Contains(interval Interval) bool {
	return w.Open() && interval.Start >= w.Start && interval.End <= w.End
}

func (w Window) String() string {
	if !w.Open() {
		return "closed"
	}
	return w.Start.String() + "-" + w.End.String()
}
