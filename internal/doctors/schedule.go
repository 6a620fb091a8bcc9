// Package doctors resolves when each doctor works.
package doctors

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/doctor-portal/internal/calendar"
)

// Schedule is the organisation-wide working week: one daily window applied
// to a fixed set of weekdays.
type Schedule struct {
	window calendar.Window
	days   map[time.Weekday]bool
}

// NewSchedule creates a schedule open during window on the given weekdays.
func NewSchedule(window calendar.Window, days []time.Weekday) *Schedule {
	set := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	return &Schedule{window: window, days: set}
}

// HoursFor returns the window for date, or the closed window on days off.
// The doctor is ignored; every doctor follows the organisation's week.
func (s *Schedule) HoursFor(ctx context.Context, doctorID string, date calendar.Date) (calendar.Window, error) {
	if s == nil || !s.days[date.Weekday()] {
		return calendar.Window{}, nil
	}
	return s.window, nil
}

// Weekly expands the schedule into per-day hours.
func (s *Schedule) Weekly() WeeklyHours {
	var w WeeklyHours
	for day := range s.days {
		w.set(day, &DayHours{Open: s.window.Start.String(), Close: s.window.End.String()})
	}
	return w
}

func (s *Schedule) String() string {
	names := make([]string, 0, len(s.days))
	ordered := make([]time.Weekday, 0, len(s.days))
	for d := range s.days {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })
	for _, d := range ordered {
		names = append(names, strings.ToLower(d.String()[:3]))
	}
	return s.window.String() + " " + strings.Join(names, ",")
}
