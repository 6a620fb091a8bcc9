package doctors

import (
	"fmt"
	"time"

	"github.com/wolfman30/doctor-portal/internal/calendar"
)

// DayHours are the opening hours for a single day. Nil means closed.
type DayHours struct {
	Open  string `json:"open"`  // "09:00" in 24-hour format
	Close string `json:"close"` // "18:00" in 24-hour format
}

// Window parses the hours.
func (h *DayHours) Window() (calendar.Window, error) {
	if h == nil {
		return calendar.Window{}, nil
	}
	return calendar.ParseWindow(h.Open, h.Close)
}

// WeeklyHours maps day names to a doctor's hours.
type WeeklyHours struct {
	Monday    *DayHours `json:"monday,omitempty"`
	Tuesday   *DayHours `json:"tuesday,omitempty"`
	Wednesday *DayHours `json:"wednesday,omitempty"`
	Thursday  *DayHours `json:"thursday,omitempty"`
	Friday    *DayHours `json:"friday,omitempty"`
	Saturday  *DayHours `json:"saturday,omitempty"`
	Sunday    *DayHours `json:"sunday,omitempty"`
}

// ForDay returns the hours for weekday, nil when closed.
func (w *WeeklyHours) ForDay(weekday time.Weekday) *DayHours {
	switch weekday {
	case time.Sunday:
		return w.Sunday
	case time.Monday:
		return w.Monday
	case time.Tuesday:
		return w.Tuesday
	case time.Wednesday:
		return w.Wednesday
	case time.Thursday:
		return w.Thursday
	case time.Friday:
		return w.Friday
	case time.Saturday:
		return w.Saturday
	default:
		return nil
	}
}

func (w *WeeklyHours) set(weekday time.Weekday, h *DayHours) {
	switch weekday {
	case time.Sunday:
		w.Sunday = h
	case time.Monday:
		w.Monday = h
	case time.Tuesday:
		w.Tuesday = h
	case time.Wednesday:
		w.Wednesday = h
	case time.Thursday:
		w.Thursday = h
	case time.Friday:
		w.Friday = h
	case time.Saturday:
		w.Saturday = h
	}
}

// Validate checks that every open day parses to a non-empty window.
func (w *WeeklyHours) Validate() error {
	for day := time.Sunday; day <= time.Saturday; day++ {
		if _, err := w.ForDay(day).Window(); err != nil {
			return fmt.Errorf("doctors: %s hours: %w", day, err)
		}
	}
	return nil
}
