package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/doctor-portal/internal/calendar"
)

// HoursProvider resolves a doctor's working-hours window for a date. A closed
// day is the zero Window.
type HoursProvider interface {
	HoursFor(ctx context.Context, doctorID string, date calendar.Date) (calendar.Window, error)
}

// HoursFunc adapts a plain function to HoursProvider.
type HoursFunc func(ctx context.Context, doctorID string, date calendar.Date) (calendar.Window, error)

func (f HoursFunc) HoursFor(ctx context.Context, doctorID string, date calendar.Date) (calendar.Window, error) {
	return f(ctx, doctorID, date)
}

// SlotQuery is the input to ComputeSlots.
type SlotQuery struct {
	Window   calendar.Window
	Duration time.Duration
	// Granularity is the step between candidate starts; zero means Duration.
	Granularity time.Duration
	// Booked holds the intervals already taken on that date.
	Booked []calendar.Interval
}

// ComputeSlots enumerates candidate start times from the window start in
// Granularity steps, keeping those whose full Duration fits in the window and
// overlaps no booked interval. The result is ascending and never nil.
func ComputeSlots(q SlotQuery) ([]calendar.Clock, error) {
	if q.Duration <= 0 || q.Duration%time.Minute != 0 {
		return nil, fmt.Errorf("%w: duration %s", ErrInvalidSlot, q.Duration)
	}
	step := q.Granularity
	if step == 0 {
		step = q.Duration
	}
	if step < time.Minute || step%time.Minute != 0 {
		return nil, fmt.Errorf("%w: granularity %s", ErrInvalidSlot, step)
	}

	slots := make([]calendar.Clock, 0)
	if !q.Window.Open() {
		return slots, nil
	}
	for start := q.Window.Start; start.Add(q.Duration) <= q.Window.End; start = start.Add(step) {
		candidate := calendar.Interval{Start: start, End: start.Add(q.Duration)}
		if !overlapsAny(candidate, q.Booked) {
			slots = append(slots, start)
		}
	}
	return slots, nil
}

func overlapsAny(candidate calendar.Interval, booked []calendar.Interval) bool {
	for _, b := range booked {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// firstConflict returns the first active appointment overlapping interval.
func firstConflict(existing []Appointment, interval calendar.Interval) (Appointment, bool) {
	for _, apt := range existing {
		if apt.Active() && apt.Interval().Overlaps(interval) {
			return apt, true
		}
	}
	return Appointment{}, false
}

func bookedIntervals(apts []Appointment) []calendar.Interval {
	out := make([]calendar.Interval, 0, len(apts))
	for _, apt := range apts {
		if apt.Active() {
			out = append(out, apt.Interval())
		}
	}
	return out
}
