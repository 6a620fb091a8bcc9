package appointments

import (
	"testing"
	"time"

	"github.com/wolfman30/doctor-portal/internal/calendar"
)

func TestComputeSlots(t *testing.T) {
	window := calendar.Window{Start: calendar.NewClock(9, 0), End: calendar.NewClock(11, 0)}
	booked := []calendar.Interval{{Start: calendar.NewClock(9, 30), End: calendar.NewClock(10, 15)}}

	tests := []struct {
		name  string
		query SlotQuery
		want  []string
	}{
		{
			name:  "empty day steps by duration",
			query: SlotQuery{Window: window, Duration: 45 * time.Minute},
			want:  []string{"09:00", "09:45"},
		},
		{
			name:  "fine granularity around a booking",
			query: SlotQuery{Window: window, Duration: 30 * time.Minute, Granularity: 15 * time.Minute, Booked: booked},
			want:  []string{"09:00", "10:15", "10:30"},
		},
		{
			name:  "slot ending at window end fits",
			query: SlotQuery{Window: window, Duration: time.Hour},
			want:  []string{"09:00", "10:00"},
		},
		{
			name:  "duration longer than window",
			query: SlotQuery{Window: window, Duration: 3 * time.Hour},
			want:  []string{},
		},
		{
			name:  "closed window",
			query: SlotQuery{Duration: 45 * time.Minute},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeSlots(tt.query)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got == nil {
				t.Fatalf("expected non-nil slots")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i].String() != tt.want[i] {
					t.Fatalf("slot %d: got %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestComputeSlots_NeverOverlapsBooked(t *testing.T) {
	window := calendar.Window{Start: calendar.NewClock(8, 0), End: calendar.NewClock(20, 0)}
	booked := []calendar.Interval{
		{Start: calendar.NewClock(8, 50), End: calendar.NewClock(9, 35)},
		{Start: calendar.NewClock(13, 0), End: calendar.NewClock(13, 45)},
		{Start: calendar.NewClock(19, 10), End: calendar.NewClock(19, 55)},
	}
	for _, step := range []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute, 45 * time.Minute} {
		slots, err := ComputeSlots(SlotQuery{Window: window, Duration: 45 * time.Minute, Granularity: step, Booked: booked})
		if err != nil {
			t.Fatalf("step %s: %v", step, err)
		}
		var prev calendar.Clock = -1
		for _, s := range slots {
			if s <= prev {
				t.Fatalf("step %s: slots not ascending: %v", step, slots)
			}
			prev = s
			candidate := calendar.Interval{Start: s, End: s.Add(45 * time.Minute)}
			if !window.Contains(candidate) {
				t.Fatalf("step %s: %s outside window", step, candidate)
			}
			for _, b := range booked {
				if candidate.Overlaps(b) {
					t.Fatalf("step %s: %s overlaps %s", step, candidate, b)
				}
			}
		}
	}
}

func TestComputeSlots_RejectsBadSteps(t *testing.T) {
	window := calendar.Window{Start: calendar.NewClock(9, 0), End: calendar.NewClock(17, 0)}
	bad := []SlotQuery{
		{Window: window},
		{Window: window, Duration: -time.Minute},
		{Window: window, Duration: 90 * time.Second},
		{Window: window, Duration: time.Hour, Granularity: 30 * time.Second},
		{Window: window, Duration: time.Hour, Granularity: -time.Minute},
	}
	for _, q := range bad {
		if _, err := ComputeSlots(q); KindOf(err) != KindInvalidSlot {
			t.Fatalf("query %+v: expected invalid slot, got %v", q, err)
		}
	}
}
