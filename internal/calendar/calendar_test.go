package calendar

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestComputeEndTime(t *testing.T) {
	date := NewDate(2024, time.January, 10)
	tests := []struct {
		name     string
		start    Clock
		duration time.Duration
		want     Clock
		wantErr  bool
	}{
		{"morning", NewClock(9, 0), 45 * time.Minute, NewClock(9, 45), false},
		{"crosses the hour", NewClock(10, 30), 45 * time.Minute, NewClock(11, 15), false},
		{"last minute before midnight", NewClock(23, 14), 45 * time.Minute, NewClock(23, 59), false},
		{"ends at midnight", NewClock(23, 15), 45 * time.Minute, 0, true},
		{"crosses midnight", NewClock(23, 30), 45 * time.Minute, 0, true},
		{"negative start", Clock(-5), 45 * time.Minute, 0, true},
		{"start past end of day", Clock(24 * 60), 45 * time.Minute, 0, true},
		{"zero duration", NewClock(9, 0), 0, 0, true},
		{"sub-minute duration", NewClock(9, 0), 90 * time.Second, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeEndTime(date, tt.start, tt.duration)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSlot) {
					t.Fatalf("expected ErrInvalidSlot, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestComputeEndTimeAlwaysAddsDuration(t *testing.T) {
	date := NewDate(2024, time.March, 31)
	for start := Clock(0); start.Add(45*time.Minute) < 24*60; start++ {
		end, err := ComputeEndTime(date, start, 45*time.Minute)
		if err != nil {
			t.Fatalf("start %s: %v", start, err)
		}
		if end-start != 45 {
			t.Fatalf("start %s: end %s is not 45 minutes later", start, end)
		}
	}
}

func TestComputeEndTimeRequiresDate(t *testing.T) {
	if _, err := ComputeEndTime(Date{}, NewClock(9, 0), 45*time.Minute); !errors.Is(err, ErrInvalidSlot) {
		t.Fatalf("expected ErrInvalidSlot for zero date, got %v", err)
	}
}

func TestIntervalsOverlap(t *testing.T) {
	tests := []struct {
		name         string
		aStart, aEnd Clock
		bStart, bEnd Clock
		want         bool
	}{
		{"adjacent", NewClock(10, 0), NewClock(10, 45), NewClock(10, 45), NewClock(11, 30), false},
		{"adjacent reversed", NewClock(10, 45), NewClock(11, 30), NewClock(10, 0), NewClock(10, 45), false},
		{"partial", NewClock(10, 0), NewClock(10, 45), NewClock(10, 30), NewClock(11, 15), true},
		{"identical", NewClock(14, 0), NewClock(14, 45), NewClock(14, 0), NewClock(14, 45), true},
		{"contained", NewClock(9, 0), NewClock(12, 0), NewClock(10, 0), NewClock(10, 45), true},
		{"disjoint", NewClock(8, 0), NewClock(8, 45), NewClock(9, 0), NewClock(9, 45), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IntervalsOverlap(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd); got != tt.want {
				t.Fatalf("IntervalsOverlap = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseDateAndClock(t *testing.T) {
	d, err := ParseDate("2024-01-10")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d != NewDate(2024, time.January, 10) || d.String() != "2024-01-10" {
		t.Fatalf("unexpected date %v", d)
	}
	if d.Weekday() != time.Wednesday {
		t.Fatalf("expected Wednesday, got %s", d.Weekday())
	}

	c, err := ParseClock("14:05")
	if err != nil {
		t.Fatalf("ParseClock: %v", err)
	}
	if c != NewClock(14, 5) || c.String() != "14:05" {
		t.Fatalf("unexpected clock %v", c)
	}

	for _, bad := range []string{"", "25:00", "9am", "14:60"} {
		if _, err := ParseClock(bad); !errors.Is(err, ErrInvalidSlot) {
			t.Errorf("ParseClock(%q) expected ErrInvalidSlot, got %v", bad, err)
		}
	}
	if _, err := ParseDate("2024-02-30"); !errors.Is(err, ErrInvalidSlot) {
		t.Errorf("expected ErrInvalidSlot for impossible date, got %v", err)
	}
}

func TestJSONRoundTripUsesWireFormat(t *testing.T) {
	type payload struct {
		Date  Date  `json:"date"`
		Start Clock `json:"start_time"`
	}
	data, err := json.Marshal(payload{Date: NewDate(2024, time.January, 10), Start: NewClock(9, 45)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"date":"2024-01-10","start_time":"09:45"}` {
		t.Fatalf("unexpected json %s", data)
	}
	var back payload
	if err := json.Unmarshal([]byte(`{"date":"2024-12-01","start_time":"17:15"}`), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Date != NewDate(2024, time.December, 1) || back.Start != NewClock(17, 15) {
		t.Fatalf("unexpected payload %+v", back)
	}
}

func TestWindow(t *testing.T) {
	w, err := ParseWindow("09:00", "18:00")
	if err != nil {
		t.Fatalf("ParseWindow: %v", err)
	}
	if !w.Contains(Interval{Start: NewClock(17, 15), End: NewClock(18, 0)}) {
		t.Fatal("expected slot ending at close to fit")
	}
	if w.Contains(Interval{Start: NewClock(17, 30), End: NewClock(18, 15)}) {
		t.Fatal("expected slot past close to be rejected")
	}
	if w.Contains(Interval{Start: NewClock(8, 30), End: NewClock(9, 15)}) {
		t.Fatal("expected slot before open to be rejected")
	}
	if (Window{}).Contains(Interval{Start: NewClock(10, 0), End: NewClock(10, 45)}) {
		t.Fatal("zero window must be closed")
	}
	if _, err := ParseWindow("18:00", "09:00"); !errors.Is(err, ErrInvalidSlot) {
		t.Fatalf("expected inverted window to fail, got %v", err)
	}
}
