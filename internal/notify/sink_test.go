package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/doctor-portal/internal/appointments"
	"github.com/wolfman30/doctor-portal/internal/calendar"
	"github.com/wolfman30/doctor-portal/internal/observability/metrics"
	"github.com/wolfman30/doctor-portal/pkg/logging"
)

func testAppointment() appointments.Appointment {
	return appointments.Appointment{
		ID:         "apt-1",
		PatientID:  "pat-1",
		DoctorID:   "doc-1",
		Speciality: "Cardiology",
		Date:       calendar.NewDate(2024, time.January, 10),
		StartTime:  calendar.NewClock(14, 0),
		EndTime:    calendar.NewClock(14, 45),
		Status:     appointments.StatusBooked,
		CreatedAt:  time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestFanoutRunsEverySinkAndJoinsErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewSchedulingMetrics(reg)

	var calls []string
	ok := Func(func(ctx context.Context, apt appointments.Appointment) error {
		calls = append(calls, "ok")
		return nil
	})
	boom := errors.New("boom")
	failing := Func(func(ctx context.Context, apt appointments.Appointment) error {
		calls = append(calls, "failing")
		return boom
	})

	fanout := NewFanout(m, logging.Discard(),
		Named{Name: "failing", Sink: failing},
		Named{Name: "skipped", Sink: nil},
		Named{Name: "ok", Sink: ok},
	)
	require.Equal(t, 2, fanout.Len())

	err := fanout.Notify(context.Background(), testAppointment())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
	assert.Equal(t, []string{"failing", "ok"}, calls)

	count, err := testutil.GatherAndCount(reg, "portal_scheduling_notifications_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestFanoutEmptyIsNoop(t *testing.T) {
	assert.NoError(t, NewFanout(nil, nil).Notify(context.Background(), testAppointment()))
}

func TestRetryingStopsOnSuccess(t *testing.T) {
	attempts := 0
	sink := NewRetrying(Func(func(ctx context.Context, apt appointments.Appointment) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}), 5, time.Millisecond)

	require.NoError(t, sink.Notify(context.Background(), testAppointment()))
	assert.Equal(t, 3, attempts)
}

func TestRetryingIsBounded(t *testing.T) {
	attempts := 0
	boom := errors.New("down")
	sink := NewRetrying(Func(func(ctx context.Context, apt appointments.Appointment) error {
		attempts++
		return boom
	}), 3, time.Millisecond)

	err := sink.Notify(context.Background(), testAppointment())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, attempts)

	attempts = 0
	single := NewRetrying(Func(func(ctx context.Context, apt appointments.Appointment) error {
		attempts++
		return boom
	}), 0, time.Millisecond)
	assert.Error(t, single.Notify(context.Background(), testAppointment()))
	assert.Equal(t, 1, attempts)
}

func TestRetryingHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	sink := NewRetrying(Func(func(ctx context.Context, apt appointments.Appointment) error {
		return errors.New("down")
	}), 10, time.Second)

	start := time.Now()
	err := sink.Notify(ctx, testAppointment())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBookedEventRoundTrip(t *testing.T) {
	apt := testAppointment()
	evt := BookedEvent(apt)
	assert.Equal(t, "2024-01-10", evt.Date)
	assert.Equal(t, "14:45", evt.EndTime)

	back, err := appointmentFromEvent(evt)
	require.NoError(t, err)
	assert.Equal(t, apt, back)

	evt.StartTime = "bad"
	_, err = appointmentFromEvent(evt)
	assert.Error(t, err)
}
