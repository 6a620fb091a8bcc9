// Package notify delivers booking notifications to external systems. Every
// sink is best effort: the booking is already committed when a sink runs.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/doctor-portal/internal/appointments"
	"github.com/wolfman30/doctor-portal/internal/observability/metrics"
	"github.com/wolfman30/doctor-portal/pkg/logging"
)

// Sink receives committed appointments.
type Sink interface {
	Notify(ctx context.Context, apt appointments.Appointment) error
}

var _ appointments.Notifier = (Sink)(nil)

// Func adapts a function to Sink.
type Func func(ctx context.Context, apt appointments.Appointment) error

func (f Func) Notify(ctx context.Context, apt appointments.Appointment) error { return f(ctx, apt) }

// Named pairs a sink with the label used in logs and metrics.
type Named struct {
	Name string
	Sink Sink
}

// Fanout calls every sink in order and joins their errors. One failing sink
// does not stop the rest.
type Fanout struct {
	sinks   []Named
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
}

// NewFanout creates a fanout over sinks. Nil sinks are skipped.
func NewFanout(m *metrics.SchedulingMetrics, logger *logging.Logger, sinks ...Named) *Fanout {
	if logger == nil {
		logger = logging.Default()
	}
	kept := make([]Named, 0, len(sinks))
	for _, s := range sinks {
		if s.Sink != nil {
			kept = append(kept, s)
		}
	}
	return &Fanout{sinks: kept, metrics: m, logger: logger}
}

// Len reports how many sinks are wired.
func (f *Fanout) Len() int { return len(f.sinks) }

func (f *Fanout) Notify(ctx context.Context, apt appointments.Appointment) error {
	return f.notifyEach(ctx, apt, nil)
}

// sinkRunner wraps the call to one named sink. It may skip call entirely.
type sinkRunner func(ctx context.Context, name string, call func(context.Context) error) error

func (f *Fanout) notifyEach(ctx context.Context, apt appointments.Appointment, run sinkRunner) error {
	var errs []error
	for _, s := range f.sinks {
		sink := s.Sink
		invoked := false
		call := func(ctx context.Context) error {
			invoked = true
			return sink.Notify(ctx, apt)
		}
		var err error
		if run == nil {
			err = call(ctx)
		} else {
			err = run(ctx, s.Name, call)
		}
		if invoked {
			f.metrics.ObserveNotification(s.Name, err == nil)
		}
		if err != nil {
			f.logger.Warn("notification sink failed", "sink", s.Name, "appointment_id", apt.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		if !invoked {
			f.logger.Debug("notification already delivered", "sink", s.Name, "appointment_id", apt.ID)
			continue
		}
		f.logger.Debug("notification delivered", "sink", s.Name, "appointment_id", apt.ID)
	}
	return errors.Join(errs...)
}

// Retrying retries a sink a bounded number of times with doubling delay.
type Retrying struct {
	sink     Sink
	attempts int
	delay    time.Duration
}

// NewRetrying wraps sink. attempts below one means a single try.
func NewRetrying(sink Sink, attempts int, delay time.Duration) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrying{sink: sink, attempts: attempts, delay: delay}
}

func (r *Retrying) Notify(ctx context.Context, apt appointments.Appointment) error {
	delay := r.delay
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err = r.sink.Notify(ctx, apt); err == nil {
			return nil
		}
		if attempt == r.attempts {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
		delay *= 2
	}
	return fmt.Errorf("notify: gave up after %d attempts: %w", r.attempts, err)
}
