package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/doctor-portal/internal/calendar"
	"github.com/wolfman30/doctor-portal/internal/observability/metrics"
	"github.com/wolfman30/doctor-portal/pkg/logging"
)

var appointmentsTracer = otel.Tracer("portal.internal.appointments")

// Notifier is told about every committed booking. It runs after the booking
// lock is released; an error never undoes the booking.
type Notifier interface {
	Notify(ctx context.Context, apt Appointment) error
}

// Config holds the scheduling rules the service enforces.
type Config struct {
	// Duration is the fixed consultation length.
	Duration time.Duration
	// Granularity is the availability step; zero means Duration.
	Granularity time.Duration
	// LockTimeout bounds the wait for the doctor/date lock before ErrBusy.
	LockTimeout time.Duration
	// NotifyTimeout bounds the post-commit notification call.
	NotifyTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Duration == 0 {
		c.Duration = 45 * time.Minute
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = 3 * time.Second
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = 5 * time.Second
	}
	return c
}

// Service computes availability and commits bookings.
type Service struct {
	store    Store
	hours    HoursProvider
	locker   Locker
	notifier Notifier
	metrics  *metrics.SchedulingMetrics
	logger   *logging.Logger
	cfg      Config
	now      func() time.Time
	newID    func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithLocker replaces the default in-process locker.
func WithLocker(l Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithNotifier sets the post-commit notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics attaches scheduling metrics.
func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now, used for createdAt and cancelledAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the uuid generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService constructs the scheduling service.
func NewService(store Store, hours HoursProvider, cfg Config, opts ...Option) *Service {
	if store == nil {
		panic("appointments: store required")
	}
	if hours == nil {
		panic("appointments: hours provider required")
	}
	s := &Service{
		store:  store,
		hours:  hours,
		locker: NewKeyedLocker(),
		logger: logging.Default(),
		cfg:    cfg.withDefaults(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAvailability returns the bookable start times for the doctor on date.
// It reads the store fresh on every call and is advisory only: Book performs
// the authoritative check.
func (s *Service) GetAvailability(ctx context.Context, doctorID string, date calendar.Date) ([]calendar.Clock, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.availability", trace.WithAttributes(
		attribute.String("portal.doctor_id", doctorID),
		attribute.String("portal.date", date.String()),
	))
	defer span.End()

	slots, err := s.availability(ctx, doctorID, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "availability failed")
		s.metrics.ObserveAvailability("error")
		return nil, err
	}
	s.metrics.ObserveAvailability("ok")
	return slots, nil
}

func (s *Service) availability(ctx context.Context, doctorID string, date calendar.Date) ([]calendar.Clock, error) {
	if strings.TrimSpace(doctorID) == "" {
		return nil, invalidRequest("doctor_id is required")
	}
	if date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidSlot)
	}
	window, err := s.hours.HoursFor(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("appointments: working hours for %s: %w", doctorID, err)
	}
	existing, err := s.store.ListByDoctorAndDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("appointments: list %s on %s: %w", doctorID, date, err)
	}
	return ComputeSlots(SlotQuery{
		Window:      window,
		Duration:    s.cfg.Duration,
		Granularity: s.cfg.Granularity,
		Booked:      bookedIntervals(existing),
	})
}

// Book validates and commits an appointment. The overlap re-check and the
// insert run while holding the doctor/date lock; the store rejects overlaps
// on its own as well. Notification happens after the lock is released, and a
// notification failure is reported as a warning on the committed result.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.book", trace.WithAttributes(
		attribute.String("portal.doctor_id", req.DoctorID),
		attribute.String("portal.patient_id", req.PatientID),
		attribute.String("portal.date", req.Date.String()),
		attribute.String("portal.start_time", req.StartTime.String()),
	))
	defer span.End()

	apt, err := s.commit(ctx, req)
	s.metrics.ObserveBooking(outcomeLabel(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		s.logger.Info("booking rejected",
			"doctor_id", req.DoctorID,
			"patient_id", req.PatientID,
			"date", req.Date.String(),
			"start_time", req.StartTime.String(),
			"reason", KindOf(err),
			"error", err,
		)
		return nil, err
	}
	span.SetAttributes(attribute.String("portal.appointment_id", apt.ID))
	s.logger.Info("booking committed",
		"appointment_id", apt.ID,
		"doctor_id", apt.DoctorID,
		"patient_id", apt.PatientID,
		"date", apt.Date.String(),
		"start_time", apt.StartTime.String(),
		"end_time", apt.EndTime.String(),
	)

	result := &BookingResult{Appointment: apt}
	if w := s.notify(ctx, apt); w != nil {
		result.Warnings = append(result.Warnings, *w)
	}
	return result, nil
}

func (s *Service) commit(ctx context.Context, req BookingRequest) (Appointment, error) {
	if err := req.Validate(); err != nil {
		return Appointment{}, err
	}
	end, err := calendar.ComputeEndTime(req.Date, req.StartTime, s.cfg.Duration)
	if err != nil {
		return Appointment{}, err
	}
	interval := calendar.Interval{Start: req.StartTime, End: end}

	window, err := s.hours.HoursFor(ctx, req.DoctorID, req.Date)
	if err != nil {
		return Appointment{}, fmt.Errorf("appointments: working hours for %s: %w", req.DoctorID, err)
	}
	if !window.Contains(interval) {
		return Appointment{}, fmt.Errorf("%w: %s on %s is outside %s", ErrOutOfHours, interval, req.Date, window)
	}

	unlock, err := s.acquire(ctx, LockKey(req.DoctorID, req.Date))
	if err != nil {
		return Appointment{}, err
	}
	defer unlock()

	existing, err := s.store.ListByDoctorAndDate(ctx, req.DoctorID, req.Date)
	if err != nil {
		return Appointment{}, fmt.Errorf("appointments: list %s on %s: %w", req.DoctorID, req.Date, err)
	}
	if other, found := firstConflict(existing, interval); found {
		return Appointment{}, fmt.Errorf("%w: %s overlaps appointment %s at %s", ErrSlotConflict, interval, other.ID, other.Interval())
	}

	apt := Appointment{
		ID:         s.newID(),
		PatientID:  req.PatientID,
		DoctorID:   req.DoctorID,
		Speciality: strings.TrimSpace(req.Speciality),
		Date:       req.Date,
		StartTime:  req.StartTime,
		EndTime:    end,
		Status:     StatusBooked,
		CreatedAt:  s.now(),
	}
	stored, err := s.store.Insert(ctx, apt)
	if err != nil {
		if errors.Is(err, ErrSlotConflict) {
			return Appointment{}, err
		}
		return Appointment{}, fmt.Errorf("appointments: insert: %w", err)
	}
	return stored, nil
}

// acquire takes the lock within LockTimeout. Running out of time is ErrBusy;
// the caller's own cancellation is returned as is.
func (s *Service) acquire(ctx context.Context, key string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
	defer cancel()

	started := time.Now()
	unlock, err := s.locker.Lock(lockCtx, key)
	s.metrics.ObserveLockWait(time.Since(started).Seconds())
	if err == nil {
		return unlock, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: waited %s for %s", ErrBusy, s.cfg.LockTimeout, key)
	}
	return nil, fmt.Errorf("appointments: lock %s: %w", key, err)
}

func (s *Service) notify(ctx context.Context, apt Appointment) *Warning {
	if s.notifier == nil {
		return nil
	}
	// The booking is committed; a caller that goes away must not cut the
	// notification short.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
	defer cancel()

	if err := s.notifier.Notify(notifyCtx, apt); err != nil {
		s.logger.Warn("booking notification failed", "appointment_id", apt.ID, "error", err)
		return &Warning{Kind: KindNotificationFailed, Message: err.Error()}
	}
	return nil
}

// Get returns one appointment.
func (s *Service) Get(ctx context.Context, id string) (Appointment, error) {
	if strings.TrimSpace(id) == "" {
		return Appointment{}, invalidRequest("id is required")
	}
	return s.store.Get(ctx, id)
}

// ListPatientAppointments returns a patient's appointments ordered by date and start time.
func (s *Service) ListPatientAppointments(ctx context.Context, patientID string) ([]Appointment, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, invalidRequest("patient_id is required")
	}
	return s.store.ListByPatient(ctx, patientID)
}

// ListDoctorAppointments returns a doctor's appointments ordered by date and start time.
func (s *Service) ListDoctorAppointments(ctx context.Context, doctorID string) ([]Appointment, error) {
	if strings.TrimSpace(doctorID) == "" {
		return nil, invalidRequest("doctor_id is required")
	}
	return s.store.ListByDoctor(ctx, doctorID)
}

// Cancel frees an appointment's slot. Only the patient or doctor on the
// appointment may cancel it; cancelling twice returns the cancelled record.
func (s *Service) Cancel(ctx context.Context, id, actorID string) (Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.cancel", trace.WithAttributes(
		attribute.String("portal.appointment_id", id),
	))
	defer span.End()

	apt, err := s.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		return Appointment{}, err
	}
	if !apt.HasParticipant(actorID) {
		return Appointment{}, ErrNotParticipant
	}
	if !apt.Active() {
		return apt, nil
	}
	cancelled, err := s.store.Cancel(ctx, id, s.now())
	if err != nil {
		span.RecordError(err)
		return Appointment{}, fmt.Errorf("appointments: cancel %s: %w", id, err)
	}
	s.metrics.ObserveCancellation()
	s.logger.Info("appointment cancelled", "appointment_id", id, "actor_id", actorID)
	return cancelled, nil
}

func outcomeLabel(err error) string {
	switch KindOf(err) {
	case KindNone:
		return metrics.OutcomeBooked
	case KindSlotConflict:
		return metrics.OutcomeConflict
	case KindOutOfHours:
		return metrics.OutcomeOutOfHours
	case KindInvalidSlot, KindInvalidRequest:
		return metrics.OutcomeInvalid
	case KindBusy:
		return metrics.OutcomeBusy
	default:
		return metrics.OutcomeError
	}
}
