package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/wolfman30/doctor-portal/internal/appointments"
	"github.com/wolfman30/doctor-portal/pkg/logging"
)

// GoogleCalendarSink mirrors each booking as an event on a Google calendar.
type GoogleCalendarSink struct {
	events     *gcal.EventsService
	calendarID string
	loc        *time.Location
	logger     *logging.Logger
}

// GoogleCalendarConfig configures the calendar sink.
type GoogleCalendarConfig struct {
	// CredentialsFile is a service account JSON key.
	CredentialsFile string
	CalendarID      string
	Location        *time.Location
}

// NewGoogleCalendarSink builds a sink talking to the Calendar API. Extra
// client options are appended after the credentials, which lets tests point
// the client at a local server.
func NewGoogleCalendarSink(ctx context.Context, cfg GoogleCalendarConfig, logger *logging.Logger, opts ...option.ClientOption) (*GoogleCalendarSink, error) {
	clientOpts := make([]option.ClientOption, 0, len(opts)+2)
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile), option.WithScopes(gcal.CalendarScope))
	}
	clientOpts = append(clientOpts, opts...)
	if len(clientOpts) == 0 {
		return nil, errors.New("notify: google calendar credentials required")
	}

	svc, err := gcal.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("notify: google calendar client: %w", err)
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GoogleCalendarSink{
		events:     gcal.NewEventsService(svc),
		calendarID: cfg.CalendarID,
		loc:        cfg.Location,
		logger:     logger,
	}, nil
}

func (s *GoogleCalendarSink) Notify(ctx context.Context, apt appointments.Appointment) error {
	created, err := s.events.Insert(s.calendarID, s.eventFor(apt)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("notify: create calendar event: %w", err)
	}
	s.logger.Info("calendar event created", "appointment_id", apt.ID, "event_id", created.Id)
	return nil
}

func (s *GoogleCalendarSink) eventFor(apt appointments.Appointment) *gcal.Event {
	return &gcal.Event{
		Summary:     "Appointment with patient " + apt.PatientID,
		Description: "Medical appointment for " + apt.Speciality,
		Start: &gcal.EventDateTime{
			DateTime: apt.StartTime.On(apt.Date, s.loc).Format(time.RFC3339),
			TimeZone: s.loc.String(),
		},
		End: &gcal.EventDateTime{
			DateTime: apt.EndTime.On(apt.Date, s.loc).Format(time.RFC3339),
			TimeZone: s.loc.String(),
		},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{
				"appointment_id": apt.ID,
				"doctor_id":      apt.DoctorID,
			},
		},
	}
}
