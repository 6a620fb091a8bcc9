package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/doctor-portal/internal/appointments"
	appconfig "github.com/wolfman30/doctor-portal/internal/config"
	"github.com/wolfman30/doctor-portal/internal/events"
	"github.com/wolfman30/doctor-portal/internal/notify"
	"github.com/wolfman30/doctor-portal/internal/observability/metrics"
	"github.com/wolfman30/doctor-portal/pkg/logging"
)

// NotificationDeps carries the optional clients notification sinks need.
type NotificationDeps struct {
	AWS     *aws.Config
	Pool    *pgxpool.Pool
	Metrics *metrics.SchedulingMetrics
	Logger  *logging.Logger
}

// Notifications is the post-booking notification wiring.
type Notifications struct {
	// Notifier is handed to the scheduling service; nil when nothing is
	// configured or when bookings go through the outbox.
	Notifier appointments.Notifier
	// InsertHook writes the outbox row inside the booking transaction when
	// NOTIFY_OUTBOX is enabled with Postgres.
	InsertHook appointments.InsertHook
	// Deliverer drains the outbox when NOTIFY_OUTBOX is enabled with Postgres.
	Deliverer *events.Deliverer
	Sinks     []string
}

// BuildNotifications assembles the configured sinks behind a fanout. With the
// outbox enabled the booking transaction writes an outbox row and the fanout
// runs from the deliverer instead.
func BuildNotifications(ctx context.Context, cfg *appconfig.Config, deps NotificationDeps) (*Notifications, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}

	var sinks []notify.Named
	add := func(name string, sink notify.Sink) {
		sinks = append(sinks, notify.Named{Name: name, Sink: notify.NewRetrying(sink, cfg.NotifyMaxAttempts, cfg.NotifyRetryDelay)})
	}

	if strings.TrimSpace(cfg.GoogleCalendarCredentialsFile) != "" {
		loc, err := cfg.Location()
		if err != nil {
			return nil, fmt.Errorf("bootstrap: org timezone: %w", err)
		}
		calendarSink, err := notify.NewGoogleCalendarSink(ctx, notify.GoogleCalendarConfig{
			CredentialsFile: cfg.GoogleCalendarCredentialsFile,
			CalendarID:      cfg.GoogleCalendarID,
			Location:        loc,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: google calendar: %w", err)
		}
		add("google_calendar", calendarSink)
	}

	if strings.TrimSpace(cfg.NotifyEmailTo) != "" {
		sender, provider := buildEmailSender(cfg, deps.AWS, logger)
		add("email", notify.NewEmailSink(sender, nil, cfg.NotifyEmailTo, logger))
		logger.Info("email notifications enabled", "provider", provider)
	}

	if queueURL := strings.TrimSpace(cfg.AppointmentEventsQueueURL); queueURL != "" {
		if deps.AWS == nil {
			logger.Warn("APPOINTMENT_EVENTS_QUEUE_URL set without AWS config; skipping SQS sink")
		} else {
			add("sqs", notify.NewSQSSink(sqs.NewFromConfig(*deps.AWS), queueURL))
		}
	}

	out := &Notifications{}
	for _, s := range sinks {
		out.Sinks = append(out.Sinks, s.Name)
	}
	fanout := notify.NewFanout(deps.Metrics, logger, sinks...)

	if cfg.NotifyUseOutbox && deps.Pool != nil {
		outbox := events.NewOutboxStore(deps.Pool)
		handler := notify.NewOutboxHandler(fanout, events.NewProcessedStore(deps.Pool), logger)
		out.InsertHook = notify.AppendBooked
		out.Deliverer = events.NewDeliverer(outbox, handler, logger).WithLease(cfg.OutboxLease)
		logger.Info("notifications routed through outbox", "sinks", out.Sinks)
		return out, nil
	}
	if cfg.NotifyUseOutbox {
		logger.Warn("NOTIFY_OUTBOX requires DATABASE_URL; notifying inline")
	}
	if fanout.Len() > 0 {
		out.Notifier = fanout
	}
	return out, nil
}

func buildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (notify.EmailSender, string) {
	if sender := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sender != nil {
		return sender, "sendgrid"
	}
	if cfg.SESFromEmail != "" && awsCfg != nil {
		return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger), "ses"
	}
	return notify.NewStubEmailSender(logger), "stub"
}
