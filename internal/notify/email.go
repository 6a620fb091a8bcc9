package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/doctor-portal/internal/appointments"
	"github.com/wolfman30/doctor-portal/pkg/logging"
)

// EmailSender defines the interface for sending emails.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string // Plain text body
	HTML    string // Optional HTML body
}

type sendgridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender sends emails via SendGrid API.
type SendGridSender struct {
	client    sendgridClient
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender creates a SendGrid sender, or nil without an API key.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)
	html := msg.HTML
	if html == "" {
		html = msg.Body
	}

	response, err := s.client.SendWithContext(ctx, mail.NewSingleEmail(from, msg.Subject, to, msg.Body, html))
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "to", msg.To)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", msg.To)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("email sent via sendgrid", "to", msg.To, "subject", msg.Subject, "status", response.StatusCode)
	return nil
}

// StubEmailSender logs instead of sending; used when no provider is configured.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	s.logger.Info("stub email sender: would send email", "to", msg.To, "subject", msg.Subject)
	return nil
}

const defaultFromName = "Doctor Portal"

// AddressBook resolves a user id to an email address and display name.
type AddressBook interface {
	Lookup(ctx context.Context, userID string) (email, name string, err error)
}

// EmailSink emails a booking confirmation. Recipients come from the address
// book when one is set; the fixed copy address always receives one.
type EmailSink struct {
	sender EmailSender
	book   AddressBook
	copyTo string
	logger *logging.Logger
}

// NewEmailSink creates an email sink. copyTo may be empty.
func NewEmailSink(sender EmailSender, book AddressBook, copyTo string, logger *logging.Logger) *EmailSink {
	if sender == nil {
		panic("notify: email sender required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &EmailSink{sender: sender, book: book, copyTo: strings.TrimSpace(copyTo), logger: logger}
}

func (s *EmailSink) Notify(ctx context.Context, apt appointments.Appointment) error {
	recipients, err := s.recipients(ctx, apt)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		s.logger.Debug("email sink: no recipients", "appointment_id", apt.ID)
		return nil
	}
	msg := confirmationMessage(apt)
	for _, r := range recipients {
		msg.To, msg.ToName = r.email, r.name
		if err := s.sender.Send(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

type recipient struct{ email, name string }

func (s *EmailSink) recipients(ctx context.Context, apt appointments.Appointment) ([]recipient, error) {
	var out []recipient
	if s.book != nil {
		for _, id := range []string{apt.PatientID, apt.DoctorID} {
			email, name, err := s.book.Lookup(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("notify: lookup %s: %w", id, err)
			}
			if email != "" {
				out = append(out, recipient{email: email, name: name})
			}
		}
	}
	if s.copyTo != "" {
		out = append(out, recipient{email: s.copyTo})
	}
	return out, nil
}

func confirmationMessage(apt appointments.Appointment) EmailMessage {
	subject := fmt.Sprintf("Appointment confirmed: %s at %s", apt.Date, apt.StartTime)
	var b strings.Builder
	fmt.Fprintf(&b, "Your appointment is booked.\n\n")
	fmt.Fprintf(&b, "Date: %s\n", apt.Date)
	fmt.Fprintf(&b, "Time: %s - %s\n", apt.StartTime, apt.EndTime)
	if apt.Speciality != "" {
		fmt.Fprintf(&b, "Speciality: %s\n", apt.Speciality)
	}
	fmt.Fprintf(&b, "Reference: %s\n", apt.ID)
	return EmailMessage{Subject: subject, Body: b.String()}
}
