package notify

import (
	"context"
	"fmt"

	"github.com/wolfman30/doctor-portal/internal/appointments"
	"github.com/wolfman30/doctor-portal/internal/events"
	"github.com/wolfman30/doctor-portal/pkg/logging"
)

// AppendBooked writes the booking event to the outbox through the booking
// transaction, so the entry exists exactly when the appointment does.
func AppendBooked(ctx context.Context, tx appointments.TxExecer, apt appointments.Appointment) error {
	if _, err := events.AppendCanonicalEvent(ctx, tx, aggregateFor(apt), BookedEvent(apt)); err != nil {
		return fmt.Errorf("notify: enqueue booking: %w", err)
	}
	return nil
}

var _ appointments.InsertHook = AppendBooked

type onceRunner interface {
	Once(ctx context.Context, consumer, eventID string, fn func(context.Context) error) error
}

// OutboxHandler forwards outbox entries to every sink of a fanout. With a
// processed store each sink is tracked as its own consumer, so a redelivery
// caused by one failing sink does not repeat the sinks that already succeeded.
type OutboxHandler struct {
	fanout    *Fanout
	processed onceRunner
	consumer  string
	logger    *logging.Logger
}

// NewOutboxHandler creates a handler. processed may be nil.
func NewOutboxHandler(fanout *Fanout, processed *events.ProcessedStore, logger *logging.Logger) *OutboxHandler {
	h := newOutboxHandler(fanout, logger)
	if processed != nil {
		h.processed = processed
	}
	return h
}

func newOutboxHandler(fanout *Fanout, logger *logging.Logger) *OutboxHandler {
	if fanout == nil {
		panic("notify: fanout required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OutboxHandler{fanout: fanout, consumer: "booking_notifications", logger: logger}
}

// consumerFor names the processed-events consumer for one sink.
func (h *OutboxHandler) consumerFor(sink string) string {
	return h.consumer + "/" + sink
}

func (h *OutboxHandler) Handle(ctx context.Context, entry events.OutboxEntry) error {
	var evt events.AppointmentBookedV1
	if entry.Type != evt.EventType() {
		h.logger.Debug("outbox handler: ignoring event", "type", entry.Type, "event_id", entry.ID)
		return nil
	}
	if err := entry.Envelope().Decode(&evt); err != nil {
		return err
	}
	apt, err := appointmentFromEvent(evt)
	if err != nil {
		return err
	}
	if h.processed == nil {
		return h.fanout.Notify(ctx, apt)
	}
	eventID := entry.ID.String()
	return h.fanout.notifyEach(ctx, apt, func(ctx context.Context, name string, call func(context.Context) error) error {
		return h.processed.Once(ctx, h.consumerFor(name), eventID, call)
	})
}

var _ events.DeliveryHandler = (*OutboxHandler)(nil)
