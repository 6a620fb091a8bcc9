package metrics

import "github.com/prometheus/client_golang/prometheus"

// Booking outcomes used as the "outcome" label.
const (
	OutcomeBooked         = "booked"
	OutcomeConflict       = "conflict"
	OutcomeOutOfHours     = "out_of_hours"
	OutcomeInvalid        = "invalid"
	OutcomeBusy           = "busy"
	OutcomeError          = "error"
	NotificationDelivered = "delivered"
	NotificationFailed    = "failed"
)

// SchedulingMetrics exposes counters/histograms for availability and booking flows.
type SchedulingMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	cancellationsTotal prometheus.Counter
	availabilityTotal  *prometheus.CounterVec
	lockWait           prometheus.Histogram
	notificationsTotal *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		cancellationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "scheduling",
			Name:      "cancellations_total",
			Help:      "Appointments cancelled",
		}),
		availabilityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "scheduling",
			Name:      "availability_queries_total",
			Help:      "Availability lookups by status",
		}, []string{"status"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "scheduling",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for the doctor/date booking lock",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "scheduling",
			Name:      "notifications_total",
			Help:      "Post-booking notifications by sink and status",
		}, []string{"sink", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.cancellationsTotal, m.availabilityTotal, m.lockWait, m.notificationsTotal)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveCancellation() {
	if m == nil {
		return
	}
	m.cancellationsTotal.Inc()
}

func (m *SchedulingMetrics) ObserveAvailability(status string) {
	if m == nil {
		return
	}
	m.availabilityTotal.WithLabelValues(status).Inc()
}

func (m *SchedulingMetrics) ObserveLockWait(seconds float64) {
	if m == nil {
		return
	}
	m.lockWait.Observe(seconds)
}

func (m *SchedulingMetrics) ObserveNotification(sink string, delivered bool) {
	if m == nil {
		return
	}
	status := NotificationFailed
	if delivered {
		status = NotificationDelivered
	}
	m.notificationsTotal.WithLabelValues(sink, status).Inc()
}
