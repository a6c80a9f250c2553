package metrics

import "github.com/prometheus/client_golang/prometheus"

// Booking attempt outcomes.
const (
	OutcomeBooked        = "booked"
	OutcomeAlreadyBooked = "already_booked"
	OutcomeNotFound      = "not_found"
	OutcomeInvalid       = "invalid"
	OutcomeError         = "error"
)

// BookingMetrics exposes counters/histograms for the booking flows.
type BookingMetrics struct {
	attempts       *prometheus.CounterVec
	expired        prometheus.Counter
	released       *prometheus.CounterVec
	slotsGenerated prometheus.Counter
	txLatency      *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "doctor_booking",
			Subsystem: "bookings",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "doctor_booking",
			Subsystem: "bookings",
			Name:      "expired_total",
			Help:      "PENDING bookings moved to FAILED by the expiry sweep",
		}),
		released: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "doctor_booking",
			Subsystem: "slots",
			Name:      "released_total",
			Help:      "Slots returned to the free pool",
		}, []string{"reason"}),
		slotsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "doctor_booking",
			Subsystem: "slots",
			Name:      "generated_total",
			Help:      "Slots created by schedule generation",
		}),
		txLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "doctor_booking",
			Subsystem: "bookings",
			Name:      "tx_seconds",
			Help:      "Duration of booking transactions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.attempts, m.expired, m.released, m.slotsGenerated, m.txLatency)
	return m
}

func (m *BookingMetrics) ObserveAttempt(outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}

func (m *BookingMetrics) ObserveReleased(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.released.WithLabelValues(reason).Add(float64(n))
}

func (m *BookingMetrics) ObserveSlotsGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.slotsGenerated.Add(float64(n))
}

func (m *BookingMetrics) ObserveTx(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.txLatency.WithLabelValues(operation).Observe(seconds)
}
