package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glowbook",
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	appointmentCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glowbook",
			Name:      "appointment_created_total",
			Help:      "Count of appointments created by status.",
		},
		[]string{"status"},
	)

	paymentTransition = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glowbook",
			Name:      "payment_transition_total",
			Help:      "Count of payment-driven status transitions by outcome.",
		},
		[]string{"outcome"},
	)

	availabilityDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "glowbook",
			Name:      "availability_compute_seconds",
			Help:      "Time to fetch inputs and evaluate a day's slots.",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 2},
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, appointmentCreated, paymentTransition, availabilityDuration)
	})
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncAppointmentCreated(status string) {
	appointmentCreated.WithLabelValues(status).Inc()
}

func IncPaymentTransition(outcome string) {
	paymentTransition.WithLabelValues(outcome).Inc()
}

func ObserveAvailability(seconds float64) {
	availabilityDuration.Observe(seconds)
}
