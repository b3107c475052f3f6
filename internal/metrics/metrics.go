package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agendo",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agendo",
			Name:      "reservations_total",
			Help:      "Reservation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	finalizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agendo",
			Name:      "finalize_total",
			Help:      "Reservation finalizations by outcome.",
		},
		[]string{"outcome"},
	)

	webhooks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agendo",
			Name:      "webhook_total",
			Help:      "Payment gateway notifications by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, reservations, finalizations, webhooks)
	})
}

// IncHTTP increments the request counter for an endpoint/status pair.
func IncHTTP(endpoint, code string) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
}

// IncReservation records a reservation attempt outcome
// (created, conflict, day_full, error).
func IncReservation(outcome string) {
	reservations.WithLabelValues(outcome).Inc()
}

// IncFinalize records a finalization outcome
// (finalized, idempotent, expired, conflict, error).
func IncFinalize(outcome string) {
	finalizations.WithLabelValues(outcome).Inc()
}

// IncWebhook records a gateway notification outcome
// (processed, duplicate, ignored, error).
func IncWebhook(outcome string) {
	webhooks.WithLabelValues(outcome).Inc()
}
