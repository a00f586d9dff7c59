package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "guckelsberg"

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Count of bookings created by resource.",
		},
		[]string{"resource"},
	)

	bookingRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_rejected_total",
			Help:      "Count of refused booking attempts by resource and reason.",
		},
		[]string{"resource", "reason"},
	)

	bookingDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_deleted_total",
			Help:      "Count of bookings deleted by resource.",
		},
		[]string{"resource"},
	)

	requestDecision = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_decisions_total",
			Help:      "Count of rooftop request transitions by decision.",
		},
		[]string{"decision"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by handler and status code.",
		},
		[]string{"handler", "code"},
	)
)

// Resource labels.
const (
	Laundry = "laundry"
	Rooftop = "rooftop"
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingRejected, bookingDeleted, requestDecision, httpRequests)
	})
}

func IncBookingCreated(resource string) {
	bookingCreated.WithLabelValues(resource).Inc()
}

func AddBookingsCreated(resource string, n int) {
	bookingCreated.WithLabelValues(resource).Add(float64(n))
}

func IncBookingRejected(resource, reason string) {
	bookingRejected.WithLabelValues(resource, reason).Inc()
}

func IncBookingDeleted(resource string) {
	bookingDeleted.WithLabelValues(resource).Inc()
}

func IncRequestDecision(decision string) {
	requestDecision.WithLabelValues(decision).Inc()
}

func IncHTTP(handler, code string) {
	httpRequests.WithLabelValues(handler, code).Inc()
}
