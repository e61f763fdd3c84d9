// README: Prometheus collectors for HTTP traffic, bookings and ride transitions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridebook_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ridebook_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Bookings counts booking attempts by outcome:
	// success, driver_unavailable, failed, rejected.
	Bookings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridebook_bookings_total",
			Help: "Booking attempts by outcome.",
		},
		[]string{"result"},
	)

	// Compensations counts rollbacks of a created ride. result="failed" means
	// an orphaned pending ride needs out-of-band reconciliation; alert on it.
	Compensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridebook_booking_compensations_total",
			Help: "Compensating ride deletions by outcome.",
		},
		[]string{"result"},
	)

	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridebook_ride_transitions_total",
			Help: "Successful ride status transitions by target status.",
		},
		[]string{"to"},
	)

	// ReleaseFailures counts terminal transitions whose availability release failed.
	ReleaseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ridebook_availability_release_failures_total",
			Help: "Terminal ride transitions that could not release the driver.",
		},
	)
)
