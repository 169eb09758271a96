package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "libros", Name: "http_requests_total", Help: "Number of HTTP requests by method, route and status."},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "libros", Name: "http_request_duration_seconds", Help: "HTTP request latency by method and route.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)
	BookOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "libros", Name: "book_operations_total", Help: "Book service operations by outcome."},
		[]string{"operation", "outcome"},
	)
	CoverUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "libros", Name: "cover_uploads_total", Help: "Cover uploads by outcome."},
		[]string{"outcome"},
	)
	CoverCleanupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "libros", Name: "cover_cleanup_failures_total", Help: "Replaced covers that could not be removed."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(HTTPRequests)
	reg.MustRegister(HTTPDuration)
	reg.MustRegister(BookOperations)
	reg.MustRegister(CoverUploads)
	reg.MustRegister(CoverCleanupFailures)
}
