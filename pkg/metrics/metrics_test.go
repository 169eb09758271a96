package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterCollectors(reg)

	BookOperations.WithLabelValues("create", "ok").Inc()
	CoverUploads.WithLabelValues("stored").Inc()
	HTTPRequests.WithLabelValues("GET", "/api/libros", "200").Inc()
	HTTPDuration.WithLabelValues("GET", "/api/libros").Observe(0.01)

	n, err := testutil.GatherAndCount(reg, "libros_book_operations_total", "libros_cover_uploads_total", "libros_http_requests_total", "libros_http_request_duration_seconds")
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 4)

	require.Panics(t, func() { RegisterCollectors(reg) })
}
