package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/librosapp/libros/backend/go-services/pkg/metrics"
)

// Metrics records request counts and latencies per matched route. Requests
// that match no route share the "unmatched" label.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		metrics.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
