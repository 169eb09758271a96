package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Dependency is a named readiness probe.
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

const readyTimeout = 2 * time.Second

// RegisterHealth registers the liveness and readiness endpoints.
// - GET /health -> always 200 while the process serves requests
// - GET /ready  -> 200 only when every dependency answers its ping
func RegisterHealth(rg gin.IRouter, started time.Time, deps ...Dependency) {
	rg.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	rg.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()

		ready := true
		status := map[string]bool{}
		for _, d := range deps {
			ok := d.Ping(ctx) == nil
			status[d.Name] = ok
			ready = ready && ok
		}
		body := gin.H{"deps": status, "uptime": time.Since(started).Round(time.Second).String()}
		if !ready {
			body["status"] = "not_ready"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["status"] = "ready"
		c.JSON(http.StatusOK, body)
	})
}
