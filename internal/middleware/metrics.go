package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestMetrics is the slice of the service metrics the HTTP layer records.
type RequestMetrics interface {
	IncRequestsTotal(method, route string, status int)
	ObserveRequestDuration(method, route string, duration time.Duration)
}

// Metrics records request count and latency per route template. Unmatched
// paths share one label so scanners cannot blow up cardinality.
func Metrics(m RequestMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.IncRequestsTotal(c.Request.Method, route, c.Writer.Status())
		m.ObserveRequestDuration(c.Request.Method, route, time.Since(start))
	}
}
