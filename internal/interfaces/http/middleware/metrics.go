package middleware

import (
	"time"

	"github.com/cas-inventory/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// unmatchedRoute labels requests that hit no registered route
const unmatchedRoute = "unmatched"

// Metrics records request count, latency and in-flight requests.
// Routes are labelled by their pattern so IDs do not blow up cardinality.
func Metrics(m *telemetry.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		done := m.RequestStarted()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		done(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
