package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bookwise/payments/internal/module/monitoring"
)

// Metrics records request counts and latency into the monitoring sink.
// The route template is used as the path label to keep cardinality bounded.
func Metrics(monitor *monitoring.Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		monitor.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
