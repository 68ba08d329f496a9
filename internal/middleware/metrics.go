package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/printlab/printlab-api/internal/service"
)

// Metrics records method, route, status and latency for every request. The
// route template is used rather than the raw path so /jobs/:id stays one
// series instead of one per job.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		started := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(started))
	}
}
