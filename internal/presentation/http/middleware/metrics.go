package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/metrics"
)

// Observe records request metrics by route template and logs slow requests.
func Observe(collector *metrics.Collector, logger *logging.ChanneledLogger, slow time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		collector.RecordHTTP(c.Request.Method, route, strconv.Itoa(status), duration)
		if slow > 0 && duration > slow && !c.IsWebsocket() {
			logger.WithContext(logging.ChannelPerf, c.Request.Context()).Warn("Slow request", "method", c.Request.Method, "route", route, "status", status, "duration", duration)
		}
	}
}
