package apiutil

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ticsummit/ticsite/pkg/metrics"
)

// MetricsMiddleware records HTTP request counts and durations for Prometheus.
// Unmatched routes are grouped under one label to bound cardinality.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		metrics.HTTPRequestsTotal.WithLabelValues(path, method, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(path, method).Observe(time.Since(start).Seconds())
	}
}
