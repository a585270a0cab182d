package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/church-class-api/internal/service"
)

const (
	metricsPath    = "/metrics"
	unmatchedRoute = "unmatched"
)

// Metrics returns middleware that captures request metrics using the provided service.
// Unmatched routes share one label so arbitrary paths cannot grow the series count.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || c.Request.URL.Path == metricsPath {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
