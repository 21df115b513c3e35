package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/robofleet/change-request-bot/internal/service"
)

// Metrics returns middleware that captures request metrics using the
// provided service. A nil service passes traffic through untouched.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
