package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
)

// RequestLogger logs one structured line per request: method, path, status,
// latency and client IP.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		logger.Infow("http request", fields...)
	}
}
