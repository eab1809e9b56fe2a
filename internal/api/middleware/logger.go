package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger emits one structured line per request. tenant_id is populated once
// the tenant middleware has resolved the caller; unauthenticated routes log
// it empty. Server errors log at warn so failing query paths stand out.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.Int("response_bytes", c.Writer.Size()),
			zap.String("client_ip", c.ClientIP()),
			zap.String("tenant_id", c.GetString("tenant_id")),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if status >= 500 {
			logger.Warn("Request failed", fields...)
			return
		}
		logger.Info("Request served", fields...)
	}
}
