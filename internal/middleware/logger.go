package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggerMiddleware stores a request-scoped logger on the context and logs
// each completed request.
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLogger := logger.With("request_id", RequestIDFromContext(c.Request.Context()))
		c.Set("logger", reqLogger)

		c.Next()

		reqLogger.Debug("request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}

// GetLogger returns the request logger, or slog.Default.
func GetLogger(c *gin.Context) *slog.Logger {
	return loggerFor(c, slog.Default())
}

func loggerFor(c *gin.Context, fallback *slog.Logger) *slog.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return fallback
}
