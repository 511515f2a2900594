package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// CustomLoggerMiddleware logs each request through the injected slog logger
// instead of gin's default writer, so request logs share the application's
// structured format.
func CustomLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote_addr", c.ClientIP()),
		)
	}
}
