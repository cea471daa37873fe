package middleware

import (
	"time"

	"divan_bot/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestLogger attaches a request scoped logger to the request context and
// logs every request once it completes.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header("X-Request-ID", reqID)

		l := logger.With("request_id", reqID, "method", c.Request.Method, "path", c.FullPath())
		c.Request = c.Request.WithContext(logger.IntoContext(c.Request.Context(), l))

		c.Next()

		args := []any{"status", c.Writer.Status(), "latency", time.Since(start), "ip", c.ClientIP()}
		if id := c.GetInt64(UserIDKey); id != 0 {
			args = append(args, "user_id", id)
		}
		switch {
		case c.Writer.Status() >= 500:
			l.Error("request", args...)
		case c.Writer.Status() >= 400:
			l.Warn("request", args...)
		default:
			l.Debug("request", args...)
		}
	}
}
