package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"goalwise/internal/logger"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
)

// RequestLogging tags each request with an id and logs it when it
// completes. A well-formed X-Request-ID from the client is reused so that
// traces can be joined across services. Health checks are logged at debug.
func RequestLogging() gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.Must(uuid.NewV7()).String()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)

		c.Next()

		fields := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if caller, ok := c.Get(CallerIDKey); ok {
			fields = append(fields, "caller", caller)
		}

		switch {
		case c.FullPath() == "/api/health":
			log.Debugw("request", fields...)
		case c.Writer.Status() >= 500:
			log.Errorw("request", fields...)
		default:
			log.Infow("request", fields...)
		}
	}
}

// RequestID returns the id assigned by RequestLogging, or "".
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
