package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "goalwise/internal/errors"
	"goalwise/internal/logger"
)

const pipelineKeyHeader = "X-API-Key"

// PipelineAuthMiddleware guards the scheduled-job endpoints with a shared
// X-API-Key. With no key configured the endpoints are disabled.
func PipelineAuthMiddleware(apiKey string) gin.HandlerFunc {
	expected := []byte(apiKey)
	log := logger.Named("pipeline")

	return func(c *gin.Context) {
		if len(expected) == 0 {
			log.Warnw("pipeline call while disabled", "path", c.Request.URL.Path)
			writeError(c, apperrors.ErrPipelineNotConfigured)
			return
		}

		presented := c.GetHeader(pipelineKeyHeader)
		if subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
			log.Warnw("rejected pipeline key",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
				"key_present", presented != "",
			)
			writeError(c, apperrors.ErrInvalidAPIKey)
			return
		}
		c.Next()
	}
}
