package middleware

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	apperrors "goalwise/internal/errors"
	"goalwise/internal/logger"
)

// ErrorHandler converts errors attached with c.Error into the JSON error
// envelope. Bind errors become INVALID_INPUT with the binding message.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		last := c.Errors.Last()
		err := last.Err
		if last.IsType(gin.ErrorTypeBind) {
			err = apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
		}
		writeError(c, err)
	}
}

// Recovery turns a panicking handler into an INTERNAL_ERROR response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if p := recover(); p != nil {
				logger.Named("http").Errorw("handler panicked",
					"panic", fmt.Sprint(p),
					"path", c.Request.URL.Path,
					"request_id", RequestID(c),
				)
				if !c.Writer.Written() {
					writeError(c, apperrors.ErrInternalServer)
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

// writeError writes the {"error":{"code","message"}} envelope and aborts the
// chain. Errors that are not AppErrors are logged and hidden behind
// INTERNAL_ERROR.
func writeError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		logger.Get().Errorw("unexpected error",
			"error", err.Error(),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"request_id", RequestID(c),
		)
		appErr = apperrors.ErrInternalServer
	} else if appErr.Internal != nil {
		logger.Get().Errorw("app error",
			"code", appErr.Code,
			"message", appErr.Message,
			"internal", appErr.Internal.Error(),
			"path", c.Request.URL.Path,
			"request_id", RequestID(c),
		)
	}
	c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}
