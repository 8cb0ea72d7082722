package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"goalwise/internal/auth"
	apperrors "goalwise/internal/errors"
	"goalwise/internal/logger"
	"goalwise/internal/middleware"
	"goalwise/internal/models"
	"goalwise/internal/services"
)

// getCallerID returns the caller attached by the auth middleware.
func getCallerID(c *gin.Context) (auth.CallerID, error) {
	v, exists := c.Get(middleware.CallerIDKey)
	if !exists {
		return "", apperrors.ErrUnauthenticated
	}
	caller, ok := v.(auth.CallerID)
	if !ok || caller == "" {
		return "", apperrors.ErrUnauthenticated
	}
	return caller, nil
}

// requestContext returns the request context carrying the caller and the
// audit metadata for API writes.
func requestContext(c *gin.Context) (context.Context, error) {
	caller, err := getCallerID(c)
	if err != nil {
		return nil, err
	}
	ctx := auth.WithCaller(c.Request.Context(), caller)
	return services.WithAuditSource(ctx, models.AuditSourceAPI, c.ClientIP()), nil
}

// parsePathID validates a UUID path parameter.
func parsePathID(c *gin.Context, param string) (string, error) {
	id := c.Param(param)
	if _, err := uuid.Parse(id); err != nil {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return id, nil
}

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, and message. Otherwise it
// logs the unexpected error and returns a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
				"request_id", middleware.RequestID(c),
			)
		}
		c.JSON(appErr.StatusCode, ErrorResponse{Error: ErrorDetail{Code: appErr.Code, Message: appErr.Message}})
		return
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
		"request_id", middleware.RequestID(c),
	)
	c.JSON(apperrors.ErrInternalServer.StatusCode, ErrorResponse{Error: ErrorDetail{
		Code:    apperrors.ErrInternalServer.Code,
		Message: apperrors.ErrInternalServer.Message,
	}})
}

// bindError converts a binding failure into INVALID_INPUT.
func bindError(err error) error {
	return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
}

// ErrorDetail represents the inner error object in an error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
