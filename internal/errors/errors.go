// Package errors provides custom error types for the Goalwise API.
// Service, math and gateway errors all use AppError so that the HTTP layer
// and the tool layer can render a consistent, non-leaking error shape.
package errors

import (
	"errors"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so that
// errors.Is(err, ErrNotFound) matches wrapped copies of a sentinel.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// CodeOf returns the AppError code carried by err, or INTERNAL_ERROR.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternalServer.Code
}

// Authentication errors.
var (
	ErrUnauthenticated = &AppError{Code: "UNAUTHENTICATED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidAPIKey   = &AppError{Code: "INVALID_API_KEY", Message: "Invalid or missing API key", StatusCode: http.StatusUnauthorized}

	ErrPipelineNotConfigured = &AppError{Code: "PIPELINE_NOT_CONFIGURED", Message: "Pipeline endpoints are not configured", StatusCode: http.StatusServiceUnavailable}
)

// General errors.
var (
	ErrInvalidInput     = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrInvalidArguments = &AppError{Code: "INVALID_ARGUMENTS", Message: "Invalid tool arguments", StatusCode: http.StatusBadRequest}
	ErrNotFound         = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrAmbiguousMatch   = &AppError{Code: "AMBIGUOUS_MATCH", Message: "More than one record matches", StatusCode: http.StatusConflict}
	ErrInternalServer   = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Goal and asset errors. Both are returned for records owned by another
// user as well, so callers cannot discover other users' records.
var (
	ErrGoalNotFound  = &AppError{Code: "GOAL_NOT_FOUND", Message: "Goal not found", StatusCode: http.StatusNotFound}
	ErrAssetNotFound = &AppError{Code: "ASSET_NOT_FOUND", Message: "Asset not found", StatusCode: http.StatusNotFound}
)

// Financial calculation errors.
var (
	ErrInvalidDomainInput = &AppError{Code: "INVALID_DOMAIN_INPUT", Message: "Invalid input for calculation", StatusCode: http.StatusUnprocessableEntity}
	ErrDataUnavailable    = &AppError{Code: "DATA_UNAVAILABLE", Message: "Price data unavailable for the requested period", StatusCode: http.StatusNotFound}
	ErrInvalidPrice       = &AppError{Code: "INVALID_PRICE", Message: "Invalid price data", StatusCode: http.StatusUnprocessableEntity}
)

// Market data errors.
var (
	ErrNoData          = &AppError{Code: "NO_DATA", Message: "No data found for symbol", StatusCode: http.StatusNotFound}
	ErrUpstreamTimeout = &AppError{Code: "UPSTREAM_TIMEOUT", Message: "Market data request timed out", StatusCode: http.StatusGatewayTimeout}
	ErrUpstreamFormat  = &AppError{Code: "UPSTREAM_FORMAT", Message: "Invalid response format from market data provider", StatusCode: http.StatusBadGateway}
	ErrUpstreamData    = &AppError{Code: "UPSTREAM_DATA", Message: "Market data provider returned an error", StatusCode: http.StatusBadGateway}
)

// Assistant errors.
var (
	ErrAssistantUnavailable = &AppError{Code: "ASSISTANT_UNAVAILABLE", Message: "The assistant is temporarily unavailable", StatusCode: http.StatusBadGateway}
	ErrAssistantDisabled    = &AppError{Code: "ASSISTANT_DISABLED", Message: "The assistant is not configured", StatusCode: http.StatusServiceUnavailable}
)
