package apperror

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation failed")
	ErrInternal          = errors.New("internal server error")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrDelivery          = errors.New("delivery failed")
	ErrCacheRefresh      = errors.New("cache refresh failed")
)

// Machine-readable kinds returned to API clients.
const (
	KindValidation   = "validation_error"
	KindNotFound     = "not_found"
	KindForbidden    = "forbidden"
	KindUnauthorized = "unauthorized"
	KindRateLimited  = "rate_limited"
	KindDelivery     = "delivery_error"
	KindCacheRefresh = "cache_refresh_error"
	KindInternal     = "internal_error"
)

// AppError is a custom error type that can hold an HTTP status code
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Code)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation wraps a user-correctable input problem.
func Validation(message string) *AppError {
	return New(http.StatusBadRequest, message, ErrValidation)
}

// MapErrorToStatus maps common errors to HTTP status codes
func MapErrorToStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != 0 {
		return appErr.Code
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrValidation) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrRateLimitExceeded) {
		return http.StatusTooManyRequests
	}
	if errors.Is(err, ErrDelivery) {
		return http.StatusBadGateway
	}
	if errors.Is(err, ErrCacheRefresh) {
		return http.StatusServiceUnavailable
	}
	// Default to internal server error
	return http.StatusInternalServerError
}

// Kind returns the machine-readable kind for err.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrRateLimitExceeded):
		return KindRateLimited
	case errors.Is(err, ErrDelivery):
		return KindDelivery
	case errors.Is(err, ErrCacheRefresh):
		return KindCacheRefresh
	default:
		return KindInternal
	}
}

// PublicMessage is the message safe to show a client. Errors without a
// known kind collapse to a generic text so internals do not leak.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	switch Kind(err) {
	case KindInternal:
		return ErrInternal.Error()
	case KindCacheRefresh:
		return "dashboard counts are temporarily unavailable"
	case KindDelivery:
		return "notification saved but the email could not be sent"
	default:
		return err.Error()
	}
}
