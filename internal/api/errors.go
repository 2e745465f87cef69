package api

import (
	"errors"
	"net/http"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/orchestrator"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/service"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status
// codes based on the error type. This prevents leaking internal error
// types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, store.ErrJobNotFound),
		errors.Is(err, store.ErrTaskNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrJobFinished),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Unprocessable: the request is well-formed but cannot be acted on
	case errors.Is(err, service.ErrNoPreferences):
		return http.StatusUnprocessableEntity

	// Back-pressure from the tick queue
	case errors.Is(err, orchestrator.ErrQueueFull):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, store.ErrJobNotFound):
		return "Research job not found"

	case errors.Is(err, store.ErrTaskNotFound):
		return "Research task not found"

	case errors.Is(err, service.ErrJobFinished):
		return "Research job already finished"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	case errors.Is(err, service.ErrNoPreferences):
		return "Account has no signal preferences configured"

	case errors.Is(err, orchestrator.ErrQueueFull):
		return "Service is busy, try again later"

	default:
		return "An unexpected error occurred"
	}
}
