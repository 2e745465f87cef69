package api_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/api"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/orchestrator"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/service"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/store"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err      error
		expected int
	}{
		{service.ErrJobNotFound, http.StatusNotFound},
		{store.ErrJobNotFound, http.StatusNotFound},
		{store.ErrTaskNotFound, http.StatusNotFound},
		{service.ErrJobFinished, http.StatusConflict},
		{store.ErrDuplicate, http.StatusConflict},
		{store.ErrInvalidEntity, http.StatusBadRequest},
		{service.ErrNoPreferences, http.StatusUnprocessableEntity},
		{orchestrator.ErrQueueFull, http.StatusServiceUnavailable},
		{errors.New("something else"), http.StatusInternalServerError},
		// Wrapped errors should still map through errors.Is.
		{fmt.Errorf("get job: %w", service.ErrJobNotFound), http.StatusNotFound},
		{fmt.Errorf("trigger: %w", orchestrator.ErrQueueFull), http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expected, api.MapErrorToStatusCode(tc.err), "error: %v", tc.err)
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Research job not found", api.GetSafeErrorMessage(service.ErrJobNotFound))
	assert.Equal(t, "Research job already finished", api.GetSafeErrorMessage(service.ErrJobFinished))
	assert.Equal(t, "Service is busy, try again later", api.GetSafeErrorMessage(orchestrator.ErrQueueFull))
	assert.Equal(t, "An unexpected error occurred", api.GetSafeErrorMessage(nil))

	// Internal detail must not leak through the default branch.
	leaky := errors.New("pq: connection refused host=10.0.0.5")
	assert.Equal(t, "An unexpected error occurred", api.GetSafeErrorMessage(leaky))
}
