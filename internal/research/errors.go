package research

import "errors"

// Common errors returned by the research client
var (
	// ErrEndpointUnavailable is returned when the generation service cannot
	// be reached or rejects the request outright (misconfiguration, bad
	// credentials). This is fatal at the orchestrator level: no retry
	// budget is spent on it.
	ErrEndpointUnavailable = errors.New("generation endpoint unavailable")

	// ErrGenerationFailed is returned when the service reports an error
	// event mid-stream. Recovered per task via the retry budget.
	ErrGenerationFailed = errors.New("generation service reported an error")

	// ErrStreamInterrupted is returned when the stream closes before the
	// terminal marker arrives. Recovered per task via the retry budget.
	ErrStreamInterrupted = errors.New("generation stream interrupted before completion")

	// ErrMalformedFrame is returned when a complete frame cannot be parsed.
	ErrMalformedFrame = errors.New("malformed stream frame")
)
