package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
)

// JobStore defines the interface for persisting research jobs.
//
// Job counters are never incremented in place: the orchestrator recomputes
// them from task state after each cycle and writes the result through
// UpdateProgress, which avoids counter drift when a completion write is
// retried or duplicated.
type JobStore interface {
	// Create saves a new research job to the store.
	// Returns ErrInvalidEntity if the job fails validation.
	Create(ctx context.Context, job *domain.ResearchJob) error

	// GetByID retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ResearchJob, error)

	// MarkRunning transitions a pending job to running and stamps
	// started_at. The update is conditioned on the job still being pending,
	// so a concurrent transition to the same state is a benign no-op.
	MarkRunning(ctx context.Context, id uuid.UUID) error

	// UpdateProgress persists the recomputed completed count and the
	// snapshot of terminal task outcomes onto the job record.
	UpdateProgress(ctx context.Context, id uuid.UUID, completedCount int, results []domain.TaskOutcome) error

	// Finalize sets the job to the given terminal status and stamps
	// completed_at. Returns ErrJobNotFound if the job does not exist.
	Finalize(ctx context.Context, id uuid.UUID, status domain.JobStatus) error

	// ListByStatus returns all jobs currently in the given status,
	// oldest first. Used by the stale task reclaimer to sweep running jobs.
	ListByStatus(ctx context.Context, status domain.JobStatus) ([]*domain.ResearchJob, error)

	// WithTx returns a JobStore instance that runs its operations within
	// the provided transaction. The transaction is created and managed by
	// the caller.
	WithTx(tx *sql.Tx) JobStore
}
