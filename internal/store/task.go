package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
)

// TaskCounts aggregates the per-status task counts for one job.
type TaskCounts struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
}

// Terminal returns the number of tasks in a terminal state. This is the
// authoritative value for the job's completed_count.
func (c TaskCounts) Terminal() int {
	return c.Completed + c.Failed
}

// TaskStore defines the interface for durable, race-safe task state
// transitions. All mutating operations are single conditional writes: no
// multi-row transactions span the task and job tables, and two concurrent
// callers racing on the same row resolve to exactly one winner.
type TaskStore interface {
	// CreateBatch saves the full task set for a job. Called once at job
	// creation, typically inside the same transaction as JobStore.Create.
	CreateBatch(ctx context.Context, tasks []*domain.ResearchTask) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ResearchTask, error)

	// ClaimPending atomically selects up to limit pending tasks for the job
	// (oldest first) and transitions exactly those rows to running,
	// stamping started_at and incrementing attempt_count. The transition is
	// conditioned on each row still being pending at commit time, so
	// concurrent claimers partition the pending set rather than
	// double-claiming. Returns the claimed tasks, which may be fewer than
	// limit.
	ClaimPending(ctx context.Context, jobID uuid.UUID, limit int) ([]*domain.ResearchTask, error)

	// Complete stores the final result for a running task and transitions
	// it to completed, stamping completed_at. If the task is no longer
	// running (reclaimed, cancelled, or already terminal) the write is a
	// no-op, not an error: completion is idempotent per subject.
	Complete(ctx context.Context, taskID uuid.UUID, result string) error

	// RetryOrFail records a failed attempt. If the task still has retry
	// budget (attempt_count < domain.MaxTaskAttempts) it returns to pending
	// with started_at cleared; otherwise it transitions to failed with the
	// error stored and completed_at stamped. Returns the resulting status.
	RetryOrFail(ctx context.Context, taskID uuid.UUID, taskErr string) (domain.TaskStatus, error)

	// ReclaimStale returns tasks stuck in running with started_at older
	// than olderThan back to pending without touching attempt_count (the
	// stuck attempt was already counted by the claim that started it).
	// Returns the number of reclaimed tasks.
	ReclaimStale(ctx context.Context, jobID uuid.UUID, olderThan time.Duration) (int, error)

	// CountByStatus recomputes the per-status task counts for the job.
	CountByStatus(ctx context.Context, jobID uuid.UUID) (TaskCounts, error)

	// ListTerminal returns the job's tasks in a terminal state, oldest
	// first, for the outcome snapshot written back to the job record.
	ListTerminal(ctx context.Context, jobID uuid.UUID) ([]*domain.ResearchTask, error)

	// FailNonTerminal transitions all of the job's pending and running
	// tasks to failed with the given reason. Used for out-of-band job
	// cancellation. A dispatch that is mid-stream when this runs resolves
	// on its own and its terminal write becomes a no-op. Returns the number
	// of tasks transitioned.
	FailNonTerminal(ctx context.Context, jobID uuid.UUID, reason string) (int, error)

	// WithTx returns a TaskStore instance that runs its operations within
	// the provided transaction.
	WithTx(tx *sql.Tx) TaskStore
}
