package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/platform/logger"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/store"
)

// taskColumns is the column list shared by every task SELECT and RETURNING
// clause so scans stay in one place.
const taskColumns = "id, job_id, subject, status, attempt_count, created_at, started_at, completed_at, result, error_message"

// PostgresTaskStore implements the store.TaskStore interface using
// PostgreSQL.
type PostgresTaskStore struct {
	db store.DBTX
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{
		db: db,
	}
}

// WithTx returns a TaskStore that runs within the provided transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db: tx,
	}
}

// CreateBatch saves the full task set for a job.
func (s *PostgresTaskStore) CreateBatch(ctx context.Context, tasks []*domain.ResearchTask) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO research_tasks (id, job_id, subject, status, attempt_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, task := range tasks {
		if err := task.Validate(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}

		_, err := s.db.ExecContext(ctx, query,
			task.ID,
			task.JobID,
			task.Subject,
			task.Status,
			task.AttemptCount,
			task.CreatedAt,
		)
		if err != nil {
			log.Error("failed to save task",
				"task_id", task.ID,
				"job_id", task.JobID,
				"error", err)
			return fmt.Errorf("failed to save task to database: %w", err)
		}
	}

	return nil
}

// GetByID retrieves a task by its unique ID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ResearchTask, error) {
	query := fmt.Sprintf("SELECT %s FROM research_tasks WHERE id = $1", taskColumns)

	row := s.db.QueryRowContext(ctx, query, id)

	task, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// ClaimPending atomically claims up to limit pending tasks for the job,
// oldest first. The inner SELECT locks candidate rows with SKIP LOCKED so
// concurrent claimers never wait on each other, and the outer UPDATE
// re-checks status = 'pending' so exactly one claimer wins each row.
func (s *PostgresTaskStore) ClaimPending(ctx context.Context, jobID uuid.UUID, limit int) ([]*domain.ResearchTask, error) {
	log := logger.FromContext(ctx)

	if limit <= 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		UPDATE research_tasks
		SET status = $1, started_at = $2, attempt_count = attempt_count + 1
		WHERE id IN (
			SELECT id FROM research_tasks
			WHERE job_id = $3 AND status = $4
			ORDER BY created_at ASC
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		) AND status = $4
		RETURNING %s
	`, taskColumns)

	now := time.Now().UTC()

	rows, err := s.db.QueryContext(ctx, query,
		domain.TaskStatusRunning,
		now,
		jobID,
		domain.TaskStatusPending,
		limit,
	)
	if err != nil {
		log.Error("failed to claim pending tasks",
			"job_id", jobID,
			"limit", limit,
			"error", err)
		return nil, fmt.Errorf("failed to claim pending tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var claimed []*domain.ResearchTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claimed task: %w", err)
		}
		claimed = append(claimed, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claimed tasks: %w", err)
	}

	return claimed, nil
}

// Complete stores the final result for a running task. A task that is no
// longer running (reclaimed, cancelled, or already terminal) is left
// untouched: the condition makes the late write a no-op.
func (s *PostgresTaskStore) Complete(ctx context.Context, taskID uuid.UUID, result string) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE research_tasks
		SET status = $1, result = $2, completed_at = $3, error_message = NULL
		WHERE id = $4 AND status = $5
	`

	res, err := s.db.ExecContext(ctx, query,
		domain.TaskStatusCompleted,
		result,
		time.Now().UTC(),
		taskID,
		domain.TaskStatusRunning,
	)
	if err != nil {
		log.Error("failed to complete task",
			"task_id", taskID,
			"error", err)
		return fmt.Errorf("failed to complete task: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		log.Warn("completion arrived for a task no longer running, ignoring",
			"task_id", taskID)
	}

	return nil
}

// RetryOrFail records a failed attempt: back to pending while retry budget
// remains, terminal failed once it is exhausted. Both writes are
// conditioned on the task still being running.
func (s *PostgresTaskStore) RetryOrFail(ctx context.Context, taskID uuid.UUID, taskErr string) (domain.TaskStatus, error) {
	log := logger.FromContext(ctx)

	retryQuery := `
		UPDATE research_tasks
		SET status = $1, started_at = NULL, error_message = $2
		WHERE id = $3 AND status = $4 AND attempt_count < $5
	`

	res, err := s.db.ExecContext(ctx, retryQuery,
		domain.TaskStatusPending,
		taskErr,
		taskID,
		domain.TaskStatusRunning,
		domain.MaxTaskAttempts,
	)
	if err != nil {
		return "", fmt.Errorf("failed to reset task for retry: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		log.Info("task reset to pending for retry",
			"task_id", taskID,
			"error_message", taskErr)
		return domain.TaskStatusPending, nil
	}

	failQuery := `
		UPDATE research_tasks
		SET status = $1, error_message = $2, completed_at = $3
		WHERE id = $4 AND status = $5
	`

	res, err = s.db.ExecContext(ctx, failQuery,
		domain.TaskStatusFailed,
		taskErr,
		time.Now().UTC(),
		taskID,
		domain.TaskStatusRunning,
	)
	if err != nil {
		return "", fmt.Errorf("failed to fail task: %w", err)
	}

	rowsAffected, err = res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		log.Warn("task retry budget exhausted, marked failed",
			"task_id", taskID,
			"error_message", taskErr)
		return domain.TaskStatusFailed, nil
	}

	// The task was not running at all: it was reclaimed or cancelled while
	// this dispatch held a stale claim. Report its current status.
	task, err := s.GetByID(ctx, taskID)
	if err != nil {
		return "", err
	}

	log.Warn("failure arrived for a task no longer running, ignoring",
		"task_id", taskID,
		"current_status", task.Status)
	return task.Status, nil
}

// ReclaimStale returns tasks stuck in running past the timeout to pending.
// attempt_count stays as the claim left it: the lost attempt is already
// counted, reclamation does not charge a second one.
func (s *PostgresTaskStore) ReclaimStale(ctx context.Context, jobID uuid.UUID, olderThan time.Duration) (int, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE research_tasks
		SET status = $1, started_at = NULL
		WHERE job_id = $2 AND status = $3 AND started_at < $4
	`

	cutoff := time.Now().UTC().Add(-olderThan)

	res, err := s.db.ExecContext(ctx, query,
		domain.TaskStatusPending,
		jobID,
		domain.TaskStatusRunning,
		cutoff,
	)
	if err != nil {
		log.Error("failed to reclaim stale tasks",
			"job_id", jobID,
			"error", err)
		return 0, fmt.Errorf("failed to reclaim stale tasks: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		log.Info("reclaimed stale tasks",
			"job_id", jobID,
			"count", rowsAffected,
			"older_than", olderThan)
	}

	return int(rowsAffected), nil
}

// CountByStatus recomputes the per-status task counts for the job.
func (s *PostgresTaskStore) CountByStatus(ctx context.Context, jobID uuid.UUID) (store.TaskCounts, error) {
	query := `
		SELECT status, COUNT(*)
		FROM research_tasks
		WHERE job_id = $1
		GROUP BY status
	`

	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return store.TaskCounts{}, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts store.TaskCounts
	for rows.Next() {
		var status domain.TaskStatus
		var count int

		if err := rows.Scan(&status, &count); err != nil {
			return store.TaskCounts{}, fmt.Errorf("failed to scan task count row: %w", err)
		}

		counts.Total += count
		switch status {
		case domain.TaskStatusPending:
			counts.Pending = count
		case domain.TaskStatusRunning:
			counts.Running = count
		case domain.TaskStatusCompleted:
			counts.Completed = count
		case domain.TaskStatusFailed:
			counts.Failed = count
		}
	}

	if err := rows.Err(); err != nil {
		return store.TaskCounts{}, fmt.Errorf("error iterating task count rows: %w", err)
	}

	return counts, nil
}

// ListTerminal returns the job's completed and failed tasks, oldest first.
func (s *PostgresTaskStore) ListTerminal(ctx context.Context, jobID uuid.UUID) ([]*domain.ResearchTask, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM research_tasks
		WHERE job_id = $1 AND status IN ($2, $3)
		ORDER BY created_at ASC
	`, taskColumns)

	rows, err := s.db.QueryContext(ctx, query, jobID, domain.TaskStatusCompleted, domain.TaskStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to list terminal tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.ResearchTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan terminal task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating terminal tasks: %w", err)
	}

	return tasks, nil
}

// FailNonTerminal fails all of the job's pending and running tasks, used
// for out-of-band cancellation. A late completion from an in-flight
// dispatch then no-ops against the failed row.
func (s *PostgresTaskStore) FailNonTerminal(ctx context.Context, jobID uuid.UUID, reason string) (int, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE research_tasks
		SET status = $1, error_message = $2, completed_at = $3
		WHERE job_id = $4 AND status IN ($5, $6)
	`

	res, err := s.db.ExecContext(ctx, query,
		domain.TaskStatusFailed,
		reason,
		time.Now().UTC(),
		jobID,
		domain.TaskStatusPending,
		domain.TaskStatusRunning,
	)
	if err != nil {
		log.Error("failed to cancel job tasks",
			"job_id", jobID,
			"error", err)
		return 0, fmt.Errorf("failed to cancel job tasks: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTask.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask scans one task row in taskColumns order.
func scanTask(row rowScanner) (*domain.ResearchTask, error) {
	var task domain.ResearchTask
	var startedAt sql.NullTime
	var completedAt sql.NullTime
	var result sql.NullString
	var errorMessage sql.NullString

	err := row.Scan(
		&task.ID,
		&task.JobID,
		&task.Subject,
		&task.Status,
		&task.AttemptCount,
		&task.CreatedAt,
		&startedAt,
		&completedAt,
		&result,
		&errorMessage,
	)
	if err != nil {
		return nil, err
	}

	if startedAt.Valid {
		task.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	if result.Valid {
		task.Result = &result.String
	}
	if errorMessage.Valid {
		task.Error = &errorMessage.String
	}

	return &task, nil
}
