package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/platform/logger"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/store"
)

// jobColumns is the column list shared by every job SELECT.
const jobColumns = "id, owner_id, subjects, depth, status, total_count, completed_count, results, created_at, started_at, completed_at"

// PostgresJobStore implements the store.JobStore interface using PostgreSQL.
type PostgresJobStore struct {
	db store.DBTX
}

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(db store.DBTX) *PostgresJobStore {
	return &PostgresJobStore{
		db: db,
	}
}

// WithTx returns a JobStore that runs within the provided transaction.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{
		db: tx,
	}
}

// Create saves a new research job to the database.
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.ResearchJob) error {
	log := logger.FromContext(ctx)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	subjects, err := json.Marshal(job.Subjects)
	if err != nil {
		return fmt.Errorf("failed to marshal job subjects: %w", err)
	}

	results, err := marshalResults(job.Results)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO research_jobs (id, owner_id, subjects, depth, status, total_count, completed_count, results, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = s.db.ExecContext(ctx, query,
		job.ID,
		job.OwnerID,
		subjects,
		job.Depth,
		job.Status,
		job.TotalCount,
		job.CompletedCount,
		results,
		job.CreatedAt,
	)
	if err != nil {
		log.Error("failed to save job",
			"job_id", job.ID,
			"error", err)
		return fmt.Errorf("failed to save job to database: %w", err)
	}

	return nil
}

// GetByID retrieves a job by its unique ID.
func (s *PostgresJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ResearchJob, error) {
	query := fmt.Sprintf("SELECT %s FROM research_jobs WHERE id = $1", jobColumns)

	row := s.db.QueryRowContext(ctx, query, id)

	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// MarkRunning transitions a pending job to running. The condition on the
// current status makes a raced transition a benign no-op.
func (s *PostgresJobStore) MarkRunning(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE research_jobs
		SET status = $1, started_at = $2
		WHERE id = $3 AND status = $4
	`

	_, err := s.db.ExecContext(ctx, query,
		domain.JobStatusRunning,
		time.Now().UTC(),
		id,
		domain.JobStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}

	return nil
}

// UpdateProgress persists the recomputed completed count and the outcome
// snapshot onto the job record.
func (s *PostgresJobStore) UpdateProgress(ctx context.Context, id uuid.UUID, completedCount int, results []domain.TaskOutcome) error {
	log := logger.FromContext(ctx)

	encoded, err := marshalResults(results)
	if err != nil {
		return err
	}

	query := `
		UPDATE research_jobs
		SET completed_count = $1, results = $2
		WHERE id = $3
	`

	res, err := s.db.ExecContext(ctx, query, completedCount, encoded, id)
	if err != nil {
		log.Error("failed to update job progress",
			"job_id", id,
			"error", err)
		return fmt.Errorf("failed to update job progress: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return store.ErrJobNotFound
	}

	return nil
}

// Finalize sets the job to a terminal status and stamps completed_at.
func (s *PostgresJobStore) Finalize(ctx context.Context, id uuid.UUID, status domain.JobStatus) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE research_jobs
		SET status = $1, completed_at = $2
		WHERE id = $3
	`

	res, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to finalize job",
			"job_id", id,
			"status", status,
			"error", err)
		return fmt.Errorf("failed to finalize job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return store.ErrJobNotFound
	}

	return nil
}

// ListByStatus returns all jobs in the given status, oldest first.
func (s *PostgresJobStore) ListByStatus(ctx context.Context, status domain.JobStatus) ([]*domain.ResearchJob, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM research_jobs
		WHERE status = $1
		ORDER BY created_at ASC
	`, jobColumns)

	rows, err := s.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.ResearchJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}

	return jobs, nil
}

// marshalResults encodes the outcome snapshot as JSONB, normalizing nil to
// an empty array so the column is never NULL.
func marshalResults(results []domain.TaskOutcome) ([]byte, error) {
	if results == nil {
		results = []domain.TaskOutcome{}
	}

	encoded, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job results: %w", err)
	}

	return encoded, nil
}

// scanJob scans one job row in jobColumns order.
func scanJob(row rowScanner) (*domain.ResearchJob, error) {
	var job domain.ResearchJob
	var subjects []byte
	var results []byte
	var startedAt sql.NullTime
	var completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&subjects,
		&job.Depth,
		&job.Status,
		&job.TotalCount,
		&job.CompletedCount,
		&results,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(subjects, &job.Subjects); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job subjects: %w", err)
	}

	if len(results) > 0 {
		if err := json.Unmarshal(results, &job.Results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job results: %w", err)
		}
	}

	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	return &job, nil
}
