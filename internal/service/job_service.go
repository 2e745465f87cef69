// Package service provides application-level services for managing
// research jobs and account signals.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/store"
)

// Common service errors - sentinel errors used across service
// implementations. Callers check for these with errors.Is(); the API
// layer maps them to HTTP status codes.
var (
	// ErrJobNotFound indicates the research job does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrJobNotFound = errors.New("research job not found")

	// ErrJobFinished indicates an operation targeted a job that already
	// reached a terminal status. API layer should map this to HTTP 409.
	ErrJobFinished = errors.New("research job already finished")
)

// JobServiceError wraps unexpected errors from the job service with
// context about the failed operation.
type JobServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for JobServiceError.
func (e *JobServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("job service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("job service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *JobServiceError) Unwrap() error {
	return e.Err
}

// newJobServiceError returns known sentinel errors directly and wraps
// everything else.
func newJobServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, store.ErrJobNotFound) {
		return ErrJobNotFound
	}

	return &JobServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// TickTrigger enqueues a job for orchestration. Implemented by the
// orchestrator runner.
type TickTrigger interface {
	Trigger(jobID uuid.UUID, concurrency int) error
}

// JobDetail is a job together with its live task counts.
type JobDetail struct {
	Job    *domain.ResearchJob
	Counts store.TaskCounts
}

// JobCanceller cancels a running job. Implemented by the orchestrator.
type JobCanceller interface {
	Cancel(ctx context.Context, jobID uuid.UUID) error
}

// JobService provides research-job operations
type JobService interface {
	// CreateJob creates a job with one task per subject and enqueues its
	// first tick. requestedConcurrency zero selects the depth default.
	CreateJob(
		ctx context.Context,
		ownerID uuid.UUID,
		subjects []string,
		depth domain.ResearchDepth,
		requestedConcurrency int,
	) (*domain.ResearchJob, error)

	// GetJob retrieves a job and its current task counts.
	GetJob(ctx context.Context, jobID uuid.UUID) (*JobDetail, error)

	// TriggerTick enqueues one orchestration cycle for the job.
	TriggerTick(ctx context.Context, jobID uuid.UUID, requestedConcurrency int) error

	// CancelJob fails the job's remaining tasks and finalizes it.
	CancelJob(ctx context.Context, jobID uuid.UUID) error
}

// jobServiceImpl implements the JobService interface
type jobServiceImpl struct {
	jobs      store.JobStore
	tasks     store.TaskStore
	trigger   TickTrigger
	canceller JobCanceller
	logger    *slog.Logger

	// runTx executes a function inside a database transaction. Held as a
	// field so tests can substitute a transactionless runner.
	runTx func(ctx context.Context, fn store.TxFn) error
}

// NewJobService creates a new JobService.
// It returns an error if any of the required dependencies are nil.
func NewJobService(
	db *sql.DB,
	jobs store.JobStore,
	tasks store.TaskStore,
	trigger TickTrigger,
	canceller JobCanceller,
	logger *slog.Logger,
) (JobService, error) {
	if jobs == nil {
		return nil, &JobServiceError{
			Operation: "create_service",
			Message:   "jobs store cannot be nil",
		}
	}
	if tasks == nil {
		return nil, &JobServiceError{
			Operation: "create_service",
			Message:   "tasks store cannot be nil",
		}
	}
	if trigger == nil {
		return nil, &JobServiceError{
			Operation: "create_service",
			Message:   "tick trigger cannot be nil",
		}
	}
	if canceller == nil {
		return nil, &JobServiceError{
			Operation: "create_service",
			Message:   "job canceller cannot be nil",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &jobServiceImpl{
		jobs:      jobs,
		tasks:     tasks,
		trigger:   trigger,
		canceller: canceller,
		logger:    logger.With("component", "job_service"),
		runTx: func(ctx context.Context, fn store.TxFn) error {
			return store.RunInTransaction(ctx, db, fn)
		},
	}, nil
}

// CreateJob creates the job row and its task rows atomically, then
// enqueues the first tick. A failed enqueue does not undo the creation:
// the job stays pending and is picked up by a later external trigger.
func (s *jobServiceImpl) CreateJob(
	ctx context.Context,
	ownerID uuid.UUID,
	subjects []string,
	depth domain.ResearchDepth,
	requestedConcurrency int,
) (*domain.ResearchJob, error) {
	job, err := domain.NewResearchJob(ownerID, subjects, depth)
	if err != nil {
		return nil, newJobServiceError("create_job", "invalid job parameters", err)
	}

	tasks := make([]*domain.ResearchTask, 0, len(subjects))
	for _, subject := range subjects {
		task, err := domain.NewResearchTask(job.ID, subject)
		if err != nil {
			return nil, newJobServiceError("create_job", "invalid subject", err)
		}
		tasks = append(tasks, task)
	}

	err = s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.jobs.WithTx(tx).Create(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
		if err := s.tasks.WithTx(tx).CreateBatch(ctx, tasks); err != nil {
			return fmt.Errorf("failed to save tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, newJobServiceError("create_job", "failed to persist job", err)
	}

	s.logger.Info("research job created",
		"job_id", job.ID,
		"owner_id", ownerID,
		"subjects", len(subjects),
		"depth", depth)

	if err := s.trigger.Trigger(job.ID, requestedConcurrency); err != nil {
		// The job exists either way; it just needs an external tick.
		s.logger.Warn("failed to enqueue first tick",
			"job_id", job.ID,
			"error", err)
	}

	return job, nil
}

// GetJob retrieves a job and its task counts.
func (s *jobServiceImpl) GetJob(ctx context.Context, jobID uuid.UUID) (*JobDetail, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, newJobServiceError("get_job", "failed to load job", err)
	}

	counts, err := s.tasks.CountByStatus(ctx, jobID)
	if err != nil {
		return nil, newJobServiceError("get_job", "failed to count tasks", err)
	}

	return &JobDetail{Job: job, Counts: counts}, nil
}

// TriggerTick enqueues one orchestration cycle for an existing,
// unfinished job.
func (s *jobServiceImpl) TriggerTick(ctx context.Context, jobID uuid.UUID, requestedConcurrency int) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return newJobServiceError("trigger_tick", "failed to load job", err)
	}

	if job.IsTerminal() {
		return ErrJobFinished
	}

	if err := s.trigger.Trigger(jobID, requestedConcurrency); err != nil {
		return newJobServiceError("trigger_tick", "failed to enqueue tick", err)
	}

	return nil
}

// CancelJob fails the job's remaining tasks and finalizes it as failed.
func (s *jobServiceImpl) CancelJob(ctx context.Context, jobID uuid.UUID) error {
	if err := s.canceller.Cancel(ctx, jobID); err != nil {
		return newJobServiceError("cancel_job", "failed to cancel job", err)
	}
	return nil
}
