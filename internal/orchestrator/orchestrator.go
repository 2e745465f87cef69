package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/events"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/research"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/store"
)

// TickOutcome is the continue-or-finalize decision returned by one tick.
type TickOutcome string

// Possible tick outcomes
const (
	// TickCompleted means the job reached a terminal status during this
	// tick (or had already).
	TickCompleted TickOutcome = "completed"

	// TickContinue means the batch was dispatched and work remains: the
	// caller should schedule another tick.
	TickContinue TickOutcome = "continue"

	// TickWaiting means nothing was claimable but the job is not done:
	// tasks are in flight elsewhere and a later tick will make progress.
	TickWaiting TickOutcome = "waiting"
)

// Concurrency bounds for one tick's dispatch batch.
const (
	// MaxParallel caps concurrent dispatches regardless of the requested
	// concurrency.
	MaxParallel = 3

	// defaultParallelQuick and defaultParallelDeep apply when the caller
	// does not request a concurrency. Deep research makes slower, more
	// expensive calls, so it defaults lower.
	defaultParallelQuick = 3
	defaultParallelDeep  = 2
)

// DefaultReclaimTimeout is how long a task may sit in running before the
// tick's opening sweep presumes its dispatch crashed or hung.
const DefaultReclaimTimeout = 15 * time.Minute

// CancelReason is the error recorded on tasks failed by job cancellation.
const CancelReason = "job cancelled"

// Orchestrator coordinates one research job cycle.
type Orchestrator struct {
	jobs           store.JobStore
	tasks          store.TaskStore
	aggregator     research.Aggregator
	emitter        events.EventEmitter
	reclaimTimeout time.Duration
	logger         *slog.Logger
}

// Config holds the orchestrator settings.
type Config struct {
	// ReclaimTimeout is the stuck-task threshold applied by the tick's
	// opening reclamation sweep. Zero means DefaultReclaimTimeout.
	ReclaimTimeout time.Duration
}

// New creates an Orchestrator.
func New(
	jobs store.JobStore,
	tasks store.TaskStore,
	aggregator research.Aggregator,
	emitter events.EventEmitter,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	timeout := cfg.ReclaimTimeout
	if timeout == 0 {
		timeout = DefaultReclaimTimeout
	}

	return &Orchestrator{
		jobs:           jobs,
		tasks:          tasks,
		aggregator:     aggregator,
		emitter:        emitter,
		reclaimTimeout: timeout,
		logger:         logger.With("component", "orchestrator"),
	}
}

// Tick runs one cycle of job progress. requestedConcurrency is clamped to
// [1, MaxParallel]; zero selects the depth-based default.
//
// Errors returned from Tick are structural: the job does not exist
// (store.ErrJobNotFound) or the generation endpoint is unavailable
// (research.ErrEndpointUnavailable). Per-task failures are recovered
// through the retry budget and never propagate to the caller.
func (o *Orchestrator) Tick(ctx context.Context, jobID uuid.UUID, requestedConcurrency int) (TickOutcome, error) {
	log := o.logger.With("job_id", jobID)

	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("failed to load job: %w", err)
	}

	if job.IsTerminal() {
		log.Debug("tick invoked for terminal job, nothing to do", "status", job.Status)
		return TickCompleted, nil
	}

	// First tick moves the job to running. Benign if raced: the update is
	// conditioned on the job still being pending.
	if job.Status == domain.JobStatusPending {
		if err := o.jobs.MarkRunning(ctx, jobID); err != nil {
			return "", fmt.Errorf("failed to mark job running: %w", err)
		}
	}

	// Recover tasks whose previous dispatch crashed or hung.
	reclaimed, err := o.tasks.ReclaimStale(ctx, jobID, o.reclaimTimeout)
	if err != nil {
		return "", fmt.Errorf("failed to reclaim stale tasks: %w", err)
	}
	if reclaimed > 0 {
		log.Info("reclaimed stale tasks before claiming", "count", reclaimed)
	}

	parallel := parallelism(job.Depth, requestedConcurrency)

	claimed, err := o.tasks.ClaimPending(ctx, jobID, parallel)
	if err != nil {
		return "", fmt.Errorf("failed to claim tasks: %w", err)
	}

	if len(claimed) == 0 {
		counts, err := o.tasks.CountByStatus(ctx, jobID)
		if err != nil {
			return "", fmt.Errorf("failed to count tasks: %w", err)
		}

		if counts.Terminal() >= job.TotalCount {
			// A prior tick may have crashed between its terminal task
			// writes and its progress update, so the job row can lag the
			// task table. Re-persist before finalizing: completed_count
			// must equal the terminal-task count on a completed job.
			outcomes, err := o.terminalOutcomes(ctx, jobID)
			if err != nil {
				return "", err
			}
			if err := o.jobs.UpdateProgress(ctx, jobID, counts.Terminal(), outcomes); err != nil {
				return "", fmt.Errorf("failed to update job progress: %w", err)
			}

			if err := o.finalize(ctx, job, counts); err != nil {
				return "", err
			}
			return TickCompleted, nil
		}

		// Another tick holds the in-flight tasks; a later tick will make
		// progress once they resolve.
		log.Debug("no claimable tasks this tick",
			"running", counts.Running,
			"terminal", counts.Terminal())
		return TickWaiting, nil
	}

	log.Info("dispatching claimed tasks",
		"claimed", len(claimed),
		"parallel", parallel,
		"depth", job.Depth)

	fatalErr := o.dispatchBatch(ctx, job, claimed)

	// Barrier passed: every dispatch in the batch has resolved. Recompute
	// counters from task state rather than incrementing, so duplicated or
	// raced writes cannot drift them.
	counts, err := o.tasks.CountByStatus(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("failed to count tasks: %w", err)
	}

	outcomes, err := o.terminalOutcomes(ctx, jobID)
	if err != nil {
		return "", err
	}

	if err := o.jobs.UpdateProgress(ctx, jobID, counts.Terminal(), outcomes); err != nil {
		return "", fmt.Errorf("failed to update job progress: %w", err)
	}

	if counts.Terminal() >= job.TotalCount {
		if err := o.finalize(ctx, job, counts); err != nil {
			return "", err
		}
		return TickCompleted, nil
	}

	if fatalErr != nil {
		// The endpoint was unreachable: the affected tasks went back to
		// pending, and retrying now would fail the same way. Surface the
		// outage to the trigger instead of spinning.
		return "", fatalErr
	}

	return TickContinue, nil
}

// Cancel fails all of the job's non-terminal tasks and finalizes the job
// as failed. An in-flight dispatch is not forcibly aborted: its terminal
// write later no-ops against the already-failed task row.
func (o *Orchestrator) Cancel(ctx context.Context, jobID uuid.UUID) error {
	log := o.logger.With("job_id", jobID)

	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}

	if job.IsTerminal() {
		return nil
	}

	cancelled, err := o.tasks.FailNonTerminal(ctx, jobID, CancelReason)
	if err != nil {
		return fmt.Errorf("failed to cancel job tasks: %w", err)
	}

	counts, err := o.tasks.CountByStatus(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to count tasks: %w", err)
	}

	outcomes, err := o.terminalOutcomes(ctx, jobID)
	if err != nil {
		return err
	}

	if err := o.jobs.UpdateProgress(ctx, jobID, counts.Terminal(), outcomes); err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}

	if err := o.jobs.Finalize(ctx, jobID, domain.JobStatusFailed); err != nil {
		return fmt.Errorf("failed to finalize cancelled job: %w", err)
	}

	log.Info("job cancelled", "tasks_cancelled", cancelled)
	return nil
}

// dispatchBatch runs the claimed tasks concurrently and waits for all of
// them. Each dispatch is an isolated unit of work: a slow or failing
// subject never blocks or fails its siblings. The returned error is
// non-nil only when the generation endpoint itself was unavailable.
func (o *Orchestrator) dispatchBatch(ctx context.Context, job *domain.ResearchJob, claimed []*domain.ResearchTask) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var fatalErr error

	for _, task := range claimed {
		wg.Add(1)
		go func(task *domain.ResearchTask) {
			defer wg.Done()

			if err := o.dispatch(ctx, job, task); err != nil {
				mu.Lock()
				if fatalErr == nil {
					fatalErr = err
				}
				mu.Unlock()
			}
		}(task)
	}

	wg.Wait()
	return fatalErr
}

// dispatch runs one task against the generation service and records its
// outcome. Per-task failures are absorbed into the task's retry budget;
// only an unavailable endpoint is reported upward.
func (o *Orchestrator) dispatch(ctx context.Context, job *domain.ResearchJob, task *domain.ResearchTask) error {
	log := o.logger.With(
		"job_id", job.ID,
		"task_id", task.ID,
		"subject", task.Subject,
		"attempt", task.AttemptCount,
	)

	result, err := o.aggregator.Research(ctx, research.Request{
		Subject: task.Subject,
		Context: fmt.Sprintf("bulk research for account %s", job.OwnerID),
		Depth:   job.Depth,
	})

	if err == nil {
		if err := o.tasks.Complete(ctx, task.ID, result); err != nil {
			log.Error("failed to record task completion", "error", err)
		} else {
			log.Info("task completed", "result_length", len(result))
		}
		return nil
	}

	log.Warn("task dispatch failed", "error", err)

	status, storeErr := o.tasks.RetryOrFail(ctx, task.ID, err.Error())
	if storeErr != nil {
		log.Error("failed to record task failure", "error", storeErr)
	} else {
		log.Info("task failure recorded", "new_status", status)
	}

	if errors.Is(err, research.ErrEndpointUnavailable) {
		return err
	}
	return nil
}

// finalize moves the job to completed, stamps completed_at, and emits the
// completion event. Notification failures are logged, never propagated:
// the job is done either way.
func (o *Orchestrator) finalize(ctx context.Context, job *domain.ResearchJob, counts store.TaskCounts) error {
	log := o.logger.With("job_id", job.ID)

	if err := o.jobs.Finalize(ctx, job.ID, domain.JobStatusCompleted); err != nil {
		return fmt.Errorf("failed to finalize job: %w", err)
	}

	log.Info("job completed",
		"total", counts.Total,
		"completed", counts.Completed,
		"failed", counts.Failed)

	if o.emitter == nil {
		return nil
	}

	event, err := events.NewJobEvent(events.EventTypeJobCompleted, events.JobCompletedPayload{
		JobID:          job.ID,
		OwnerID:        job.OwnerID,
		Status:         string(domain.JobStatusCompleted),
		TotalCount:     job.TotalCount,
		CompletedCount: counts.Terminal(),
		FailedCount:    counts.Failed,
	})
	if err != nil {
		log.Error("failed to build job completion event", "error", err)
		return nil
	}

	if err := o.emitter.EmitEvent(ctx, event); err != nil {
		log.Warn("job completion notification failed", "error", err)
	}

	return nil
}

// terminalOutcomes builds the outcome snapshot written onto the job record.
func (o *Orchestrator) terminalOutcomes(ctx context.Context, jobID uuid.UUID) ([]domain.TaskOutcome, error) {
	terminal, err := o.tasks.ListTerminal(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list terminal tasks: %w", err)
	}

	outcomes := make([]domain.TaskOutcome, 0, len(terminal))
	for _, task := range terminal {
		outcomes = append(outcomes, task.Outcome())
	}

	return outcomes, nil
}

// parallelism clamps the requested concurrency to [1, MaxParallel],
// falling back to the depth-based default when none was requested.
func parallelism(depth domain.ResearchDepth, requested int) int {
	if requested <= 0 {
		if depth == domain.ResearchDepthDeep {
			return defaultParallelDeep
		}
		return defaultParallelQuick
	}

	if requested > MaxParallel {
		return MaxParallel
	}
	return requested
}
