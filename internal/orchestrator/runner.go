package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/store"
)

// Runner errors
var (
	// ErrQueueFull is returned by Trigger when the tick queue has no room.
	ErrQueueFull = errors.New("tick queue is full")

	// ErrRunnerStopped is returned by Trigger after Stop.
	ErrRunnerStopped = errors.New("runner is stopped")
)

// RunnerConfig holds configuration for the tick runner
type RunnerConfig struct {
	// WorkerCount determines how many jobs can be ticked concurrently
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory tick queue
	QueueSize int

	// RetickDelay is the pause before re-enqueueing a job whose tick
	// returned TickContinue. If zero, the re-enqueue is immediate.
	RetickDelay time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount: 2,
		QueueSize:   100,
	}
}

// tickRequest is one queued tick of one job.
type tickRequest struct {
	jobID       uuid.UUID
	concurrency int
}

// Runner consumes tick requests from an in-memory queue and drives each
// job's tick loop: a tick that reports TickContinue re-enqueues the job
// until it completes. This keeps continuation an in-process decision
// rather than an HTTP self-call, so a job cannot silently stop making
// progress because a continuation request was lost.
type Runner struct {
	orch       *Orchestrator
	tickChan   chan tickRequest
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     RunnerConfig
	logger     *slog.Logger

	mu      sync.Mutex
	stopped bool
}

// NewRunner creates a Runner. Call Start to begin processing.
func NewRunner(orch *Orchestrator, config RunnerConfig, logger *slog.Logger) *Runner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultRunnerConfig().WorkerCount
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultRunnerConfig().QueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		orch:       orch,
		tickChan:   make(chan tickRequest, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger.With("component", "tick_runner"),
	}
}

// Start launches the worker pool.
func (r *Runner) Start() {
	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
}

// Stop shuts the runner down and waits for in-flight ticks to finish.
// Jobs mid-flight are left in a consistent state: their running tasks are
// recovered by the reclamation sweep on a later tick.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancelFunc()
	r.wg.Wait()
	close(r.tickChan)
}

// Trigger enqueues a tick for the given job. concurrency zero selects the
// job's depth-based default at tick time.
func (r *Runner) Trigger(jobID uuid.UUID, concurrency int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrRunnerStopped
	}

	select {
	case r.tickChan <- tickRequest{jobID: jobID, concurrency: concurrency}:
		return nil
	default:
		return ErrQueueFull
	}
}

// worker processes tick requests from the queue
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case req, ok := <-r.tickChan:
			if !ok {
				r.logger.Debug("tick channel closed, stopping worker", "worker_id", id)
				return
			}

			r.processTick(req, id)
		}
	}
}

// processTick runs one tick and decides whether to re-enqueue the job.
func (r *Runner) processTick(req tickRequest, workerID int) {
	logger := r.logger.With(
		"job_id", req.jobID,
		"worker_id", workerID,
	)

	outcome, err := r.orch.Tick(r.ctx, req.jobID, req.concurrency)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			logger.Warn("tick requested for unknown job")
			return
		}
		// Structural failure: drop the continuation and let the periodic
		// reclamation sweep re-trigger the job once conditions recover.
		logger.Error("tick failed", "error", err)
		return
	}

	switch outcome {
	case TickContinue:
		if r.config.RetickDelay > 0 {
			select {
			case <-r.ctx.Done():
				return
			case <-time.After(r.config.RetickDelay):
			}
		}

		if err := r.Trigger(req.jobID, req.concurrency); err != nil {
			logger.Error("failed to re-enqueue continuing job", "error", err)
		}

	case TickWaiting:
		// Another tick holds the in-flight tasks; it will carry the
		// continuation itself.
		logger.Debug("tick found no claimable tasks, yielding")

	case TickCompleted:
		logger.Info("job finished ticking")
	}
}
