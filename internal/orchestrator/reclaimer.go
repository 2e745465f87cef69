package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/store"
)

// DefaultReclaimCheckInterval is how often the background sweep looks for
// stuck tasks when no interval is configured.
const DefaultReclaimCheckInterval = 5 * time.Minute

// ReclaimerConfig holds configuration for the stale-task sweep.
type ReclaimerConfig struct {
	// Timeout is how long a task may sit in running before it is
	// presumed abandoned. Zero means DefaultReclaimTimeout.
	Timeout time.Duration

	// CheckInterval is how often the sweep runs. Zero means
	// DefaultReclaimCheckInterval.
	CheckInterval time.Duration
}

// Reclaimer periodically sweeps running jobs for tasks abandoned by a
// crashed or hung dispatch, resets them to pending, and re-triggers the
// job so the recovered work is picked up without waiting for an external
// tick. It is a safety net behind the sweep each tick already performs:
// it matters for jobs that stopped ticking entirely.
type Reclaimer struct {
	jobs       store.JobStore
	tasks      store.TaskStore
	runner     *Runner
	config     ReclaimerConfig
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// NewReclaimer creates a Reclaimer. runner may be nil, in which case
// reclaimed jobs wait for their next externally triggered tick.
func NewReclaimer(
	jobs store.JobStore,
	tasks store.TaskStore,
	runner *Runner,
	config ReclaimerConfig,
	logger *slog.Logger,
) *Reclaimer {
	if config.Timeout == 0 {
		config.Timeout = DefaultReclaimTimeout
	}
	if config.CheckInterval == 0 {
		config.CheckInterval = DefaultReclaimCheckInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Reclaimer{
		jobs:       jobs,
		tasks:      tasks,
		runner:     runner,
		config:     config,
		ctx:        ctx,
		cancelFunc: cancel,
		logger:     logger.With("component", "stale_task_reclaimer"),
	}
}

// Start launches the background sweep loop.
func (r *Reclaimer) Start() {
	r.wg.Add(1)
	go r.loop()
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (r *Reclaimer) Stop() {
	r.cancelFunc()
	r.wg.Wait()
}

func (r *Reclaimer) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.CheckInterval)
	defer ticker.Stop()

	r.logger.Debug("starting stale task sweep",
		"check_interval", r.config.CheckInterval,
		"timeout", r.config.Timeout)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping stale task sweep")
			return

		case <-ticker.C:
			r.Sweep(r.ctx)
		}
	}
}

// Sweep runs one pass over all running jobs. It is exported so operators
// can force a sweep without waiting for the interval.
func (r *Reclaimer) Sweep(ctx context.Context) {
	jobs, err := r.jobs.ListByStatus(ctx, domain.JobStatusRunning)
	if err != nil {
		r.logger.Error("failed to list running jobs for sweep", "error", err)
		return
	}

	for _, job := range jobs {
		reclaimed, err := r.tasks.ReclaimStale(ctx, job.ID, r.config.Timeout)
		if err != nil {
			r.logger.Error("failed to reclaim stale tasks",
				"job_id", job.ID,
				"error", err)
			continue
		}
		if reclaimed == 0 {
			continue
		}

		r.logger.Info("reclaimed stale tasks",
			"job_id", job.ID,
			"count", reclaimed)

		if r.runner == nil {
			continue
		}

		if err := r.runner.Trigger(job.ID, 0); err != nil {
			r.logger.Error("failed to re-trigger reclaimed job",
				"job_id", job.ID,
				"error", err)
		}
	}
}
