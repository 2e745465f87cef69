package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/events"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/mocks"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/research"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedJob creates a job with one task per subject in the mock stores.
func seedJob(t *testing.T, jobs *mocks.MockJobStore, tasks *mocks.MockTaskStore, subjects []string, depth domain.ResearchDepth) *domain.ResearchJob {
	t.Helper()

	job, err := domain.NewResearchJob(uuid.New(), subjects, depth)
	require.NoError(t, err)
	require.NoError(t, jobs.Create(context.Background(), job))

	batch := make([]*domain.ResearchTask, 0, len(subjects))
	for _, subject := range subjects {
		task, err := domain.NewResearchTask(job.ID, subject)
		require.NoError(t, err)
		batch = append(batch, task)
		// Keep creation order deterministic for claim ordering.
		time.Sleep(time.Millisecond)
	}
	require.NoError(t, tasks.CreateBatch(context.Background(), batch))

	return job
}

func newTestOrchestrator(jobs *mocks.MockJobStore, tasks *mocks.MockTaskStore, agg research.Aggregator, emitter events.EventEmitter) *Orchestrator {
	return New(jobs, tasks, agg, emitter, Config{}, testLogger())
}

func TestTickRunsJobToCompletion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	jobs := mocks.NewMockJobStore()
	tasks := mocks.NewMockTaskStore()
	agg := mocks.NewMockAggregator()

	subjects := []string{"acme", "globex", "initech", "umbrella", "hooli"}
	job := seedJob(t, jobs, tasks, subjects, domain.ResearchDepthQuick)

	orch := newTestOrchestrator(jobs, tasks, agg, nil)

	outcomes := make([]TickOutcome, 0)
	for i := 0; i < 10; i++ {
		outcome, err := orch.Tick(ctx, job.ID, 2)
		require.NoError(t, err)
		outcomes = append(outcomes, outcome)
		if outcome == TickCompleted {
			break
		}
	}

	// Five subjects at concurrency two: batches of 2, 2, 1, so the third
	// tick finalizes.
	assert.Equal(t, []TickOutcome{TickContinue, TickContinue, TickCompleted}, outcomes)
	assert.Equal(t, 5, agg.CallCount())

	final := jobs.Job(job.ID)
	require.NotNil(t, final)
	assert.Equal(t, domain.JobStatusCompleted, final.Status)
	assert.Equal(t, 5, final.CompletedCount)
	assert.NotNil(t, final.CompletedAt)
	assert.Len(t, final.Results, 5)

	for _, task := range tasks.Tasks() {
		assert.Equal(t, domain.TaskStatusCompleted, task.Status)
		assert.Equal(t, 1, task.AttemptCount)
		require.NotNil(t, task.Result)
	}
}

func TestTickRespectsConcurrencyBounds(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	cases := []struct {
		name      string
		depth     domain.ResearchDepth
		requested int
		want      int
	}{
		{name: "deep default", depth: domain.ResearchDepthDeep, requested: 0, want: 2},
		{name: "quick default", depth: domain.ResearchDepthQuick, requested: 0, want: 3},
		{name: "explicit within bounds", depth: domain.ResearchDepthQuick, requested: 2, want: 2},
		{name: "clamped above max", depth: domain.ResearchDepthQuick, requested: 10, want: 3},
		{name: "clamped below min", depth: domain.ResearchDepthDeep, requested: -5, want: 2},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			jobs := mocks.NewMockJobStore()
			tasks := mocks.NewMockTaskStore()
			agg := mocks.NewMockAggregator()

			job := seedJob(t, jobs, tasks,
				[]string{"s1", "s2", "s3", "s4", "s5"}, tc.depth)

			orch := newTestOrchestrator(jobs, tasks, agg, nil)

			_, err := orch.Tick(ctx, job.ID, tc.requested)
			require.NoError(t, err)

			assert.Equal(t, tc.want, agg.CallCount())
		})
	}
}

func TestTickReturnsNotFoundForUnknownJob(t *testing.T) {
	t.Parallel()

	orch := newTestOrchestrator(mocks.NewMockJobStore(), mocks.NewMockTaskStore(), mocks.NewMockAggregator(), nil)

	_, err := orch.Tick(context.Background(), uuid.New(), 1)
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestTickOnTerminalJobIsNoOp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	jobs := mocks.NewMockJobStore()
	tasks := mocks.NewMockTaskStore()
	agg := mocks.NewMockAggregator()

	job := seedJob(t, jobs, tasks, []string{"acme"}, domain.ResearchDepthQuick)
	require.NoError(t, jobs.Finalize(ctx, job.ID, domain.JobStatusCompleted))

	orch := newTestOrchestrator(jobs, tasks, agg, nil)

	outcome, err := orch.Tick(ctx, job.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, TickCompleted, outcome)
	assert.Zero(t, agg.CallCount())
}

func TestTickRetriesFailedTaskWithinBudget(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	jobs := mocks.NewMockJobStore()
	tasks := mocks.NewMockTaskStore()

	var mu sync.Mutex
	attempts := 0
	agg := mocks.NewMockAggregator()
	agg.ResearchFn = func(ctx context.Context, req research.Request) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return "", research.ErrGenerationFailed
		}
		return "finally worked", nil
	}

	job := seedJob(t, jobs, tasks, []string{"acme"}, domain.ResearchDepthQuick)
	orch := newTestOrchestrator(jobs, tasks, agg, nil)

	var outcome TickOutcome
	var err error
	for i := 0; i < 5; i++ {
		outcome, err = orch.Tick(ctx, job.ID, 1)
		require.NoError(t, err)
		if outcome == TickCompleted {
			break
		}
	}

	assert.Equal(t, TickCompleted, outcome)
	assert.Equal(t, 3, attempts)

	stored := tasks.Tasks()
	require.Len(t, stored, 1)
	assert.Equal(t, domain.TaskStatusCompleted, stored[0].Status)
	assert.Equal(t, 3, stored[0].AttemptCount)
	require.NotNil(t, stored[0].Result)
	assert.Equal(t, "finally worked", *stored[0].Result)
}

func TestTickFailsTaskAfterExhaustedBudget(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	jobs := mocks.NewMockJobStore()
	tasks := mocks.NewMockTaskStore()

	agg := mocks.NewMockAggregator()
	agg.ResearchFn = func(ctx context.Context, req research.Request) (string, error) {
		return "", research.ErrGenerationFailed
	}

	job := seedJob(t, jobs, tasks, []string{"acme", "globex"}, domain.ResearchDepthQuick)
	orch := newTestOrchestrator(jobs, tasks, agg, nil)

	var outcome TickOutcome
	var err error
	for i := 0; i < 10; i++ {
		outcome, err = orch.Tick(ctx, job.ID, 3)
		require.NoError(t, err)
		if outcome == TickCompleted {
			break
		}
	}

	// The job still completes: failed tasks count toward progress.
	assert.Equal(t, TickCompleted, outcome)

	final := jobs.Job(job.ID)
	require.NotNil(t, final)
	assert.Equal(t, domain.JobStatusCompleted, final.Status)
	assert.Equal(t, 2, final.CompletedCount)

	for _, task := range tasks.Tasks() {
		assert.Equal(t, domain.TaskStatusFailed, task.Status)
		assert.Equal(t, domain.MaxTaskAttempts, task.AttemptCount)
		require.NotNil(t, task.Error)
	}
}

func TestTickIsolatesFailuresWithinBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	jobs := mocks.NewMockJobStore()
	tasks := mocks.NewMockTaskStore()

	agg := mocks.NewMockAggregator()
	agg.ResearchFn = func(ctx context.Context, req research.Request) (string, error) {
		if req.Subject == "globex" {
			return "", research.ErrStreamInterrupted
		}
		return "summary of " + req.Subject, nil
	}

	job := seedJob(t, jobs, tasks, []string{"acme", "globex", "initech"}, domain.ResearchDepthQuick)
	orch := newTestOrchestrator(jobs, tasks, agg, nil)

	outcome, err := orch.Tick(ctx, job.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, TickContinue, outcome)

	completed := 0
	for _, task := range tasks.Tasks() {
		if task.Status == domain.TaskStatusCompleted {
			completed++
		}
	}
	assert.Equal(t, 2, completed, "siblings of a failing task must still complete")
}

func TestTickSurfacesEndpointOutage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	jobs := mocks.NewMockJobStore()
	tasks := mocks.NewMockTaskStore()

	agg := mocks.NewMockAggregator()
	agg.ResearchFn = func(ctx context.Context, req research.Request) (string, error) {
		return "", research.ErrEndpointUnavailable
	}

	job := seedJob(t, jobs, tasks, []string{"acme"}, domain.ResearchDepthQuick)
	orch := newTestOrchestrator(jobs, tasks, agg, nil)

	_, err := orch.Tick(ctx, job.ID, 1)
	assert.ErrorIs(t, err, research.ErrEndpointUnavailable)

	// The task went back to pending, so it is retried once the outage ends.
	stored := tasks.Tasks()
	require.Len(t, stored, 1)
	assert.Equal(t, domain.TaskStatusPending, stored[0].Status)
}

func TestTickWaitsWhenTasksHeldElsewhere(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	jobs := mocks.NewMockJobStore()
	tasks := mocks.NewMockTaskStore()
	agg := mocks.NewMockAggregator()

	job := seedJob(t, jobs, tasks, []string{"acme"}, domain.ResearchDepthQuick)

	// Simulate a concurrent tick holding the only task.
	claimed, err := tasks.ClaimPending(ctx, job.ID, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	orch := newTestOrchestrator(jobs, tasks, agg, nil)

	outcome, err := orch.Tick(ctx, job.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, TickWaiting, outcome)
	assert.Zero(t, agg.CallCount())
}

func TestTickFinalizeRecoversUnrecordedProgress(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	jobs := mocks.NewMockJobStore()
	tasks := mocks.NewMockTaskStore()
	agg := mocks.NewMockAggregator()

	job := seedJob(t, jobs, tasks, []string{"acme", "globex"}, domain.ResearchDepthQuick)

	// Simulate a tick that crashed after its terminal task writes but
	// before updating the job row: both tasks complete, counters untouched.
	claimed, err := tasks.ClaimPending(ctx, job.ID, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	for _, task := range claimed {
		require.NoError(t, tasks.Complete(ctx, task.ID, "summary of "+task.Subject))
	}
	require.Zero(t, jobs.Job(job.ID).CompletedCount)

	orch := newTestOrchestrator(jobs, tasks, agg, nil)

	outcome, err := orch.Tick(ctx, job.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, TickCompleted, outcome)
	assert.Zero(t, agg.CallCount())

	// The recovery tick claims nothing but still owes the job row the
	// recomputed counters and outcome snapshot.
	final := jobs.Job(job.ID)
	require.NotNil(t, final)
	assert.Equal(t, domain.JobStatusCompleted, final.Status)
	assert.Equal(t, 2, final.CompletedCount)
	require.Len(t, final.Results, 2)
	for _, result := range final.Results {
		assert.Equal(t, domain.TaskStatusCompleted, result.Status)
		assert.NotEmpty(t, result.Summary)
	}
}

func TestConcurrentTicksShareTasksExclusively(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	jobs := mocks.NewMockJobStore()
	tasks := mocks.NewMockTaskStore()

	var mu sync.Mutex
	seen := make(map[string]int)
	agg := mocks.NewMockAggregator()
	agg.ResearchFn = func(ctx context.Context, req research.Request) (string, error) {
		mu.Lock()
		seen[req.Subject]++
		mu.Unlock()
		return "summary", nil
	}

	subjects := []string{"s1", "s2", "s3", "s4", "s5", "s6"}
	job := seedJob(t, jobs, tasks, subjects, domain.ResearchDepthQuick)
	orch := newTestOrchestrator(jobs, tasks, agg, nil)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 4; j++ {
				outcome, err := orch.Tick(ctx, job.ID, 2)
				if err != nil || outcome == TickCompleted {
					return
				}
			}
		}()
	}
	wg.Wait()

	// At-least-once overall, exactly-once per claim: no subject is ever
	// dispatched twice because no claim was ever shared.
	for subject, count := range seen {
		assert.Equal(t, 1, count, "subject %s dispatched more than once", subject)
	}
	assert.Len(t, seen, len(subjects))
}

func TestTickEmitsCompletionEvent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	jobs := mocks.NewMockJobStore()
	tasks := mocks.NewMockTaskStore()
	agg := mocks.NewMockAggregator()

	emitter := events.NewInMemoryEventEmitter(testLogger())
	var mu sync.Mutex
	received := make([]*events.JobEvent, 0)
	emitter.RegisterHandler(events.EventHandlerFunc(func(ctx context.Context, event *events.JobEvent) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event)
		return nil
	}))

	job := seedJob(t, jobs, tasks, []string{"acme"}, domain.ResearchDepthQuick)
	orch := newTestOrchestrator(jobs, tasks, agg, emitter)

	outcome, err := orch.Tick(ctx, job.ID, 1)
	require.NoError(t, err)
	require.Equal(t, TickCompleted, outcome)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, events.EventTypeJobCompleted, received[0].Type)

	var payload events.JobCompletedPayload
	require.NoError(t, received[0].UnmarshalPayload(&payload))
	assert.Equal(t, job.ID, payload.JobID)
	assert.Equal(t, 1, payload.CompletedCount)
}

func TestTickCompletesDespiteNotifierFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	jobs := mocks.NewMockJobStore()
	tasks := mocks.NewMockTaskStore()
	agg := mocks.NewMockAggregator()

	emitter := events.NewInMemoryEventEmitter(testLogger())
	emitter.RegisterHandler(events.EventHandlerFunc(func(ctx context.Context, event *events.JobEvent) error {
		return errors.New("webhook endpoint down")
	}))

	job := seedJob(t, jobs, tasks, []string{"acme"}, domain.ResearchDepthQuick)
	orch := newTestOrchestrator(jobs, tasks, agg, emitter)

	outcome, err := orch.Tick(ctx, job.ID, 1)
	require.NoError(t, err, "notification failure must not fail the tick")
	assert.Equal(t, TickCompleted, outcome)

	final := jobs.Job(job.ID)
	require.NotNil(t, final)
	assert.Equal(t, domain.JobStatusCompleted, final.Status)
}

func TestCancelFailsRemainingTasks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	jobs := mocks.NewMockJobStore()
	tasks := mocks.NewMockTaskStore()
	agg := mocks.NewMockAggregator()

	job := seedJob(t, jobs, tasks, []string{"acme", "globex", "initech"}, domain.ResearchDepthQuick)
	orch := newTestOrchestrator(jobs, tasks, agg, nil)

	// Complete one subject first.
	outcome, err := orch.Tick(ctx, job.ID, 1)
	require.NoError(t, err)
	require.Equal(t, TickContinue, outcome)

	require.NoError(t, orch.Cancel(ctx, job.ID))

	final := jobs.Job(job.ID)
	require.NotNil(t, final)
	assert.Equal(t, domain.JobStatusFailed, final.Status)
	assert.Equal(t, 3, final.CompletedCount, "all tasks terminal after cancel")

	failed := 0
	for _, task := range tasks.Tasks() {
		require.True(t, task.IsTerminal())
		if task.Status == domain.TaskStatusFailed {
			failed++
			require.NotNil(t, task.Error)
			assert.Equal(t, CancelReason, *task.Error)
		}
	}
	assert.Equal(t, 2, failed)

	// Cancelling again is a no-op.
	require.NoError(t, orch.Cancel(ctx, job.ID))
}

func TestLateCompletionAfterCancelIsNoOp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	jobs := mocks.NewMockJobStore()
	tasks := mocks.NewMockTaskStore()

	job := seedJob(t, jobs, tasks, []string{"acme"}, domain.ResearchDepthQuick)

	claimed, err := tasks.ClaimPending(ctx, job.ID, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	orch := newTestOrchestrator(jobs, tasks, mocks.NewMockAggregator(), nil)
	require.NoError(t, orch.Cancel(ctx, job.ID))

	// The in-flight dispatch resolves after cancellation.
	require.NoError(t, tasks.Complete(ctx, claimed[0].ID, "too late"))

	stored := tasks.Tasks()
	require.Len(t, stored, 1)
	assert.Equal(t, domain.TaskStatusFailed, stored[0].Status)
	assert.Nil(t, stored[0].Result)
}
