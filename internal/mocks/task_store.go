package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/store"
)

// MockTaskStore implements store.TaskStore for testing. Its default
// implementation is an in-memory table guarded by a mutex, so claim
// exclusivity holds even under concurrent callers.
type MockTaskStore struct {
	// Function fields for customizable behavior
	CreateBatchFn     func(ctx context.Context, tasks []*domain.ResearchTask) error
	GetByIDFn         func(ctx context.Context, id uuid.UUID) (*domain.ResearchTask, error)
	ClaimPendingFn    func(ctx context.Context, jobID uuid.UUID, limit int) ([]*domain.ResearchTask, error)
	CompleteFn        func(ctx context.Context, taskID uuid.UUID, result string) error
	RetryOrFailFn     func(ctx context.Context, taskID uuid.UUID, errMsg string) (domain.TaskStatus, error)
	ReclaimStaleFn    func(ctx context.Context, jobID uuid.UUID, olderThan time.Duration) (int, error)
	CountByStatusFn   func(ctx context.Context, jobID uuid.UUID) (store.TaskCounts, error)
	ListTerminalFn    func(ctx context.Context, jobID uuid.UUID) ([]*domain.ResearchTask, error)
	FailNonTerminalFn func(ctx context.Context, jobID uuid.UUID, reason string) (int, error)

	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.ResearchTask
}

// NewMockTaskStore creates a mock task store with an empty in-memory table.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{
		tasks: make(map[uuid.UUID]*domain.ResearchTask),
	}
}

// Tasks returns a snapshot of all stored tasks, ordered by creation time.
func (m *MockTaskStore) Tasks() []*domain.ResearchTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*domain.ResearchTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		copied := *t
		out = append(out, &copied)
	}
	sortTasks(out)
	return out
}

// CreateBatch implements the TaskStore interface
func (m *MockTaskStore) CreateBatch(ctx context.Context, tasks []*domain.ResearchTask) error {
	if m.CreateBatchFn != nil {
		return m.CreateBatchFn(ctx, tasks)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range tasks {
		copied := *t
		m.tasks[t.ID] = &copied
	}
	return nil
}

// GetByID implements the TaskStore interface
func (m *MockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ResearchTask, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	copied := *t
	return &copied, nil
}

// ClaimPending implements the TaskStore interface. The claim is atomic
// with respect to other callers: each pending task is handed to exactly
// one claimant.
func (m *MockTaskStore) ClaimPending(ctx context.Context, jobID uuid.UUID, limit int) ([]*domain.ResearchTask, error) {
	if m.ClaimPendingFn != nil {
		return m.ClaimPendingFn(ctx, jobID, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pending := make([]*domain.ResearchTask, 0)
	for _, t := range m.tasks {
		if t.JobID == jobID && t.Status == domain.TaskStatusPending {
			pending = append(pending, t)
		}
	}
	sortTasks(pending)

	if len(pending) > limit {
		pending = pending[:limit]
	}

	now := time.Now().UTC()
	claimed := make([]*domain.ResearchTask, 0, len(pending))
	for _, t := range pending {
		t.Status = domain.TaskStatusRunning
		t.AttemptCount++
		t.StartedAt = &now
		copied := *t
		claimed = append(claimed, &copied)
	}
	return claimed, nil
}

// Complete implements the TaskStore interface
func (m *MockTaskStore) Complete(ctx context.Context, taskID uuid.UUID, result string) error {
	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, taskID, result)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok || t.Status != domain.TaskStatusRunning {
		// Matches the store semantics: a late completion is a no-op.
		return nil
	}

	now := time.Now().UTC()
	t.Status = domain.TaskStatusCompleted
	t.Result = &result
	t.CompletedAt = &now
	return nil
}

// RetryOrFail implements the TaskStore interface
func (m *MockTaskStore) RetryOrFail(ctx context.Context, taskID uuid.UUID, errMsg string) (domain.TaskStatus, error) {
	if m.RetryOrFailFn != nil {
		return m.RetryOrFailFn(ctx, taskID, errMsg)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return "", store.ErrTaskNotFound
	}
	if t.Status != domain.TaskStatusRunning {
		return t.Status, nil
	}

	if t.AttemptCount < domain.MaxTaskAttempts {
		t.Status = domain.TaskStatusPending
		t.Error = &errMsg
		t.StartedAt = nil
		return domain.TaskStatusPending, nil
	}

	now := time.Now().UTC()
	t.Status = domain.TaskStatusFailed
	t.Error = &errMsg
	t.CompletedAt = &now
	return domain.TaskStatusFailed, nil
}

// ReclaimStale implements the TaskStore interface
func (m *MockTaskStore) ReclaimStale(ctx context.Context, jobID uuid.UUID, olderThan time.Duration) (int, error) {
	if m.ReclaimStaleFn != nil {
		return m.ReclaimStaleFn(ctx, jobID, olderThan)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	count := 0
	for _, t := range m.tasks {
		if t.JobID != jobID || t.Status != domain.TaskStatusRunning {
			continue
		}
		if t.StartedAt == nil || t.StartedAt.After(cutoff) {
			continue
		}
		t.Status = domain.TaskStatusPending
		t.StartedAt = nil
		count++
	}
	return count, nil
}

// CountByStatus implements the TaskStore interface
func (m *MockTaskStore) CountByStatus(ctx context.Context, jobID uuid.UUID) (store.TaskCounts, error) {
	if m.CountByStatusFn != nil {
		return m.CountByStatusFn(ctx, jobID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var counts store.TaskCounts
	for _, t := range m.tasks {
		if t.JobID != jobID {
			continue
		}
		counts.Total++
		switch t.Status {
		case domain.TaskStatusPending:
			counts.Pending++
		case domain.TaskStatusRunning:
			counts.Running++
		case domain.TaskStatusCompleted:
			counts.Completed++
		case domain.TaskStatusFailed:
			counts.Failed++
		}
	}
	return counts, nil
}

// ListTerminal implements the TaskStore interface
func (m *MockTaskStore) ListTerminal(ctx context.Context, jobID uuid.UUID) ([]*domain.ResearchTask, error) {
	if m.ListTerminalFn != nil {
		return m.ListTerminalFn(ctx, jobID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*domain.ResearchTask, 0)
	for _, t := range m.tasks {
		if t.JobID != jobID {
			continue
		}
		if t.Status == domain.TaskStatusCompleted || t.Status == domain.TaskStatusFailed {
			copied := *t
			out = append(out, &copied)
		}
	}
	sortTasks(out)
	return out, nil
}

// FailNonTerminal implements the TaskStore interface
func (m *MockTaskStore) FailNonTerminal(ctx context.Context, jobID uuid.UUID, reason string) (int, error) {
	if m.FailNonTerminalFn != nil {
		return m.FailNonTerminalFn(ctx, jobID, reason)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	count := 0
	for _, t := range m.tasks {
		if t.JobID != jobID {
			continue
		}
		if t.Status == domain.TaskStatusPending || t.Status == domain.TaskStatusRunning {
			t.Status = domain.TaskStatusFailed
			t.Error = &reason
			t.CompletedAt = &now
			count++
		}
	}
	return count, nil
}

// WithTx implements the TaskStore interface. The mock has no transaction
// support; it returns itself.
func (m *MockTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return m
}

func sortTasks(tasks []*domain.ResearchTask) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID.String() < tasks[j].ID.String()
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}
