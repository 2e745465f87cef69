package mocks

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/store"
)

// MockJobStore implements store.JobStore for testing
type MockJobStore struct {
	// Function fields for customizable behavior
	CreateFn         func(ctx context.Context, job *domain.ResearchJob) error
	GetByIDFn        func(ctx context.Context, id uuid.UUID) (*domain.ResearchJob, error)
	MarkRunningFn    func(ctx context.Context, id uuid.UUID) error
	UpdateProgressFn func(ctx context.Context, id uuid.UUID, completedCount int, results []domain.TaskOutcome) error
	FinalizeFn       func(ctx context.Context, id uuid.UUID, status domain.JobStatus) error
	ListByStatusFn   func(ctx context.Context, status domain.JobStatus) ([]*domain.ResearchJob, error)

	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.ResearchJob
}

// NewMockJobStore creates a mock job store with an empty in-memory table.
func NewMockJobStore() *MockJobStore {
	return &MockJobStore{
		jobs: make(map[uuid.UUID]*domain.ResearchJob),
	}
}

// Job returns a snapshot of one stored job, or nil.
func (m *MockJobStore) Job(id uuid.UUID) *domain.ResearchJob {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil
	}
	copied := *j
	return &copied
}

// Create implements the JobStore interface
func (m *MockJobStore) Create(ctx context.Context, job *domain.ResearchJob) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, job)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.ID]; exists {
		return store.ErrDuplicate
	}
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

// GetByID implements the JobStore interface
func (m *MockJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ResearchJob, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	copied := *j
	return &copied, nil
}

// MarkRunning implements the JobStore interface
func (m *MockJobStore) MarkRunning(ctx context.Context, id uuid.UUID) error {
	if m.MarkRunningFn != nil {
		return m.MarkRunningFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	if j.Status != domain.JobStatusPending {
		return nil
	}
	now := time.Now().UTC()
	j.Status = domain.JobStatusRunning
	j.StartedAt = &now
	return nil
}

// UpdateProgress implements the JobStore interface
func (m *MockJobStore) UpdateProgress(ctx context.Context, id uuid.UUID, completedCount int, results []domain.TaskOutcome) error {
	if m.UpdateProgressFn != nil {
		return m.UpdateProgressFn(ctx, id, completedCount, results)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	j.CompletedCount = completedCount
	j.Results = append([]domain.TaskOutcome(nil), results...)
	return nil
}

// Finalize implements the JobStore interface
func (m *MockJobStore) Finalize(ctx context.Context, id uuid.UUID, status domain.JobStatus) error {
	if m.FinalizeFn != nil {
		return m.FinalizeFn(ctx, id, status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	now := time.Now().UTC()
	j.Status = status
	j.CompletedAt = &now
	return nil
}

// ListByStatus implements the JobStore interface
func (m *MockJobStore) ListByStatus(ctx context.Context, status domain.JobStatus) ([]*domain.ResearchJob, error) {
	if m.ListByStatusFn != nil {
		return m.ListByStatusFn(ctx, status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*domain.ResearchJob, 0)
	for _, j := range m.jobs {
		if j.Status == status {
			copied := *j
			out = append(out, &copied)
		}
	}
	return out, nil
}

// WithTx implements the JobStore interface. The mock has no transaction
// support; it returns itself.
func (m *MockJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return m
}
