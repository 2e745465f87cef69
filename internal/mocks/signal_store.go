package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/store"
)

// MockSignalStore implements store.SignalStore for testing
type MockSignalStore struct {
	// Function fields for customizable behavior
	InsertSignalsFn   func(ctx context.Context, signals []*domain.DetectedSignal) error
	ListByAccountFn   func(ctx context.Context, accountID uuid.UUID) ([]*domain.DetectedSignal, error)
	ListPreferencesFn func(ctx context.Context, accountID uuid.UUID) ([]*domain.SignalPreference, error)

	mu          sync.Mutex
	signals     []*domain.DetectedSignal
	Preferences map[uuid.UUID][]*domain.SignalPreference

	// ListPreferencesCalls counts loads, for cache assertions.
	ListPreferencesCalls int
}

// NewMockSignalStore creates a mock signal store with empty tables.
func NewMockSignalStore() *MockSignalStore {
	return &MockSignalStore{
		Preferences: make(map[uuid.UUID][]*domain.SignalPreference),
	}
}

// InsertSignals implements the SignalStore interface
func (m *MockSignalStore) InsertSignals(ctx context.Context, signals []*domain.DetectedSignal) error {
	if m.InsertSignalsFn != nil {
		return m.InsertSignalsFn(ctx, signals)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range signals {
		if err := s.Validate(); err != nil {
			return store.ErrInvalidEntity
		}
		copied := *s
		m.signals = append(m.signals, &copied)
	}
	return nil
}

// ListByAccount implements the SignalStore interface
func (m *MockSignalStore) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.DetectedSignal, error) {
	if m.ListByAccountFn != nil {
		return m.ListByAccountFn(ctx, accountID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*domain.DetectedSignal, 0)
	for _, s := range m.signals {
		if s.AccountID == accountID {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DetectedAt.After(out[j].DetectedAt)
	})
	return out, nil
}

// ListPreferences implements the SignalStore interface
func (m *MockSignalStore) ListPreferences(ctx context.Context, accountID uuid.UUID) ([]*domain.SignalPreference, error) {
	if m.ListPreferencesFn != nil {
		return m.ListPreferencesFn(ctx, accountID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListPreferencesCalls++
	return append([]*domain.SignalPreference(nil), m.Preferences[accountID]...), nil
}
