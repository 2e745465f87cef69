package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/research"
)

// MockAggregator implements research.Aggregator for testing
type MockAggregator struct {
	// ResearchFn overrides the default behavior when set
	ResearchFn func(ctx context.Context, req research.Request) (string, error)

	mu       sync.Mutex
	requests []research.Request
}

// NewMockAggregator creates a mock aggregator that echoes the subject.
func NewMockAggregator() *MockAggregator {
	return &MockAggregator{}
}

// Research implements the Aggregator interface
func (m *MockAggregator) Research(ctx context.Context, req research.Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.ResearchFn != nil {
		return m.ResearchFn(ctx, req)
	}
	return fmt.Sprintf("summary of %s", req.Subject), nil
}

// Requests returns every request seen so far.
func (m *MockAggregator) Requests() []research.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]research.Request(nil), m.requests...)
}

// CallCount returns the number of Research invocations.
func (m *MockAggregator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
