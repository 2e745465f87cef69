package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
)

// SignalStore defines the interface for the per-account signal tables.
// Detected signals are append-only: re-detection inserts new rows and
// nothing updates a row after creation.
type SignalStore interface {
	// InsertSignals persists a batch of normalized detected signals.
	// Returns ErrInvalidEntity if any signal fails validation.
	InsertSignals(ctx context.Context, signals []*domain.DetectedSignal) error

	// ListByAccount returns the account's detected signals, newest first.
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.DetectedSignal, error)

	// ListPreferences returns the account's signal preferences in creation
	// order. The first preference acts as the generic fallback when a
	// finding's type matches no configured preference.
	ListPreferences(ctx context.Context, accountID uuid.UUID) ([]*domain.SignalPreference, error)
}
