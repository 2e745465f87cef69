package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/platform/logger"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/store"
)

// PostgresSignalStore implements the store.SignalStore interface using
// PostgreSQL. The detected_signals table is append-only from this store's
// perspective: there are no update or delete paths.
type PostgresSignalStore struct {
	db store.DBTX
}

// NewPostgresSignalStore creates a new PostgresSignalStore.
func NewPostgresSignalStore(db store.DBTX) *PostgresSignalStore {
	return &PostgresSignalStore{
		db: db,
	}
}

// InsertSignals persists a batch of normalized detected signals.
func (s *PostgresSignalStore) InsertSignals(ctx context.Context, signals []*domain.DetectedSignal) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO detected_signals (id, account_id, signal_type, description, signal_date, source_url, confidence, score, severity, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for _, signal := range signals {
		if err := signal.Validate(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}

		_, err := s.db.ExecContext(ctx, query,
			signal.ID,
			signal.AccountID,
			signal.SignalType,
			signal.Description,
			signal.SignalDate,
			signal.SourceURL,
			signal.Confidence,
			signal.Score,
			signal.Severity,
			signal.DetectedAt,
		)
		if err != nil {
			log.Error("failed to insert detected signal",
				"signal_id", signal.ID,
				"account_id", signal.AccountID,
				"signal_type", signal.SignalType,
				"error", err)
			return fmt.Errorf("failed to insert detected signal: %w", err)
		}
	}

	return nil
}

// ListByAccount returns the account's detected signals, newest first.
func (s *PostgresSignalStore) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.DetectedSignal, error) {
	query := `
		SELECT id, account_id, signal_type, description, signal_date, source_url, confidence, score, severity, detected_at
		FROM detected_signals
		WHERE account_id = $1
		ORDER BY detected_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list detected signals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var signals []*domain.DetectedSignal
	for rows.Next() {
		var signal domain.DetectedSignal

		err := rows.Scan(
			&signal.ID,
			&signal.AccountID,
			&signal.SignalType,
			&signal.Description,
			&signal.SignalDate,
			&signal.SourceURL,
			&signal.Confidence,
			&signal.Score,
			&signal.Severity,
			&signal.DetectedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan detected signal row: %w", err)
		}

		signals = append(signals, &signal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating detected signal rows: %w", err)
	}

	return signals, nil
}

// ListPreferences returns the account's signal preferences in creation
// order so the first row is the deterministic fallback preference.
func (s *PostgresSignalStore) ListPreferences(ctx context.Context, accountID uuid.UUID) ([]*domain.SignalPreference, error) {
	query := `
		SELECT id, account_id, signal_type, importance, lookback_days, config, created_at
		FROM signal_preferences
		WHERE account_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list signal preferences: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var prefs []*domain.SignalPreference
	for rows.Next() {
		var pref domain.SignalPreference
		var config []byte

		err := rows.Scan(
			&pref.ID,
			&pref.AccountID,
			&pref.SignalType,
			&pref.Importance,
			&pref.LookbackDays,
			&config,
			&pref.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal preference row: %w", err)
		}

		if len(config) > 0 {
			pref.Config = config
		}

		prefs = append(prefs, &pref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signal preference rows: %w", err)
	}

	return prefs, nil
}
