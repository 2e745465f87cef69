package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/platform/postgres"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/store"
)

func newDetectedSignal(accountID uuid.UUID, signalType string, detectedAt time.Time) *domain.DetectedSignal {
	return &domain.DetectedSignal{
		ID:          uuid.New(),
		AccountID:   accountID,
		SignalType:  signalType,
		Description: "series B round closed",
		SignalDate:  "2026-08-20",
		SourceURL:   "https://news.example.com/a",
		Confidence:  domain.ConfidenceHigh,
		Score:       86,
		Severity:    domain.SeverityCritical,
		DetectedAt:  detectedAt,
	}
}

func insertTestPreference(
	ctx context.Context,
	t *testing.T,
	accountID uuid.UUID,
	signalType string,
	importance domain.ImportanceTier,
	config json.RawMessage,
	createdAt time.Time,
) {
	t.Helper()

	_, err := testDB.ExecContext(ctx, `
		INSERT INTO signal_preferences (id, account_id, signal_type, importance, lookback_days, config, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New(), accountID, signalType, importance, 90, config, createdAt)
	require.NoError(t, err)
}

func TestSignalStoreInsertAndList(t *testing.T) {
	ctx := testContext(t)
	signalStore := postgres.NewPostgresSignalStore(testDB)

	accountID := uuid.New()
	base := time.Now().UTC().Truncate(time.Microsecond)

	older := newDetectedSignal(accountID, "funding_round", base.Add(-time.Hour))
	newer := newDetectedSignal(accountID, "leadership_change", base)

	require.NoError(t, signalStore.InsertSignals(ctx, []*domain.DetectedSignal{older, newer}))

	list, err := signalStore.ListByAccount(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	// Newest first.
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	got := list[1]
	assert.Equal(t, "funding_round", got.SignalType)
	assert.Equal(t, "series B round closed", got.Description)
	assert.Equal(t, "2026-08-20", got.SignalDate)
	assert.Equal(t, domain.ConfidenceHigh, got.Confidence)
	assert.Equal(t, 86, got.Score)
	assert.Equal(t, domain.SeverityCritical, got.Severity)
}

func TestSignalStoreInsertRejectsInvalidSignal(t *testing.T) {
	ctx := testContext(t)
	signalStore := postgres.NewPostgresSignalStore(testDB)

	invalid := newDetectedSignal(uuid.New(), "funding_round", time.Now().UTC())
	invalid.SourceURL = "ftp://not-http"

	err := signalStore.InsertSignals(ctx, []*domain.DetectedSignal{invalid})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestSignalStoreListByAccountEmpty(t *testing.T) {
	ctx := testContext(t)
	signalStore := postgres.NewPostgresSignalStore(testDB)

	list, err := signalStore.ListByAccount(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSignalStoreListPreferencesInCreationOrder(t *testing.T) {
	ctx := testContext(t)
	signalStore := postgres.NewPostgresSignalStore(testDB)

	accountID := uuid.New()
	base := time.Now().UTC().Truncate(time.Microsecond)

	config := json.RawMessage(`{"min_amount": 1000000}`)
	insertTestPreference(ctx, t, accountID, "funding_round", domain.ImportanceCritical, config, base.Add(-2*time.Hour))
	insertTestPreference(ctx, t, accountID, "leadership_change", domain.ImportanceImportant, nil, base.Add(-time.Hour))

	prefs, err := signalStore.ListPreferences(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, prefs, 2)

	assert.Equal(t, "funding_round", prefs[0].SignalType)
	assert.Equal(t, domain.ImportanceCritical, prefs[0].Importance)
	assert.JSONEq(t, string(config), string(prefs[0].Config))

	assert.Equal(t, "leadership_change", prefs[1].SignalType)
	assert.Nil(t, prefs[1].Config)
}

func TestSignalStoreListPreferencesEmpty(t *testing.T) {
	ctx := testContext(t)
	signalStore := postgres.NewPostgresSignalStore(testDB)

	prefs, err := signalStore.ListPreferences(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, prefs)
}
