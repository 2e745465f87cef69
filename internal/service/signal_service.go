package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/cache"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/signals"
	"github.com/MarkLNEO/research-agent-platform-sub004/internal/store"
)

// Preference cache sizing. Preferences change rarely and are read on
// every detection pass, so a short TTL keeps staleness bounded without a
// write-through invalidation path.
const (
	preferenceCacheSize = 1024
	preferenceCacheTTL  = 5 * time.Minute
)

// ErrNoPreferences indicates the account has no signal preferences, so
// there is nothing to score findings against. API layer should map this
// to HTTP 422.
var ErrNoPreferences = errors.New("account has no signal preferences")

// SignalServiceError wraps unexpected errors from the signal service.
type SignalServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for SignalServiceError.
func (e *SignalServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("signal service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("signal service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *SignalServiceError) Unwrap() error {
	return e.Err
}

// SignalService scores raw findings against account preferences and
// persists the resulting signals.
type SignalService interface {
	// DetectSignals normalizes the findings for the account and persists
	// the surviving signals. Returns the persisted records.
	DetectSignals(ctx context.Context, accountID uuid.UUID, findings []signals.RawFinding) ([]*domain.DetectedSignal, error)

	// ListSignals returns the account's detected signals, newest first.
	ListSignals(ctx context.Context, accountID uuid.UUID) ([]*domain.DetectedSignal, error)

	// RefreshPreferences drops the cached preferences for the account so
	// the next detection pass reloads them.
	RefreshPreferences(accountID uuid.UUID)
}

// signalServiceImpl implements the SignalService interface
type signalServiceImpl struct {
	store      store.SignalStore
	normalizer *signals.Normalizer
	prefs      *cache.Cache[[]*domain.SignalPreference]
	logger     *slog.Logger
}

// NewSignalService creates a new SignalService.
func NewSignalService(
	signalStore store.SignalStore,
	normalizer *signals.Normalizer,
	logger *slog.Logger,
) (SignalService, error) {
	if signalStore == nil {
		return nil, &SignalServiceError{
			Operation: "create_service",
			Message:   "signal store cannot be nil",
		}
	}
	if normalizer == nil {
		return nil, &SignalServiceError{
			Operation: "create_service",
			Message:   "normalizer cannot be nil",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &signalServiceImpl{
		store:      signalStore,
		normalizer: normalizer,
		prefs:      cache.New[[]*domain.SignalPreference](preferenceCacheSize, preferenceCacheTTL),
		logger:     logger.With("component", "signal_service"),
	}, nil
}

// DetectSignals normalizes and persists the findings for one account.
func (s *signalServiceImpl) DetectSignals(
	ctx context.Context,
	accountID uuid.UUID,
	findings []signals.RawFinding,
) ([]*domain.DetectedSignal, error) {
	prefs, err := s.loadPreferences(ctx, accountID)
	if err != nil {
		return nil, &SignalServiceError{
			Operation: "detect_signals",
			Message:   "failed to load preferences",
			Err:       err,
		}
	}
	if len(prefs) == 0 {
		return nil, ErrNoPreferences
	}

	detected := s.normalizer.Normalize(accountID, prefs, findings)
	if len(detected) == 0 {
		s.logger.Debug("no findings survived normalization",
			"account_id", accountID,
			"finding_count", len(findings))
		return nil, nil
	}

	if err := s.store.InsertSignals(ctx, detected); err != nil {
		return nil, &SignalServiceError{
			Operation: "detect_signals",
			Message:   "failed to persist signals",
			Err:       err,
		}
	}

	s.logger.Info("signals detected",
		"account_id", accountID,
		"findings", len(findings),
		"persisted", len(detected))

	return detected, nil
}

// ListSignals returns the account's detected signals, newest first.
func (s *signalServiceImpl) ListSignals(ctx context.Context, accountID uuid.UUID) ([]*domain.DetectedSignal, error) {
	list, err := s.store.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, &SignalServiceError{
			Operation: "list_signals",
			Message:   "failed to list signals",
			Err:       err,
		}
	}
	return list, nil
}

// RefreshPreferences drops the cached preferences for one account.
func (s *signalServiceImpl) RefreshPreferences(accountID uuid.UUID) {
	s.prefs.Invalidate(preferenceCacheKey(accountID))
}

// loadPreferences fetches preferences through the cache, parsing each
// preference's config so malformed entries are surfaced at load time
// rather than mid-scoring.
func (s *signalServiceImpl) loadPreferences(ctx context.Context, accountID uuid.UUID) ([]*domain.SignalPreference, error) {
	return s.prefs.GetOrLoad(ctx, preferenceCacheKey(accountID), func(ctx context.Context) ([]*domain.SignalPreference, error) {
		prefs, err := s.store.ListPreferences(ctx, accountID)
		if err != nil {
			return nil, err
		}

		for _, pref := range prefs {
			if _, err := signals.ParsePreferenceConfig(pref); err != nil {
				// A malformed config degrades that preference to generic
				// matching; it does not block detection.
				s.logger.Warn("ignoring malformed preference config",
					"account_id", accountID,
					"preference_id", pref.ID,
					"signal_type", pref.SignalType,
					"error", err)
			}
		}

		return prefs, nil
	})
}

func preferenceCacheKey(accountID uuid.UUID) string {
	return "prefs:" + accountID.String()
}
