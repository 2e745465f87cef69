package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImportanceTier is the per-account weighting an account gives a signal type.
type ImportanceTier string

// Possible importance tiers
const (
	ImportanceCritical   ImportanceTier = "critical"
	ImportanceImportant  ImportanceTier = "important"
	ImportanceNiceToHave ImportanceTier = "nice_to_have"
)

// ConfidenceTier is the normalized confidence of a detected signal.
type ConfidenceTier string

// Possible confidence tiers
const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// SeverityTier is the derived severity of a detected signal.
type SeverityTier string

// Possible severity tiers
const (
	SeverityCritical SeverityTier = "critical"
	SeverityHigh     SeverityTier = "high"
	SeverityMedium   SeverityTier = "medium"
	SeverityLow      SeverityTier = "low"
)

// Common validation errors for signal entities
var (
	ErrEmptySignalID          = errors.New("signal ID cannot be empty")
	ErrEmptySignalAccountID   = errors.New("signal account ID cannot be empty")
	ErrEmptySignalType        = errors.New("signal type cannot be empty")
	ErrEmptySignalDescription = errors.New("signal description cannot be empty")
	ErrInvalidSignalSource    = errors.New("signal source URL must start with http")
	ErrInvalidSignalScore     = errors.New("signal score must be between 0 and 100")
)

// SignalPreference is per-account, per-signal-type configuration consumed
// read-only by the signal normalizer. Config holds type-specific settings;
// the signals package parses it into a typed variant.
type SignalPreference struct {
	ID           uuid.UUID       `json:"id"`
	AccountID    uuid.UUID       `json:"account_id"`
	SignalType   string          `json:"signal_type"`
	Importance   ImportanceTier  `json:"importance"`
	LookbackDays int             `json:"lookback_days"`
	Config       json.RawMessage `json:"config,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// DetectedSignal is a normalized finding persisted once per detection run.
// Rows are append-only: re-detection creates new rows, there is no
// update-in-place or versioning.
//
// SignalDate is kept as the raw string supplied by the detector because
// detectors report dates in free form; unparseable dates still score (as
// stale) rather than being rejected.
type DetectedSignal struct {
	ID          uuid.UUID      `json:"id"`
	AccountID   uuid.UUID      `json:"account_id"`
	SignalType  string         `json:"signal_type"`
	Description string         `json:"description"`
	SignalDate  string         `json:"signal_date"`
	SourceURL   string         `json:"source_url"`
	Confidence  ConfidenceTier `json:"confidence"`
	Score       int            `json:"score"`
	Severity    SeverityTier   `json:"severity"`
	DetectedAt  time.Time      `json:"detected_at"`
}

// Validate checks if the DetectedSignal has valid data.
func (s *DetectedSignal) Validate() error {
	if s.ID == uuid.Nil {
		return ErrEmptySignalID
	}

	if s.AccountID == uuid.Nil {
		return ErrEmptySignalAccountID
	}

	if s.SignalType == "" {
		return ErrEmptySignalType
	}

	if s.Description == "" {
		return ErrEmptySignalDescription
	}

	if !strings.HasPrefix(s.SourceURL, "http") {
		return ErrInvalidSignalSource
	}

	if s.Score < 0 || s.Score > 100 {
		return ErrInvalidSignalScore
	}

	return nil
}
