package signals

import (
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
)

// DefaultBaseScore is the starting score before the importance, confidence,
// and recency weights are applied.
const DefaultBaseScore = 25

// Importance weights applied to the base score.
const (
	importanceWeightCritical  = 1.6
	importanceWeightImportant = 1.3
	importanceWeightDefault   = 1.0
)

// Confidence weights applied to the base score.
const (
	confidenceWeightHigh    = 1.2
	confidenceWeightLow     = 0.8
	confidenceWeightDefault = 1.0
)

// Recency weights by signal age. Unparseable dates are treated as slightly
// less stale than parseable-but-old ones: a missing date is unknown, an old
// date is known-old.
const (
	recencyWeightWeek     = 1.5
	recencyWeightMonth    = 1.2
	recencyWeightQuarter  = 1.0
	recencyWeightOld      = 0.6
	recencyWeightUnparsed = 0.7
)

// typeSeparators matches the character runs collapsed to underscores when
// canonicalizing a signal type label.
var typeSeparators = regexp.MustCompile(`[\s-]+`)

// signalDateLayouts are tried in order when parsing a detector's free-form
// date string.
var signalDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
}

// RawFinding is one candidate finding as produced by a detector: free-form
// labels, unvalidated source, unparsed date.
type RawFinding struct {
	SignalType  string `json:"signal_type"`
	Description string `json:"description"`
	SignalDate  string `json:"signal_date"`
	Confidence  string `json:"confidence"`
	SourceURL   string `json:"source_url"`
}

// Normalizer converts raw findings into canonical DetectedSignal records.
type Normalizer struct {
	baseScore float64
	now       func() time.Time
	logger    *slog.Logger
}

// NewNormalizer creates a Normalizer with the default base score.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	return &Normalizer{
		baseScore: DefaultBaseScore,
		now:       time.Now,
		logger:    logger.With("component", "signal_normalizer"),
	}
}

// CanonicalType lowercases a type label and collapses whitespace and hyphen
// runs to single underscores, so "Funding Round", "funding-round", and
// "funding_round" all map to the same key.
func CanonicalType(label string) string {
	return typeSeparators.ReplaceAllString(strings.ToLower(label), "_")
}

// Normalize scores the findings for one account against its preferences and
// returns the resulting signal records. Findings without a usable
// description or an http source URL are silently dropped: an unverifiable
// finding is an expected outcome of searching noisy web content, not an
// error. Returns nil when the account has no preferences to score against.
func (n *Normalizer) Normalize(
	accountID uuid.UUID,
	prefs []*domain.SignalPreference,
	findings []RawFinding,
) []*domain.DetectedSignal {
	if len(prefs) == 0 {
		n.logger.Debug("no signal preferences for account, skipping normalization",
			"account_id", accountID,
			"finding_count", len(findings))
		return nil
	}

	// Deduplicate preferences by canonical type, keeping the first
	// occurrence: it holds the authoritative importance tier when several
	// findings map to the same canonical type.
	byType := make(map[string]*domain.SignalPreference, len(prefs))
	for _, pref := range prefs {
		canonical := CanonicalType(pref.SignalType)
		if _, seen := byType[canonical]; !seen {
			byType[canonical] = pref
		}
	}
	fallback := prefs[0]

	detectedAt := n.now().UTC()

	var signals []*domain.DetectedSignal
	for _, finding := range findings {
		if strings.TrimSpace(finding.Description) == "" {
			n.logger.Debug("dropping finding without description",
				"account_id", accountID,
				"signal_type", finding.SignalType)
			continue
		}

		if !strings.HasPrefix(finding.SourceURL, "http") {
			n.logger.Debug("dropping finding without verifiable source",
				"account_id", accountID,
				"signal_type", finding.SignalType,
				"source_url", finding.SourceURL)
			continue
		}

		canonical := CanonicalType(finding.SignalType)
		pref, ok := byType[canonical]
		if !ok {
			// Unmatched types score against the first preference as a
			// generic match.
			pref = fallback
		}

		confidence := NormalizeConfidence(finding.Confidence)
		score := n.CalculateScore(pref.Importance, confidence, finding.SignalDate)
		severity := DetermineSeverity(pref.Importance, score)

		signals = append(signals, &domain.DetectedSignal{
			ID:          uuid.New(),
			AccountID:   accountID,
			SignalType:  canonical,
			Description: finding.Description,
			SignalDate:  finding.SignalDate,
			SourceURL:   finding.SourceURL,
			Confidence:  confidence,
			Score:       score,
			Severity:    severity,
			DetectedAt:  detectedAt,
		})
	}

	return signals
}

// NormalizeConfidence maps a free-form confidence label to exactly one
// tier using case-insensitive substring matching, defaulting to medium for
// absent or unrecognized labels.
func NormalizeConfidence(label string) domain.ConfidenceTier {
	lowered := strings.ToLower(label)

	switch {
	case strings.Contains(lowered, "high"):
		return domain.ConfidenceHigh
	case strings.Contains(lowered, "low"):
		return domain.ConfidenceLow
	default:
		return domain.ConfidenceMedium
	}
}

// CalculateScore computes the deterministic signal score:
// base x importance x confidence x recency, rounded to the nearest integer
// and capped at 100.
func (n *Normalizer) CalculateScore(
	importance domain.ImportanceTier,
	confidence domain.ConfidenceTier,
	signalDate string,
) int {
	score := n.baseScore * importanceWeight(importance) * confidenceWeight(confidence) * n.recencyWeight(signalDate)

	rounded := int(math.Round(score))
	if rounded > 100 {
		return 100
	}
	return rounded
}

// DetermineSeverity derives the severity tier from the matched preference's
// importance and the computed score. Either can escalate severity;
// importance never downgrades a high score.
func DetermineSeverity(importance domain.ImportanceTier, score int) domain.SeverityTier {
	switch {
	case importance == domain.ImportanceCritical || score >= 80:
		return domain.SeverityCritical
	case importance == domain.ImportanceImportant || score >= 60:
		return domain.SeverityHigh
	case score >= 40:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// importanceWeight returns the score multiplier for an importance tier.
func importanceWeight(importance domain.ImportanceTier) float64 {
	switch importance {
	case domain.ImportanceCritical:
		return importanceWeightCritical
	case domain.ImportanceImportant:
		return importanceWeightImportant
	default:
		return importanceWeightDefault
	}
}

// confidenceWeight returns the score multiplier for a confidence tier.
func confidenceWeight(confidence domain.ConfidenceTier) float64 {
	switch confidence {
	case domain.ConfidenceHigh:
		return confidenceWeightHigh
	case domain.ConfidenceLow:
		return confidenceWeightLow
	default:
		return confidenceWeightDefault
	}
}

// recencyWeight computes the multiplier from the days between the signal
// date and now. Unparseable dates score at 0.7 (unknown age), parseable
// dates older than a quarter at 0.6.
func (n *Normalizer) recencyWeight(signalDate string) float64 {
	parsed, ok := parseSignalDate(signalDate)
	if !ok {
		return recencyWeightUnparsed
	}

	days := n.now().UTC().Sub(parsed).Hours() / 24

	switch {
	case days <= 7:
		return recencyWeightWeek
	case days <= 30:
		return recencyWeightMonth
	case days <= 90:
		return recencyWeightQuarter
	default:
		return recencyWeightOld
	}
}

// parseSignalDate tries the known layouts against a detector-supplied date
// string.
func parseSignalDate(value string) (time.Time, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, false
	}

	for _, layout := range signalDateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, true
		}
	}

	return time.Time{}, false
}
