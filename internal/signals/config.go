package signals

import (
	"encoding/json"
	"fmt"

	"github.com/MarkLNEO/research-agent-platform-sub004/internal/domain"
)

// Known preference config kinds. Anything else parses into the generic
// variant for forward compatibility.
const (
	ConfigKindFunding    = "funding_round"
	ConfigKindLeadership = "leadership_change"
	ConfigKindHiring     = "hiring_surge"
	ConfigKindGeneric    = "generic"
)

// FundingConfig narrows funding round detection.
type FundingConfig struct {
	MinRoundUSD int64    `json:"min_round_usd,omitempty"`
	Stages      []string `json:"stages,omitempty"`
}

// LeadershipConfig narrows leadership change detection to specific roles.
type LeadershipConfig struct {
	Roles []string `json:"roles,omitempty"`
}

// HiringConfig narrows hiring surge detection.
type HiringConfig struct {
	MinOpenRoles int      `json:"min_open_roles,omitempty"`
	Departments  []string `json:"departments,omitempty"`
}

// PreferenceConfig is the typed form of a preference's free-form config
// map: a tagged union with one variant per known signal type and a generic
// map fallback, instead of passing untyped key-value maps around.
type PreferenceConfig struct {
	Kind       string
	Funding    *FundingConfig
	Leadership *LeadershipConfig
	Hiring     *HiringConfig
	Generic    map[string]any
}

// ParsePreferenceConfig decodes a preference's raw config into its typed
// variant, keyed by the preference's canonical signal type. A preference
// without config yields a generic variant with an empty map.
func ParsePreferenceConfig(pref *domain.SignalPreference) (*PreferenceConfig, error) {
	canonical := CanonicalType(pref.SignalType)

	if len(pref.Config) == 0 {
		return &PreferenceConfig{Kind: ConfigKindGeneric, Generic: map[string]any{}}, nil
	}

	switch canonical {
	case ConfigKindFunding:
		var cfg FundingConfig
		if err := json.Unmarshal(pref.Config, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse funding config for preference %s: %w", pref.ID, err)
		}
		return &PreferenceConfig{Kind: ConfigKindFunding, Funding: &cfg}, nil

	case ConfigKindLeadership:
		var cfg LeadershipConfig
		if err := json.Unmarshal(pref.Config, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse leadership config for preference %s: %w", pref.ID, err)
		}
		return &PreferenceConfig{Kind: ConfigKindLeadership, Leadership: &cfg}, nil

	case ConfigKindHiring:
		var cfg HiringConfig
		if err := json.Unmarshal(pref.Config, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse hiring config for preference %s: %w", pref.ID, err)
		}
		return &PreferenceConfig{Kind: ConfigKindHiring, Hiring: &cfg}, nil

	default:
		var cfg map[string]any
		if err := json.Unmarshal(pref.Config, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config for preference %s: %w", pref.ID, err)
		}
		return &PreferenceConfig{Kind: ConfigKindGeneric, Generic: cfg}, nil
	}
}
