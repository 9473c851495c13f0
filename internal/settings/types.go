// Package settings loads versioned JSON rule documents and parses them into
// strongly typed configurations at the loading boundary. Malformed or missing
// documents fail with a configuration error; scoring and assignment never run
// on guessed values.
package settings

import (
	"strings"

	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// Setting keys understood by the engine.
const (
	KeyScoringConfig   = "lead_scoring_config"
	KeyAssignmentRules = "lead_assignment_rules"
	KeyPriorityConfig  = "lead_priority_config"
	KeyScoreDecay      = "score_decay"
)

// FleetSizeUnknown is the fleet tier used when a lead has no recognizable
// fleet size.
const FleetSizeUnknown = "unknown"

// Band is a single scoring band: the first band whose Min is met (scanning
// from most demanding to least) contributes its points.
type Band struct {
	Name   string
	Min    int
	Points int
}

// CountryTier groups countries that award the same fit points.
type CountryTier struct {
	Name      string
	Points    int
	countries map[string]struct{}
}

// Contains reports whether the tier includes the country code (case-insensitive).
func (t CountryTier) Contains(code string) bool {
	_, ok := t.countries[strings.ToUpper(code)]
	return ok
}

// ScoringConfig is the parsed lead scoring rule document.
// Band slices are sorted by Min descending at parse time.
type ScoringConfig struct {
	Version          int
	FleetSizePoints  map[string]int
	CountryTiers     []CountryTier
	MessageBands     []Band
	PhoneProvided    int
	PhoneMissing     int
	PageViewBands    []Band
	TimeOnSiteBands  []Band
	FitWeight        float64
	EngagementWeight float64
	StageThresholds  []StageThreshold
}

// StageThreshold maps a minimum qualification score to a pipeline stage.
type StageThreshold struct {
	Stage domain.LeadStage
	Min   int
}

// FleetPoints returns the configured points for a fleet size tier, falling
// back to the "unknown" tier for nil or unrecognized values.
func (c *ScoringConfig) FleetPoints(fleetSize *string) int {
	if fleetSize != nil {
		if pts, ok := c.FleetSizePoints[strings.TrimSpace(*fleetSize)]; ok {
			return pts
		}
	}
	return c.FleetSizePoints[FleetSizeUnknown]
}

// CountryPoints returns the points of the tier containing the country code.
// A nil or unmatched country falls into the lowest-points tier.
func (c *ScoringConfig) CountryPoints(countryCode *string) int {
	if countryCode != nil && strings.TrimSpace(*countryCode) != "" {
		code := strings.TrimSpace(*countryCode)
		for _, tier := range c.CountryTiers {
			if tier.Contains(code) {
				return tier.Points
			}
		}
	}

	lowest := 0
	for i, tier := range c.CountryTiers {
		if i == 0 || tier.Points < lowest {
			lowest = tier.Points
		}
	}
	return lowest
}

// PriorityThreshold maps a minimum qualification score to a priority level.
type PriorityThreshold struct {
	Level domain.Priority
	Min   int
}

// PriorityConfig is the parsed priority classification document.
// Thresholds are sorted by Min descending at parse time.
type PriorityConfig struct {
	Version    int
	Thresholds []PriorityThreshold
	Default    domain.Priority
}

// FleetRule routes leads of one fleet tier to agents whose titles match.
type FleetRule struct {
	FleetSize string
	Include   []*TitleMatcher
	Exclude   []*TitleMatcher
	Priority  int
}

// GeoZone routes leads from a set of countries to agents whose titles match.
type GeoZone struct {
	Name      string
	Priority  int
	Matchers  []*TitleMatcher
	countries map[string]struct{}
}

// ContainsCountry reports zone membership for a country code (case-insensitive).
func (z GeoZone) ContainsCountry(code string) bool {
	_, ok := z.countries[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// Fallback is the configured pre-ultimate assignment fallback: either a fixed
// employee or a title pattern.
type Fallback struct {
	EmployeeID *uuid.UUID
	Matcher    *TitleMatcher
}

// AssignmentConfig is the parsed assignment rule document. Zone order is
// priority ascending; fleet rules are keyed by fleet tier.
type AssignmentConfig struct {
	Version    int
	FleetRules map[string]FleetRule
	Zones      []GeoZone
	Fallback   Fallback
}

// DecayType selects how the engagement score is degraded.
type DecayType string

const (
	DecayPercentage DecayType = "percentage"
	DecayFlat       DecayType = "flat"
)

// DecayConfig is the parsed score decay policy.
type DecayConfig struct {
	Enabled                 bool
	InactivityThresholdDays int
	DecayType               DecayType
	DecayValue              float64
	MinimumScore            int
}
