package settings

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
)

// Raw document shapes as stored in the settings table.

type bandDoc struct {
	Min    int `json:"min"`
	Points int `json:"points"`
}

type countryTierDoc struct {
	Countries []string `json:"countries"`
	Points    int      `json:"points"`
}

type scoringDoc struct {
	Version           int                       `json:"version"`
	FleetSizePoints   map[string]int            `json:"fleet_size_points"`
	CountryTierPoints map[string]countryTierDoc `json:"country_tier_points"`
	MessageLength     map[string]bandDoc        `json:"message_length_thresholds"`
	PhonePoints       struct {
		Provided int `json:"provided"`
		Missing  int `json:"missing"`
	} `json:"phone_points"`
	PageViews  map[string]bandDoc `json:"page_views_thresholds"`
	TimeOnSite map[string]bandDoc `json:"time_on_site_thresholds"`
	Weights    struct {
		Fit        float64 `json:"fit"`
		Engagement float64 `json:"engagement"`
	} `json:"qualification_weights"`
	StageThresholds map[string]int `json:"qualification_stage_thresholds"`
}

type fleetRuleDoc struct {
	TitlePatterns   []string `json:"title_patterns"`
	ExcludePatterns []string `json:"exclude_patterns"`
	Priority        int      `json:"priority"`
}

type geoZoneDoc struct {
	Countries     []string `json:"countries"`
	TitlePatterns []string `json:"title_patterns"`
	Priority      int      `json:"priority"`
}

type assignmentDoc struct {
	Version           int                     `json:"version"`
	FleetSizePriority map[string]fleetRuleDoc `json:"fleet_size_priority"`
	GeographicZones   map[string]geoZoneDoc   `json:"geographic_zones"`
	Fallback          struct {
		EmployeeID   string `json:"employee_id"`
		TitlePattern string `json:"title_pattern"`
	} `json:"fallback"`
}

type priorityDoc struct {
	Version    int `json:"version"`
	Thresholds map[string]struct {
		Min int `json:"min"`
	} `json:"thresholds"`
	Default string `json:"default"`
}

type decayDoc struct {
	Enabled                 bool    `json:"enabled"`
	InactivityThresholdDays int     `json:"inactivity_threshold_days"`
	DecayType               string  `json:"decay_type"`
	DecayValue              float64 `json:"decay_value"`
	MinimumScore            int     `json:"minimum_score"`
}

// ParseScoringConfig decodes and validates a scoring rule document.
func ParseScoringConfig(raw []byte) (*ScoringConfig, error) {
	var doc scoringDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "scoring config is not valid JSON", err).WithOp(KeyScoringConfig)
	}

	if len(doc.FleetSizePoints) == 0 {
		return nil, configErr(KeyScoringConfig, "fleet_size_points is empty")
	}
	if _, ok := doc.FleetSizePoints[FleetSizeUnknown]; !ok {
		return nil, configErr(KeyScoringConfig, "fleet_size_points is missing the %q tier", FleetSizeUnknown)
	}
	if len(doc.CountryTierPoints) == 0 {
		return nil, configErr(KeyScoringConfig, "country_tier_points is empty")
	}
	if doc.Weights.Fit < 0 || doc.Weights.Engagement < 0 {
		return nil, configErr(KeyScoringConfig, "qualification_weights must be non-negative")
	}
	if doc.Weights.Fit == 0 && doc.Weights.Engagement == 0 {
		return nil, configErr(KeyScoringConfig, "qualification_weights are all zero")
	}
	if len(doc.StageThresholds) == 0 {
		return nil, configErr(KeyScoringConfig, "qualification_stage_thresholds is empty")
	}

	cfg := &ScoringConfig{
		Version:          doc.Version,
		FleetSizePoints:  doc.FleetSizePoints,
		MessageBands:     sortedBands(doc.MessageLength),
		PhoneProvided:    doc.PhonePoints.Provided,
		PhoneMissing:     doc.PhonePoints.Missing,
		PageViewBands:    sortedBands(doc.PageViews),
		TimeOnSiteBands:  sortedBands(doc.TimeOnSite),
		FitWeight:        doc.Weights.Fit,
		EngagementWeight: doc.Weights.Engagement,
	}

	for name, tier := range doc.CountryTierPoints {
		countries := make(map[string]struct{}, len(tier.Countries))
		for _, code := range tier.Countries {
			countries[strings.ToUpper(strings.TrimSpace(code))] = struct{}{}
		}
		cfg.CountryTiers = append(cfg.CountryTiers, CountryTier{
			Name:      name,
			Points:    tier.Points,
			countries: countries,
		})
	}
	// Highest-points tiers first so membership checks prefer the best match.
	sort.Slice(cfg.CountryTiers, func(i, j int) bool {
		if cfg.CountryTiers[i].Points != cfg.CountryTiers[j].Points {
			return cfg.CountryTiers[i].Points > cfg.CountryTiers[j].Points
		}
		return cfg.CountryTiers[i].Name < cfg.CountryTiers[j].Name
	})

	for stage, minScore := range doc.StageThresholds {
		parsed, ok := parseStage(stage)
		if !ok {
			return nil, configErr(KeyScoringConfig, "unknown stage %q in qualification_stage_thresholds", stage)
		}
		cfg.StageThresholds = append(cfg.StageThresholds, StageThreshold{Stage: parsed, Min: minScore})
	}
	// Highest threshold first: sales_qualified is checked before marketing_qualified.
	sort.Slice(cfg.StageThresholds, func(i, j int) bool {
		return cfg.StageThresholds[i].Min > cfg.StageThresholds[j].Min
	})

	return cfg, nil
}

// ParsePriorityConfig decodes and validates a priority classification document.
func ParsePriorityConfig(raw []byte) (*PriorityConfig, error) {
	var doc priorityDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "priority config is not valid JSON", err).WithOp(KeyPriorityConfig)
	}

	if len(doc.Thresholds) == 0 {
		return nil, configErr(KeyPriorityConfig, "thresholds is empty")
	}
	if !domain.ValidPriority(doc.Default) {
		return nil, configErr(KeyPriorityConfig, "unknown default level %q", doc.Default)
	}

	cfg := &PriorityConfig{
		Version: doc.Version,
		Default: domain.Priority(doc.Default),
	}
	for level, t := range doc.Thresholds {
		if !domain.ValidPriority(level) {
			return nil, configErr(KeyPriorityConfig, "unknown level %q in thresholds", level)
		}
		cfg.Thresholds = append(cfg.Thresholds, PriorityThreshold{Level: domain.Priority(level), Min: t.Min})
	}
	sort.Slice(cfg.Thresholds, func(i, j int) bool {
		return cfg.Thresholds[i].Min > cfg.Thresholds[j].Min
	})

	return cfg, nil
}

// ParseAssignmentConfig decodes and validates an assignment rule document.
// LIKE patterns are compiled here, once, into case-insensitive matchers.
func ParseAssignmentConfig(raw []byte) (*AssignmentConfig, error) {
	var doc assignmentDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "assignment rules are not valid JSON", err).WithOp(KeyAssignmentRules)
	}

	cfg := &AssignmentConfig{
		Version:    doc.Version,
		FleetRules: make(map[string]FleetRule, len(doc.FleetSizePriority)),
	}

	for fleetSize, rule := range doc.FleetSizePriority {
		if len(rule.TitlePatterns) == 0 {
			return nil, configErr(KeyAssignmentRules, "fleet rule %q has no title_patterns", fleetSize)
		}
		include, err := compileAll(rule.TitlePatterns)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConfiguration, fmt.Sprintf("fleet rule %q has an invalid pattern", fleetSize), err).WithOp(KeyAssignmentRules)
		}
		exclude, err := compileAll(rule.ExcludePatterns)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConfiguration, fmt.Sprintf("fleet rule %q has an invalid exclude pattern", fleetSize), err).WithOp(KeyAssignmentRules)
		}
		cfg.FleetRules[fleetSize] = FleetRule{
			FleetSize: fleetSize,
			Include:   include,
			Exclude:   exclude,
			Priority:  rule.Priority,
		}
	}

	for name, zone := range doc.GeographicZones {
		if len(zone.Countries) == 0 {
			return nil, configErr(KeyAssignmentRules, "geographic zone %q has no countries", name)
		}
		matchers, err := compileAll(zone.TitlePatterns)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConfiguration, fmt.Sprintf("geographic zone %q has an invalid pattern", name), err).WithOp(KeyAssignmentRules)
		}
		countries := make(map[string]struct{}, len(zone.Countries))
		for _, code := range zone.Countries {
			countries[strings.ToUpper(strings.TrimSpace(code))] = struct{}{}
		}
		cfg.Zones = append(cfg.Zones, GeoZone{
			Name:      name,
			Priority:  zone.Priority,
			Matchers:  matchers,
			countries: countries,
		})
	}
	sort.Slice(cfg.Zones, func(i, j int) bool {
		if cfg.Zones[i].Priority != cfg.Zones[j].Priority {
			return cfg.Zones[i].Priority < cfg.Zones[j].Priority
		}
		return cfg.Zones[i].Name < cfg.Zones[j].Name
	})

	if doc.Fallback.EmployeeID != "" {
		id, err := uuid.Parse(doc.Fallback.EmployeeID)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConfiguration, "fallback employee_id is not a valid UUID", err).WithOp(KeyAssignmentRules)
		}
		cfg.Fallback.EmployeeID = &id
	}
	if doc.Fallback.TitlePattern != "" {
		matcher, err := CompileTitlePattern(doc.Fallback.TitlePattern)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConfiguration, "fallback title_pattern is invalid", err).WithOp(KeyAssignmentRules)
		}
		cfg.Fallback.Matcher = matcher
	}

	return cfg, nil
}

// ParseDecayConfig decodes and validates a score decay policy document.
func ParseDecayConfig(raw []byte) (*DecayConfig, error) {
	var doc decayDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "decay config is not valid JSON", err).WithOp(KeyScoreDecay)
	}

	cfg := &DecayConfig{
		Enabled:                 doc.Enabled,
		InactivityThresholdDays: doc.InactivityThresholdDays,
		DecayType:               DecayType(doc.DecayType),
		DecayValue:              doc.DecayValue,
		MinimumScore:            doc.MinimumScore,
	}

	if !cfg.Enabled {
		return cfg, nil
	}
	if cfg.InactivityThresholdDays <= 0 {
		return nil, configErr(KeyScoreDecay, "inactivity_threshold_days must be positive")
	}
	switch cfg.DecayType {
	case DecayPercentage, DecayFlat:
	default:
		return nil, configErr(KeyScoreDecay, "unknown decay_type %q", doc.DecayType)
	}
	if cfg.DecayValue < 0 {
		return nil, configErr(KeyScoreDecay, "decay_value must not be negative")
	}
	if cfg.MinimumScore < 0 {
		return nil, configErr(KeyScoreDecay, "minimum_score must not be negative")
	}

	return cfg, nil
}

func parseStage(value string) (domain.LeadStage, bool) {
	switch domain.LeadStage(value) {
	case domain.StageTopOfFunnel, domain.StageMarketingQualified, domain.StageSalesQualified:
		return domain.LeadStage(value), true
	}
	return "", false
}

func sortedBands(docs map[string]bandDoc) []Band {
	bands := make([]Band, 0, len(docs))
	for name, b := range docs {
		bands = append(bands, Band{Name: name, Min: b.Min, Points: b.Points})
	}
	sort.Slice(bands, func(i, j int) bool {
		if bands[i].Min != bands[j].Min {
			return bands[i].Min > bands[j].Min
		}
		return bands[i].Name < bands[j].Name
	})
	return bands
}

func configErr(key, format string, args ...any) *apperr.Error {
	return apperr.Configuration(fmt.Sprintf(format, args...)).WithOp(key)
}
