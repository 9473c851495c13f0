// Package scoring computes lead fit, engagement and qualification scores from
// the configured rule tables. Every function is a pure function of its inputs
// and the active configuration: no clock, no randomness, no shared state.
package scoring

import (
	"fmt"
	"math"
	"unicode/utf8"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/settings"
	"leadflow_backend/platform/apperr"
)

const scoreVersion = "2026-v1"

// LeadInput carries the lead attributes the engine scores on.
type LeadInput struct {
	FleetSize   *string
	CountryCode *string
	Message     *string
	Phone       *string
	Metadata    domain.Metadata
}

// Breakdown retains the intermediate values and formula for audit display.
type Breakdown struct {
	FitScore           int     `json:"fitScore"`
	EngagementScore    int     `json:"engagementScore"`
	FitWeight          float64 `json:"fitWeight"`
	EngagementWeight   float64 `json:"engagementWeight"`
	WeightedFit        float64 `json:"weightedFit"`
	WeightedEngagement float64 `json:"weightedEngagement"`
	Formula            string  `json:"formula"`
	Version            string  `json:"version"`
}

// QualificationResult is the outcome of the weighted qualification computation.
type QualificationResult struct {
	Score     int
	Stage     domain.LeadStage
	Breakdown Breakdown
}

// Result bundles all three scores for a lead.
type Result struct {
	FitScore           int
	EngagementScore    int
	QualificationScore int
	Stage              domain.LeadStage
	Breakdown          Breakdown
}

// CalculateFitScore scores how well the lead's fleet size and country match
// the target customer profile. The range is bounded by the config itself, not
// by an explicit clamp.
func CalculateFitScore(fleetSize, countryCode *string, cfg *settings.ScoringConfig) int {
	return cfg.FleetPoints(fleetSize) + cfg.CountryPoints(countryCode)
}

// CalculateEngagementScore sums four independent band-matched contributions:
// message depth, phone presence, page views and time on site. A nil message
// or metadata behaves exactly like an empty one.
func CalculateEngagementScore(message, phone *string, metadata domain.Metadata, cfg *settings.ScoringConfig) int {
	score := bandPoints(cfg.MessageBands, messageLength(message))

	if phone != nil && *phone != "" {
		score += cfg.PhoneProvided
	} else {
		score += cfg.PhoneMissing
	}

	score += bandPoints(cfg.PageViewBands, metadata.PageViews())
	score += bandPoints(cfg.TimeOnSiteBands, metadata.TimeOnSite())

	return score
}

// CalculateQualificationScore combines fit and engagement using the configured
// weights, rounding half up, and classifies the stage by scanning thresholds
// from the highest minimum down. A score exactly at a threshold lands in the
// higher stage.
func CalculateQualificationScore(fit, engagement int, cfg *settings.ScoringConfig) QualificationResult {
	weightedFit := float64(fit) * cfg.FitWeight
	weightedEngagement := float64(engagement) * cfg.EngagementWeight
	score := roundHalfUp(weightedFit + weightedEngagement)

	stage := domain.StageTopOfFunnel
	for _, t := range cfg.StageThresholds {
		if score >= t.Min {
			stage = t.Stage
			break
		}
	}

	return QualificationResult{
		Score: score,
		Stage: stage,
		Breakdown: Breakdown{
			FitScore:           fit,
			EngagementScore:    engagement,
			FitWeight:          cfg.FitWeight,
			EngagementWeight:   cfg.EngagementWeight,
			WeightedFit:        weightedFit,
			WeightedEngagement: weightedEngagement,
			Formula: fmt.Sprintf("round(%d * %.2f + %d * %.2f) = %d",
				fit, cfg.FitWeight, engagement, cfg.EngagementWeight, score),
			Version: scoreVersion,
		},
	}
}

// CalculateLeadScores runs the full scoring pass for one lead.
// Scoring without a configuration is meaningless, so a nil config fails loudly.
func CalculateLeadScores(in LeadInput, cfg *settings.ScoringConfig) (Result, error) {
	if cfg == nil {
		return Result{}, apperr.Configuration("scoring config is required").WithOp(settings.KeyScoringConfig)
	}

	fit := CalculateFitScore(in.FleetSize, in.CountryCode, cfg)
	engagement := CalculateEngagementScore(in.Message, in.Phone, in.Metadata, cfg)
	qualification := CalculateQualificationScore(fit, engagement, cfg)

	return Result{
		FitScore:           fit,
		EngagementScore:    engagement,
		QualificationScore: qualification.Score,
		Stage:              qualification.Stage,
		Breakdown:          qualification.Breakdown,
	}, nil
}

// bandPoints picks the first band, scanned from most demanding to least, whose
// minimum is met. Bands are pre-sorted by Min descending at config parse time.
func bandPoints(bands []settings.Band, value int) int {
	for _, band := range bands {
		if value >= band.Min {
			return band.Points
		}
	}
	return 0
}

func messageLength(message *string) int {
	if message == nil {
		return 0
	}
	return utf8.RuneCountInString(*message)
}

// roundHalfUp rounds to the nearest integer with .5 going up (69.6 -> 70).
func roundHalfUp(value float64) int {
	return int(math.Floor(value + 0.5))
}
