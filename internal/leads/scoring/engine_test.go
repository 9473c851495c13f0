package scoring

import (
	"strings"
	"testing"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/settings"
	"leadflow_backend/platform/apperr"
)

const scoringFixture = `{
  "version": 1,
  "fleet_size_points": {
    "1-10": 10, "11-50": 20, "51-200": 30, "201-500": 35, "500+": 40, "unknown": 5
  },
  "country_tier_points": {
    "tier_1": {"countries": ["AE", "SA"], "points": 20},
    "tier_2": {"countries": ["GB", "DE"], "points": 10},
    "tier_3": {"countries": ["US"], "points": 0}
  },
  "message_length_thresholds": {
    "detailed": {"min": 200, "points": 30},
    "moderate": {"min": 100, "points": 20},
    "brief": {"min": 20, "points": 10}
  },
  "phone_points": {"provided": 20, "missing": 0},
  "page_views_thresholds": {
    "high": {"min": 10, "points": 25},
    "medium": {"min": 5, "points": 15},
    "low": {"min": 1, "points": 5}
  },
  "time_on_site_thresholds": {
    "high": {"min": 600, "points": 25},
    "medium": {"min": 180, "points": 15},
    "low": {"min": 30, "points": 5}
  },
  "qualification_weights": {"fit": 0.6, "engagement": 0.4},
  "qualification_stage_thresholds": {
    "sales_qualified": 70, "marketing_qualified": 40, "top_of_funnel": 0
  }
}`

func fixtureConfig(t *testing.T) *settings.ScoringConfig {
	t.Helper()
	cfg, err := settings.ParseScoringConfig([]byte(scoringFixture))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return cfg
}

func strPtr(s string) *string { return &s }

func TestCalculateLeadScores_StrongEnterpriseLead(t *testing.T) {
	cfg := fixtureConfig(t)

	result, err := CalculateLeadScores(LeadInput{
		FleetSize:   strPtr("500+"),
		CountryCode: strPtr("AE"),
		Message:     strPtr(strings.Repeat("we need a fleet platform ", 10)),
		Phone:       strPtr("+971501234567"),
		Metadata:    domain.Metadata{"page_views": 12, "time_on_site": 700},
	}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.FitScore != 60 {
		t.Fatalf("expected fit 60, got %d", result.FitScore)
	}
	if result.EngagementScore != 100 {
		t.Fatalf("expected engagement 100, got %d", result.EngagementScore)
	}
	if result.QualificationScore != 76 {
		t.Fatalf("expected qualification 76, got %d", result.QualificationScore)
	}
	if result.Stage != domain.StageSalesQualified {
		t.Fatalf("expected sales_qualified, got %v", result.Stage)
	}
}

func TestCalculateLeadScores_WeakSmallLead(t *testing.T) {
	cfg := fixtureConfig(t)

	result, err := CalculateLeadScores(LeadInput{
		FleetSize:   strPtr("1-10"),
		CountryCode: strPtr("US"),
		Message:     strPtr("just curious about pricing"),
	}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.FitScore != 10 {
		t.Fatalf("expected fit 10, got %d", result.FitScore)
	}
	if result.EngagementScore != 10 {
		t.Fatalf("expected engagement 10, got %d", result.EngagementScore)
	}
	if result.QualificationScore != 10 {
		t.Fatalf("expected qualification 10, got %d", result.QualificationScore)
	}
	if result.Stage != domain.StageTopOfFunnel {
		t.Fatalf("expected top_of_funnel, got %v", result.Stage)
	}
}

func TestCalculateQualificationScore_ExactThresholdLandsInHigherStage(t *testing.T) {
	cfg := fixtureConfig(t)

	result := CalculateQualificationScore(50, 100, cfg)
	if result.Score != 70 {
		t.Fatalf("expected score 70, got %d", result.Score)
	}
	if result.Stage != domain.StageSalesQualified {
		t.Fatalf("expected exact threshold score to qualify, got %v", result.Stage)
	}
}

func TestCalculateQualificationScore_RoundsHalfUp(t *testing.T) {
	cfg := fixtureConfig(t)

	// 60*0.6 + 84*0.4 = 69.6, which must round to 70.
	result := CalculateQualificationScore(60, 84, cfg)
	if result.Score != 70 {
		t.Fatalf("expected 69.6 to round to 70, got %d", result.Score)
	}
	if result.Stage != domain.StageSalesQualified {
		t.Fatalf("expected rounded score to reach sales_qualified, got %v", result.Stage)
	}
}

func TestCalculateEngagementScore_NilInputsBehaveLikeEmpty(t *testing.T) {
	cfg := fixtureConfig(t)

	fromNil := CalculateEngagementScore(nil, nil, nil, cfg)
	empty := ""
	fromEmpty := CalculateEngagementScore(&empty, &empty, domain.Metadata{}, cfg)

	if fromNil != fromEmpty {
		t.Fatalf("nil inputs scored %d, empty inputs scored %d", fromNil, fromEmpty)
	}
	if fromNil != 0 {
		t.Fatalf("expected zero engagement for silent lead, got %d", fromNil)
	}
}

func TestCalculateEngagementScore_BandsAreIndependent(t *testing.T) {
	cfg := fixtureConfig(t)

	// Only page views present: nothing else contributes.
	got := CalculateEngagementScore(nil, nil, domain.Metadata{"page_views": 6}, cfg)
	if got != 15 {
		t.Fatalf("expected 15 from the medium page view band alone, got %d", got)
	}
}

func TestCalculateFitScore_MoreActivityNeverScoresLower(t *testing.T) {
	cfg := fixtureConfig(t)

	low := CalculateEngagementScore(strPtr("short message of some kind"), nil, domain.Metadata{"page_views": 1}, cfg)
	high := CalculateEngagementScore(strPtr("short message of some kind"), nil, domain.Metadata{"page_views": 11}, cfg)
	if high < low {
		t.Fatalf("engagement decreased with more page views: %d -> %d", low, high)
	}
}

func TestCalculateLeadScores_NilConfigFails(t *testing.T) {
	_, err := CalculateLeadScores(LeadInput{}, nil)
	if !apperr.Is(err, apperr.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCalculateLeadScores_Deterministic(t *testing.T) {
	cfg := fixtureConfig(t)
	in := LeadInput{
		FleetSize:   strPtr("51-200"),
		CountryCode: strPtr("DE"),
		Message:     strPtr(strings.Repeat("detail ", 20)),
		Phone:       strPtr("+4915123456789"),
		Metadata:    domain.Metadata{"page_views": 5, "time_on_site": 200},
	}

	first, err := CalculateLeadScores(in, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := CalculateLeadScores(in, cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != first {
			t.Fatalf("scoring is not deterministic: %+v vs %+v", first, again)
		}
	}
}
