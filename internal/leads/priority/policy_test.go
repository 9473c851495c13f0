package priority

import (
	"testing"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/settings"
)

const priorityFixture = `{
  "version": 1,
  "thresholds": {
    "urgent": {"min": 85},
    "high": {"min": 70},
    "medium": {"min": 40}
  },
  "default": "low"
}`

func fixtureConfig(t *testing.T) *settings.PriorityConfig {
	t.Helper()
	cfg, err := settings.ParsePriorityConfig([]byte(priorityFixture))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return cfg
}

func TestDetermine_ThresholdBoundaries(t *testing.T) {
	cfg := fixtureConfig(t)

	cases := []struct {
		score int
		want  domain.Priority
	}{
		{100, domain.PriorityUrgent},
		{85, domain.PriorityUrgent},
		{84, domain.PriorityHigh},
		{70, domain.PriorityHigh},
		{69, domain.PriorityMedium},
		{40, domain.PriorityMedium},
		{39, domain.PriorityLow},
		{0, domain.PriorityLow},
	}
	for _, tc := range cases {
		if got := Determine(tc.score, cfg); got != tc.want {
			t.Fatalf("score %d: expected %v, got %v", tc.score, tc.want, got)
		}
	}
}

func TestDetermine_NilConfigFallsBackToLow(t *testing.T) {
	if got := Determine(95, nil); got != domain.PriorityLow {
		t.Fatalf("expected low without config, got %v", got)
	}
}

func TestDetermine_ConfiguredDefaultApplies(t *testing.T) {
	doc := `{
	  "version": 1,
	  "thresholds": {"urgent": {"min": 85}},
	  "default": "medium"
	}`
	cfg, err := settings.ParsePriorityConfig([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if got := Determine(10, cfg); got != domain.PriorityMedium {
		t.Fatalf("expected configured default medium, got %v", got)
	}
}
