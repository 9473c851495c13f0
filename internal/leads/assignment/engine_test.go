package assignment

import (
	"testing"

	"github.com/google/uuid"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/settings"
	"leadflow_backend/platform/apperr"
)

const assignmentFixture = `{
  "version": 1,
  "fleet_size_priority": {
    "500+": {
      "title_patterns": ["%enterprise%"],
      "exclude_patterns": ["%junior%"],
      "priority": 1
    }
  },
  "geographic_zones": {
    "gcc": {
      "countries": ["AE", "SA", "QA"],
      "title_patterns": ["%gcc%", "%middle east%"],
      "priority": 1
    },
    "europe": {
      "countries": ["GB", "DE", "FR"],
      "title_patterns": ["%emea%"],
      "priority": 2
    }
  },
  "fallback": {
    "title_pattern": "%sales%"
  }
}`

var (
	idLow  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	idMid  = uuid.MustParse("55555555-5555-5555-5555-555555555555")
	idHigh = uuid.MustParse("99999999-9999-9999-9999-999999999999")
)

func fixtureConfig(t *testing.T, doc string) *settings.AssignmentConfig {
	t.Helper()
	cfg, err := settings.ParseAssignmentConfig([]byte(doc))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return cfg
}

func agent(id uuid.UUID, title string) domain.Agent {
	return domain.Agent{ID: id, Name: "Agent " + id.String()[:4], Title: title, Status: "active"}
}

func strPtr(s string) *string { return &s }

func TestAssignToSalesRep_NilConfigFails(t *testing.T) {
	_, err := AssignToSalesRep(LeadInput{}, []domain.Agent{agent(idLow, "Sales Rep")}, nil)
	if !apperr.Is(err, apperr.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestAssignToSalesRep_EmptyPool(t *testing.T) {
	cfg := fixtureConfig(t, assignmentFixture)

	result, err := AssignToSalesRep(LeadInput{FleetSize: strPtr("500+")}, nil, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AssignedTo != nil {
		t.Fatalf("expected no assignment, got %v", result.AssignedTo)
	}
	if result.Reason != ReasonNoAgents {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
}

func TestAssignToSalesRep_FleetRuleBeatsGeoZone(t *testing.T) {
	cfg := fixtureConfig(t, assignmentFixture)
	pool := []domain.Agent{
		agent(idHigh, "Enterprise Account Executive"),
		agent(idLow, "GCC Sales Manager"),
	}

	result, err := AssignToSalesRep(LeadInput{
		FleetSize:   strPtr("500+"),
		CountryCode: strPtr("AE"),
	}, pool, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.AssignedTo == nil || *result.AssignedTo != idHigh {
		t.Fatalf("expected enterprise agent, got %v", result.AssignedTo)
	}
	if result.MatchedRule == nil || *result.MatchedRule != "500+" {
		t.Fatalf("expected fleet rule to match, got %v", result.MatchedRule)
	}
	if result.Reason != "Fleet size priority rule '500+' matched" {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
}

func TestAssignToSalesRep_ExcludePatternFilters(t *testing.T) {
	cfg := fixtureConfig(t, assignmentFixture)
	pool := []domain.Agent{
		agent(idLow, "Junior Enterprise Rep"),
		agent(idHigh, "Enterprise Account Executive"),
	}

	result, err := AssignToSalesRep(LeadInput{FleetSize: strPtr("500+")}, pool, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AssignedTo == nil || *result.AssignedTo != idHigh {
		t.Fatalf("expected junior agent to be excluded, got %v", result.AssignedTo)
	}
}

func TestAssignToSalesRep_GeoZoneMatch(t *testing.T) {
	cfg := fixtureConfig(t, assignmentFixture)
	pool := []domain.Agent{
		agent(idLow, "EMEA Sales Lead"),
		agent(idHigh, "Middle East Sales Manager"),
	}

	result, err := AssignToSalesRep(LeadInput{
		FleetSize:   strPtr("1-10"),
		CountryCode: strPtr("sa"),
	}, pool, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.AssignedTo == nil || *result.AssignedTo != idHigh {
		t.Fatalf("expected gcc zone agent, got %v", result.AssignedTo)
	}
	if result.MatchedRule == nil || *result.MatchedRule != "gcc" {
		t.Fatalf("expected gcc zone, got %v", result.MatchedRule)
	}
	if result.EligibleEmployeeCount == nil || *result.EligibleEmployeeCount != 1 {
		t.Fatalf("unexpected eligible count: %v", result.EligibleEmployeeCount)
	}
}

func TestAssignToSalesRep_ZoneWithoutStaffDoesNotCascadeToNextZone(t *testing.T) {
	cfg := fixtureConfig(t, assignmentFixture)
	// DE is in the europe zone, but the only agent matches the gcc patterns.
	// The europe zone is the one containing the country; with no europe staff
	// the chain moves on to the fallback, not to another zone.
	pool := []domain.Agent{agent(idLow, "GCC Sales Manager")}

	result, err := AssignToSalesRep(LeadInput{CountryCode: strPtr("DE")}, pool, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.MatchedRule == nil || *result.MatchedRule != RuleFallbackPattern {
		t.Fatalf("expected fallback rule, got %v", result.MatchedRule)
	}
}

func TestAssignToSalesRep_FallbackPattern(t *testing.T) {
	cfg := fixtureConfig(t, assignmentFixture)
	pool := []domain.Agent{
		agent(idMid, "Sales Development Rep"),
		agent(idHigh, "Customer Success Manager"),
	}

	result, err := AssignToSalesRep(LeadInput{FleetSize: strPtr("11-50")}, pool, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.AssignedTo == nil || *result.AssignedTo != idMid {
		t.Fatalf("expected sales-titled agent, got %v", result.AssignedTo)
	}
	if result.MatchedRule == nil || *result.MatchedRule != RuleFallbackPattern {
		t.Fatalf("expected fallback_pattern, got %v", result.MatchedRule)
	}
	if result.Reason != "Fallback assignment rule matched" {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
}

func TestAssignToSalesRep_FallbackEmployeeID(t *testing.T) {
	doc := `{
	  "version": 1,
	  "fleet_size_priority": {},
	  "geographic_zones": {},
	  "fallback": {"employee_id": "` + idMid.String() + `"}
	}`
	cfg := fixtureConfig(t, doc)
	pool := []domain.Agent{
		agent(idLow, "Support Engineer"),
		agent(idMid, "Account Manager"),
	}

	result, err := AssignToSalesRep(LeadInput{}, pool, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AssignedTo == nil || *result.AssignedTo != idMid {
		t.Fatalf("expected the configured employee, got %v", result.AssignedTo)
	}
}

func TestAssignToSalesRep_UltimateFallback(t *testing.T) {
	cfg := fixtureConfig(t, assignmentFixture)
	pool := []domain.Agent{
		agent(idHigh, "Support Engineer"),
		agent(idLow, "Operations Analyst"),
	}

	result, err := AssignToSalesRep(LeadInput{}, pool, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.AssignedTo == nil || *result.AssignedTo != idLow {
		t.Fatalf("expected smallest-id agent, got %v", result.AssignedTo)
	}
	if result.MatchedRule == nil || *result.MatchedRule != RuleUltimateFallback {
		t.Fatalf("expected ultimate_fallback, got %v", result.MatchedRule)
	}
	if result.EligibleEmployeeCount == nil || *result.EligibleEmployeeCount != 2 {
		t.Fatalf("unexpected eligible count: %v", result.EligibleEmployeeCount)
	}
}

func TestAssignToSalesRep_SmallestIDTieBreakIsStable(t *testing.T) {
	cfg := fixtureConfig(t, assignmentFixture)
	pool := []domain.Agent{
		agent(idHigh, "Enterprise Sales Rep"),
		agent(idMid, "Enterprise Sales Rep"),
		agent(idLow, "Enterprise Sales Rep"),
	}
	in := LeadInput{FleetSize: strPtr("500+")}

	for i := 0; i < 5; i++ {
		result, err := AssignToSalesRep(in, pool, cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.AssignedTo == nil || *result.AssignedTo != idLow {
			t.Fatalf("run %d: expected smallest id %s, got %v", i, idLow, result.AssignedTo)
		}
	}
}
