package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/settings"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
)

const scoringDoc = `{
  "version": 1,
  "fleet_size_points": {"1-10": 10, "500+": 40, "unknown": 5},
  "country_tier_points": {
    "tier_1": {"countries": ["AE"], "points": 20},
    "tier_3": {"countries": ["US"], "points": 0}
  },
  "message_length_thresholds": {"brief": {"min": 20, "points": 10}},
  "phone_points": {"provided": 20, "missing": 0},
  "page_views_thresholds": {"low": {"min": 1, "points": 5}},
  "time_on_site_thresholds": {"low": {"min": 30, "points": 5}},
  "qualification_weights": {"fit": 0.6, "engagement": 0.4},
  "qualification_stage_thresholds": {
    "sales_qualified": 70, "marketing_qualified": 40, "top_of_funnel": 0
  }
}`

const priorityDoc = `{
  "version": 1,
  "thresholds": {"urgent": {"min": 85}, "high": {"min": 70}, "medium": {"min": 40}},
  "default": "low"
}`

const assignmentDoc = `{
  "version": 1,
  "fleet_size_priority": {
    "500+": {"title_patterns": ["%enterprise%"], "priority": 1}
  },
  "geographic_zones": {
    "gcc": {"countries": ["AE"], "title_patterns": ["%gcc%"], "priority": 1}
  },
  "fallback": {"title_pattern": "%sales%"}
}`

type fakeRepo struct {
	created  []repository.CreateParams
	leads    map[uuid.UUID]domain.Lead
	patches  map[uuid.UUID]domain.ScorePatch
	touched  []uuid.UUID
	assigned []uuid.UUID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		leads:   make(map[uuid.UUID]domain.Lead),
		patches: make(map[uuid.UUID]domain.ScorePatch),
	}
}

func (f *fakeRepo) Create(_ context.Context, params repository.CreateParams) (domain.Lead, error) {
	f.created = append(f.created, params)
	lead := domain.Lead{
		ID:                 uuid.New(),
		TenantID:           params.TenantID,
		Name:               params.Name,
		FleetSize:          params.FleetSize,
		CountryCode:        params.CountryCode,
		Message:            params.Message,
		Phone:              params.Phone,
		Metadata:           params.Metadata,
		FitScore:           params.FitScore,
		EngagementScore:    params.EngagementScore,
		QualificationScore: params.QualificationScore,
		LeadStage:          params.LeadStage,
		Priority:           params.Priority,
		AssignedTo:         params.AssignedTo,
		AssignmentReason:   params.AssignmentReason,
		MatchedRule:        params.MatchedRule,
	}
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeRepo) GetByID(_ context.Context, _, id uuid.UUID) (domain.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, nil
}

func (f *fakeRepo) List(_ context.Context, _ repository.ListParams) ([]domain.Lead, int, error) {
	return nil, 0, nil
}

func (f *fakeRepo) UpdateScores(_ context.Context, _, id uuid.UUID, patch domain.ScorePatch) error {
	f.patches[id] = patch
	lead := f.leads[id]
	lead.FitScore = patch.FitScore
	lead.EngagementScore = patch.EngagementScore
	lead.QualificationScore = patch.QualificationScore
	lead.LeadStage = patch.LeadStage
	f.leads[id] = lead
	return nil
}

func (f *fakeRepo) UpdateAssignment(_ context.Context, _, id uuid.UUID, assignedTo *uuid.UUID, reason, matchedRule *string) (domain.Lead, error) {
	f.assigned = append(f.assigned, id)
	lead := f.leads[id]
	lead.AssignedTo = assignedTo
	lead.AssignmentReason = reason
	lead.MatchedRule = matchedRule
	f.leads[id] = lead
	return lead, nil
}

func (f *fakeRepo) UpdatePriority(_ context.Context, _, id uuid.UUID, p domain.Priority) error {
	lead := f.leads[id]
	lead.Priority = p
	f.leads[id] = lead
	return nil
}

func (f *fakeRepo) TouchActivity(_ context.Context, _, id uuid.UUID) error {
	f.touched = append(f.touched, id)
	return nil
}

type fakeDirectory struct {
	pool []domain.Agent
}

func (f *fakeDirectory) ListActive(context.Context, uuid.UUID) ([]domain.Agent, error) {
	return f.pool, nil
}

type fakeCountries struct {
	gdpr        map[string]bool
	operational map[string]bool
}

func (f *fakeCountries) IsGDPRCountry(_ context.Context, code string) (bool, error) {
	return f.gdpr[code], nil
}

func (f *fakeCountries) IsOperational(_ context.Context, code string) (bool, error) {
	return f.operational[code], nil
}

type fakeConfigs struct {
	scoring       *settings.ScoringConfig
	priority      *settings.PriorityConfig
	assignmentCfg *settings.AssignmentConfig
	priorityErr   error
	assignmentErr error
}

func (f *fakeConfigs) ScoringConfig(context.Context, uuid.UUID) (*settings.ScoringConfig, error) {
	return f.scoring, nil
}

func (f *fakeConfigs) PriorityConfig(context.Context, uuid.UUID) (*settings.PriorityConfig, error) {
	if f.priorityErr != nil {
		return nil, f.priorityErr
	}
	return f.priority, nil
}

func (f *fakeConfigs) AssignmentConfig(context.Context, uuid.UUID) (*settings.AssignmentConfig, error) {
	if f.assignmentErr != nil {
		return nil, f.assignmentErr
	}
	return f.assignmentCfg, nil
}

// captureBus records published events synchronously.
type captureBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *captureBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *captureBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *captureBus) Subscribe(string, events.Handler) {}

func (b *captureBus) byName(name string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, e := range b.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	svc       *Service
	repo      *fakeRepo
	bus       *captureBus
	configs   *fakeConfigs
	directory *fakeDirectory
	countries *fakeCountries
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	scoringCfg, err := settings.ParseScoringConfig([]byte(scoringDoc))
	if err != nil {
		t.Fatalf("parse scoring doc: %v", err)
	}
	priorityCfg, err := settings.ParsePriorityConfig([]byte(priorityDoc))
	if err != nil {
		t.Fatalf("parse priority doc: %v", err)
	}
	assignmentCfg, err := settings.ParseAssignmentConfig([]byte(assignmentDoc))
	if err != nil {
		t.Fatalf("parse assignment doc: %v", err)
	}

	h := &harness{
		repo: newFakeRepo(),
		bus:  &captureBus{},
		configs: &fakeConfigs{
			scoring:       scoringCfg,
			priority:      priorityCfg,
			assignmentCfg: assignmentCfg,
		},
		directory: &fakeDirectory{},
		countries: &fakeCountries{
			gdpr:        map[string]bool{"DE": true, "FR": true},
			operational: map[string]bool{"AE": true, "DE": true, "US": false},
		},
	}
	h.svc = New(h.repo, h.directory, h.countries, h.configs, h.bus, logger.New("test"))
	h.svc.now = func() time.Time {
		return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	}
	return h
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func enterpriseAgent(id uuid.UUID) domain.Agent {
	return domain.Agent{ID: id, Name: "Dana Reed", Email: "dana@example.com", Title: "Enterprise Account Executive", Status: "active"}
}

func TestCreateLead_GDPRCountryRequiresConsent(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateLead(context.Background(), CreateLeadParams{
		TenantID:    uuid.New(),
		Name:        "Acme GmbH",
		CountryCode: strPtr("DE"),
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(h.repo.created) != 0 {
		t.Fatalf("rejected lead must not be persisted")
	}

	// Explicit false is rejected the same as absent.
	_, err = h.svc.CreateLead(context.Background(), CreateLeadParams{
		TenantID:    uuid.New(),
		Name:        "Acme GmbH",
		CountryCode: strPtr("DE"),
		GDPRConsent: boolPtr(false),
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for explicit false, got %v", err)
	}
}

func TestCreateLead_GDPRCountryWithConsentAndIPProceeds(t *testing.T) {
	h := newHarness(t)

	lead, err := h.svc.CreateLead(context.Background(), CreateLeadParams{
		TenantID:    uuid.New(),
		Name:        "Acme GmbH",
		CountryCode: strPtr("DE"),
		GDPRConsent: boolPtr(true),
		ConsentIP:   strPtr("203.0.113.7"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead.Name != "Acme GmbH" {
		t.Fatalf("unexpected lead: %+v", lead)
	}
}

func TestCreateLead_GDPRConsentRequiresRecordedIP(t *testing.T) {
	h := newHarness(t)

	// Consent without the IP it was given from is not provable consent.
	_, err := h.svc.CreateLead(context.Background(), CreateLeadParams{
		TenantID:    uuid.New(),
		Name:        "Acme GmbH",
		CountryCode: strPtr("DE"),
		GDPRConsent: boolPtr(true),
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error without consent IP, got %v", err)
	}

	_, err = h.svc.CreateLead(context.Background(), CreateLeadParams{
		TenantID:    uuid.New(),
		Name:        "Acme GmbH",
		CountryCode: strPtr("DE"),
		GDPRConsent: boolPtr(true),
		ConsentIP:   strPtr(""),
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for empty consent IP, got %v", err)
	}
	if len(h.repo.created) != 0 {
		t.Fatalf("rejected lead must not be persisted, got %d", len(h.repo.created))
	}
}

func TestCreateLead_NonGDPRCountrySkipsConsentGate(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateLead(context.Background(), CreateLeadParams{
		TenantID:    uuid.New(),
		Name:        "Desert Fleet LLC",
		CountryCode: strPtr("AE"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.repo.created) != 1 {
		t.Fatalf("expected one persisted lead, got %d", len(h.repo.created))
	}
}

func TestCreateLead_ScoresAndStagePersisted(t *testing.T) {
	h := newHarness(t)

	lead, err := h.svc.CreateLead(context.Background(), CreateLeadParams{
		TenantID:    uuid.New(),
		Name:        "Desert Fleet LLC",
		FleetSize:   strPtr("500+"),
		CountryCode: strPtr("AE"),
		Message:     strPtr("we operate a large delivery fleet and need routing"),
		Metadata:    domain.Metadata{"page_views": 3, "time_on_site": 45},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// fit 60 (40 fleet + 20 country), engagement 20 (10 message + 5 + 5),
	// qualification round(36 + 8) = 44.
	if lead.FitScore != 60 || lead.EngagementScore != 20 || lead.QualificationScore != 44 {
		t.Fatalf("unexpected scores: %d/%d/%d", lead.FitScore, lead.EngagementScore, lead.QualificationScore)
	}
	if lead.LeadStage != domain.StageMarketingQualified {
		t.Fatalf("expected marketing_qualified, got %v", lead.LeadStage)
	}
	if lead.Priority != domain.PriorityMedium {
		t.Fatalf("expected medium priority, got %v", lead.Priority)
	}

	created := h.bus.byName("leads.created")
	if len(created) != 1 {
		t.Fatalf("expected one created event, got %d", len(created))
	}
}

func TestCreateLead_BrokenPriorityConfigDefaultsToLow(t *testing.T) {
	h := newHarness(t)
	h.configs.priorityErr = apperr.Configuration("priority rules corrupted")

	lead, err := h.svc.CreateLead(context.Background(), CreateLeadParams{
		TenantID:  uuid.New(),
		Name:      "Quiet Co",
		FleetSize: strPtr("500+"),
	})
	if err != nil {
		t.Fatalf("priority config problems must not abort intake: %v", err)
	}
	if lead.Priority != domain.PriorityLow {
		t.Fatalf("expected low fallback priority, got %v", lead.Priority)
	}
}

func TestCreateLead_BrokenAssignmentConfigAborts(t *testing.T) {
	h := newHarness(t)
	h.configs.assignmentErr = apperr.Configuration("assignment rules corrupted")

	_, err := h.svc.CreateLead(context.Background(), CreateLeadParams{
		TenantID: uuid.New(),
		Name:     "Quiet Co",
	})
	if !apperr.Is(err, apperr.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if len(h.repo.created) != 0 {
		t.Fatalf("lead must not persist when routing cannot run")
	}
}

func TestCreateLead_AssignsAndNotifies(t *testing.T) {
	h := newHarness(t)
	agentID := uuid.New()
	h.directory.pool = []domain.Agent{enterpriseAgent(agentID)}

	lead, err := h.svc.CreateLead(context.Background(), CreateLeadParams{
		TenantID:  uuid.New(),
		Name:      "Desert Fleet LLC",
		FleetSize: strPtr("500+"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lead.AssignedTo == nil || *lead.AssignedTo != agentID {
		t.Fatalf("expected assignment to %s, got %v", agentID, lead.AssignedTo)
	}

	assigned := h.bus.byName("leads.assigned")
	if len(assigned) != 1 {
		t.Fatalf("expected one assigned event, got %d", len(assigned))
	}
	e := assigned[0].(events.LeadAssigned)
	if e.AgentEmail != "dana@example.com" || e.LeadName != "Desert Fleet LLC" {
		t.Fatalf("unexpected assigned event: %+v", e)
	}
	if e.MatchedRule != "500+" {
		t.Fatalf("expected fleet rule in event, got %q", e.MatchedRule)
	}
}

func TestCreateLead_NoAgentsLeavesLeadUnassigned(t *testing.T) {
	h := newHarness(t)

	lead, err := h.svc.CreateLead(context.Background(), CreateLeadParams{
		TenantID: uuid.New(),
		Name:     "Orphan Lead",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lead.AssignedTo != nil {
		t.Fatalf("expected unassigned lead, got %v", lead.AssignedTo)
	}
	if lead.AssignmentReason == nil || *lead.AssignmentReason != "No active employees available for assignment" {
		t.Fatalf("unexpected reason: %v", lead.AssignmentReason)
	}
	if got := h.bus.byName("leads.assigned"); len(got) != 0 {
		t.Fatalf("no assigned event expected, got %d", len(got))
	}
}

func TestCreateLead_ManualAssignmentOverride(t *testing.T) {
	h := newHarness(t)
	autoID := uuid.New()
	h.directory.pool = []domain.Agent{enterpriseAgent(autoID)}
	manualID := uuid.New()

	lead, err := h.svc.CreateLead(context.Background(), CreateLeadParams{
		TenantID:           uuid.New(),
		Name:               "Handpicked Inc",
		FleetSize:          strPtr("500+"),
		AssignedToOverride: &manualID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lead.AssignedTo == nil || *lead.AssignedTo != manualID {
		t.Fatalf("expected manual assignee, got %v", lead.AssignedTo)
	}
	if lead.AssignmentReason == nil || *lead.AssignmentReason != "Manually assigned at intake" {
		t.Fatalf("unexpected reason: %v", lead.AssignmentReason)
	}
	if lead.MatchedRule != nil {
		t.Fatalf("manual assignment carries no matched rule, got %v", lead.MatchedRule)
	}
}

func TestCreateLead_PriorityOverride(t *testing.T) {
	h := newHarness(t)
	urgent := domain.PriorityUrgent

	lead, err := h.svc.CreateLead(context.Background(), CreateLeadParams{
		TenantID:         uuid.New(),
		Name:             "VIP Prospect",
		PriorityOverride: &urgent,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead.Priority != domain.PriorityUrgent {
		t.Fatalf("expected urgent override, got %v", lead.Priority)
	}
}

func TestCreateLead_TagsExpansionOpportunity(t *testing.T) {
	h := newHarness(t)

	lead, err := h.svc.CreateLead(context.Background(), CreateLeadParams{
		TenantID:    uuid.New(),
		Name:        "Frontier Logistics",
		CountryCode: strPtr("US"),
		Metadata:    domain.Metadata{"utm_source": "webinar"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lead.Metadata["expansion_opportunity"] != true {
		t.Fatalf("expected expansion flag, got %v", lead.Metadata)
	}
	if lead.Metadata["expansion_country"] != "US" {
		t.Fatalf("expected expansion country, got %v", lead.Metadata["expansion_country"])
	}
	if lead.Metadata["expansion_detected_at"] != "2026-08-28T12:00:00Z" {
		t.Fatalf("unexpected detected_at: %v", lead.Metadata["expansion_detected_at"])
	}
	if lead.Metadata["utm_source"] != "webinar" {
		t.Fatalf("caller metadata must survive tagging, got %v", lead.Metadata)
	}
}

func TestCreateLead_ExpansionTagNeverOverwritesCallerKeys(t *testing.T) {
	h := newHarness(t)

	lead, err := h.svc.CreateLead(context.Background(), CreateLeadParams{
		TenantID:    uuid.New(),
		Name:        "Frontier Logistics",
		CountryCode: strPtr("US"),
		Metadata:    domain.Metadata{"expansion_opportunity": false},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead.Metadata["expansion_opportunity"] != false {
		t.Fatalf("caller value must win, got %v", lead.Metadata["expansion_opportunity"])
	}
}

func TestCreateLead_OperationalCountryNotTagged(t *testing.T) {
	h := newHarness(t)

	lead, err := h.svc.CreateLead(context.Background(), CreateLeadParams{
		TenantID:    uuid.New(),
		Name:        "Desert Fleet LLC",
		CountryCode: strPtr("AE"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := lead.Metadata["expansion_opportunity"]; ok {
		t.Fatalf("operational market must not be tagged, got %v", lead.Metadata)
	}
}

func TestRescore_RecomputesFromStoredAttributes(t *testing.T) {
	h := newHarness(t)
	tenantID := uuid.New()

	created, err := h.svc.CreateLead(context.Background(), CreateLeadParams{
		TenantID:  tenantID,
		Name:      "Stale Lead",
		FleetSize: strPtr("1-10"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := h.svc.Rescore(context.Background(), tenantID, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.FitScore != 10 || updated.QualificationScore != 6 {
		t.Fatalf("unexpected rescored values: %d/%d", updated.FitScore, updated.QualificationScore)
	}
	if _, ok := h.repo.patches[created.ID]; !ok {
		t.Fatalf("rescore must persist a score patch")
	}
}

func TestAssign_ReroutesExistingLead(t *testing.T) {
	h := newHarness(t)
	tenantID := uuid.New()

	created, err := h.svc.CreateLead(context.Background(), CreateLeadParams{
		TenantID:  tenantID,
		Name:      "Waiting Lead",
		FleetSize: strPtr("500+"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.AssignedTo != nil {
		t.Fatalf("expected no assignment with an empty pool")
	}

	agentID := uuid.New()
	h.directory.pool = []domain.Agent{enterpriseAgent(agentID)}

	updated, err := h.svc.Assign(context.Background(), tenantID, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.AssignedTo == nil || *updated.AssignedTo != agentID {
		t.Fatalf("expected reassignment to %s, got %v", agentID, updated.AssignedTo)
	}
	if len(h.bus.byName("leads.assigned")) != 1 {
		t.Fatalf("expected one assigned event after rerouting")
	}
}
