// Package service orchestrates the lead qualification pipeline: compliance
// gate, scoring, priority, assignment, expansion tagging, persistence and
// notification, in that order.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/assignment"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/priority"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/leads/scoring"
	"leadflow_backend/internal/settings"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/phone"
)

const gdprConsentRequiredMessage = "explicit consent is required for leads from GDPR countries"

// Metadata keys stamped on leads from countries outside the operational
// footprint. Existing caller-provided values are never overwritten.
const (
	metaExpansionOpportunity = "expansion_opportunity"
	metaExpansionCountry     = "expansion_country"
	metaExpansionDetectedAt  = "expansion_detected_at"
)

// LeadRepo is the persistence surface the orchestrator needs.
type LeadRepo interface {
	Create(ctx context.Context, params repository.CreateParams) (domain.Lead, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (domain.Lead, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Lead, int, error)
	UpdateScores(ctx context.Context, tenantID, id uuid.UUID, patch domain.ScorePatch) error
	UpdateAssignment(ctx context.Context, tenantID, id uuid.UUID, assignedTo *uuid.UUID, reason, matchedRule *string) (domain.Lead, error)
	UpdatePriority(ctx context.Context, tenantID, id uuid.UUID, p domain.Priority) error
	TouchActivity(ctx context.Context, tenantID, id uuid.UUID) error
}

// AgentDirectory lists the eligible assignment pool.
type AgentDirectory interface {
	ListActive(ctx context.Context, tenantID uuid.UUID) ([]domain.Agent, error)
}

// CountryChecker answers compliance and market-footprint questions.
type CountryChecker interface {
	IsGDPRCountry(ctx context.Context, code string) (bool, error)
	IsOperational(ctx context.Context, code string) (bool, error)
}

// Settings loads the tenant's parsed rule documents.
type Settings interface {
	ScoringConfig(ctx context.Context, tenantID uuid.UUID) (*settings.ScoringConfig, error)
	PriorityConfig(ctx context.Context, tenantID uuid.UUID) (*settings.PriorityConfig, error)
	AssignmentConfig(ctx context.Context, tenantID uuid.UUID) (*settings.AssignmentConfig, error)
}

// Service is the lead orchestrator.
type Service struct {
	repo      LeadRepo
	agents    AgentDirectory
	countries CountryChecker
	settings  Settings
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
}

func New(repo LeadRepo, directory AgentDirectory, countries CountryChecker, cfg Settings, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		agents:    directory,
		countries: countries,
		settings:  cfg,
		bus:       bus,
		log:       log,
		now:       time.Now,
	}
}

// CreateLeadParams carries intake input plus optional caller overrides.
type CreateLeadParams struct {
	TenantID    uuid.UUID
	Name        string
	Company     *string
	Email       *string
	Phone       *string
	FleetSize   *string
	CountryCode *string
	Message     *string
	Metadata    domain.Metadata
	GDPRConsent *bool
	ConsentIP   *string
	Source      *string

	// Overrides take precedence over the computed pipeline results.
	PriorityOverride   *domain.Priority
	AssignedToOverride *uuid.UUID
	CreatedBy          *uuid.UUID
}

// CreateLead runs the full qualification pipeline and persists the result.
// Configuration problems abort the call; notification failures never do.
func (s *Service) CreateLead(ctx context.Context, params CreateLeadParams) (domain.Lead, error) {
	country := ""
	if params.CountryCode != nil {
		country = *params.CountryCode
	}

	// Compliance gate runs before any scoring work.
	if country != "" {
		gdpr, err := s.countries.IsGDPRCountry(ctx, country)
		if err != nil {
			return domain.Lead{}, err
		}
		if gdpr && !hasExplicitConsent(params) {
			return domain.Lead{}, apperr.Validation(gdprConsentRequiredMessage)
		}
	}

	if params.Phone != nil {
		normalized := phone.NormalizeE164ForCountry(*params.Phone, country)
		params.Phone = &normalized
	}

	scoringCfg, err := s.settings.ScoringConfig(ctx, params.TenantID)
	if err != nil {
		return domain.Lead{}, err
	}
	scores, err := scoring.CalculateLeadScores(scoring.LeadInput{
		FleetSize:   params.FleetSize,
		CountryCode: params.CountryCode,
		Message:     params.Message,
		Phone:       params.Phone,
		Metadata:    params.Metadata,
	}, scoringCfg)
	if err != nil {
		return domain.Lead{}, err
	}

	leadPriority := s.determinePriority(ctx, params.TenantID, scores.QualificationScore)
	if params.PriorityOverride != nil {
		leadPriority = *params.PriorityOverride
	}

	route, pool, err := s.route(ctx, params.TenantID, params.FleetSize, params.CountryCode)
	if err != nil {
		return domain.Lead{}, err
	}
	assignedTo := route.AssignedTo
	assignmentReason := &route.Reason
	matchedRule := route.MatchedRule
	if params.AssignedToOverride != nil {
		assignedTo = params.AssignedToOverride
		reason := "Manually assigned at intake"
		assignmentReason = &reason
		matchedRule = nil
	}

	metadata, err := s.tagExpansion(ctx, params.Metadata, country)
	if err != nil {
		return domain.Lead{}, err
	}

	lead, err := s.repo.Create(ctx, repository.CreateParams{
		TenantID:           params.TenantID,
		Name:               params.Name,
		Company:            params.Company,
		Email:              params.Email,
		Phone:              params.Phone,
		FleetSize:          params.FleetSize,
		CountryCode:        params.CountryCode,
		Message:            params.Message,
		Metadata:           metadata,
		GDPRConsent:        params.GDPRConsent,
		ConsentIP:          params.ConsentIP,
		FitScore:           scores.FitScore,
		EngagementScore:    scores.EngagementScore,
		QualificationScore: scores.QualificationScore,
		LeadStage:          scores.Stage,
		Priority:           leadPriority,
		AssignedTo:         assignedTo,
		AssignmentReason:   assignmentReason,
		MatchedRule:        matchedRule,
		Source:             params.Source,
		CreatedBy:          params.CreatedBy,
	})
	if err != nil {
		return domain.Lead{}, err
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:          events.NewBaseEvent(),
		LeadID:             lead.ID,
		TenantID:           lead.TenantID,
		QualificationScore: lead.QualificationScore,
		LeadStage:          string(lead.LeadStage),
		Priority:           string(lead.Priority),
		AssignedTo:         lead.AssignedTo,
	})
	s.publishAssigned(ctx, lead, pool)

	return lead, nil
}

// Rescore recomputes all three scores from the lead's stored attributes using
// the current scoring rules.
func (s *Service) Rescore(ctx context.Context, tenantID, leadID uuid.UUID) (domain.Lead, error) {
	lead, err := s.repo.GetByID(ctx, tenantID, leadID)
	if err != nil {
		return domain.Lead{}, err
	}

	scoringCfg, err := s.settings.ScoringConfig(ctx, tenantID)
	if err != nil {
		return domain.Lead{}, err
	}
	scores, err := scoring.CalculateLeadScores(scoring.LeadInput{
		FleetSize:   lead.FleetSize,
		CountryCode: lead.CountryCode,
		Message:     lead.Message,
		Phone:       lead.Phone,
		Metadata:    lead.Metadata,
	}, scoringCfg)
	if err != nil {
		return domain.Lead{}, err
	}

	if err := s.repo.UpdateScores(ctx, tenantID, leadID, domain.ScorePatch{
		FitScore:           scores.FitScore,
		EngagementScore:    scores.EngagementScore,
		QualificationScore: scores.QualificationScore,
		LeadStage:          scores.Stage,
	}); err != nil {
		return domain.Lead{}, err
	}
	return s.repo.GetByID(ctx, tenantID, leadID)
}

// Assign re-runs the assignment rule chain for an existing lead.
func (s *Service) Assign(ctx context.Context, tenantID, leadID uuid.UUID) (domain.Lead, error) {
	lead, err := s.repo.GetByID(ctx, tenantID, leadID)
	if err != nil {
		return domain.Lead{}, err
	}

	route, pool, err := s.route(ctx, tenantID, lead.FleetSize, lead.CountryCode)
	if err != nil {
		return domain.Lead{}, err
	}

	updated, err := s.repo.UpdateAssignment(ctx, tenantID, leadID, route.AssignedTo, &route.Reason, route.MatchedRule)
	if err != nil {
		return domain.Lead{}, err
	}
	s.publishAssigned(ctx, updated, pool)
	return updated, nil
}

// ScoreBreakdown computes the per-component score explanation for a lead
// without persisting anything.
func (s *Service) ScoreBreakdown(ctx context.Context, tenantID, leadID uuid.UUID) (scoring.Result, error) {
	lead, err := s.repo.GetByID(ctx, tenantID, leadID)
	if err != nil {
		return scoring.Result{}, err
	}

	scoringCfg, err := s.settings.ScoringConfig(ctx, tenantID)
	if err != nil {
		return scoring.Result{}, err
	}
	return scoring.CalculateLeadScores(scoring.LeadInput{
		FleetSize:   lead.FleetSize,
		CountryCode: lead.CountryCode,
		Message:     lead.Message,
		Phone:       lead.Phone,
		Metadata:    lead.Metadata,
	}, scoringCfg)
}

// SetPriority overrides the computed priority of a lead.
func (s *Service) SetPriority(ctx context.Context, tenantID, leadID uuid.UUID, p domain.Priority) (domain.Lead, error) {
	if err := s.repo.UpdatePriority(ctx, tenantID, leadID, p); err != nil {
		return domain.Lead{}, err
	}
	return s.repo.GetByID(ctx, tenantID, leadID)
}

// TouchActivity records fresh engagement, which also restarts the score
// decay inactivity clock.
func (s *Service) TouchActivity(ctx context.Context, tenantID, leadID uuid.UUID) error {
	return s.repo.TouchActivity(ctx, tenantID, leadID)
}

// Get retrieves one lead.
func (s *Service) Get(ctx context.Context, tenantID, leadID uuid.UUID) (domain.Lead, error) {
	return s.repo.GetByID(ctx, tenantID, leadID)
}

// List returns leads matching the filters plus the total count.
func (s *Service) List(ctx context.Context, params repository.ListParams) ([]domain.Lead, int, error) {
	return s.repo.List(ctx, params)
}

// hasExplicitConsent reports whether the lead carries provable GDPR consent:
// an affirmative flag plus the IP address the consent was given from.
func hasExplicitConsent(params CreateLeadParams) bool {
	if params.GDPRConsent == nil || !*params.GDPRConsent {
		return false
	}
	return params.ConsentIP != nil && *params.ConsentIP != ""
}

// determinePriority classifies the score, falling back to the lowest level
// when the priority rules are missing or broken. Unlike scoring, a broken
// priority config does not abort intake.
func (s *Service) determinePriority(ctx context.Context, tenantID uuid.UUID, score int) domain.Priority {
	cfg, err := s.settings.PriorityConfig(ctx, tenantID)
	if err != nil {
		s.log.Warn("priority config unavailable, defaulting to low", "tenant_id", tenantID, "error", err)
		return domain.PriorityLow
	}
	return priority.Determine(score, cfg)
}

func (s *Service) route(ctx context.Context, tenantID uuid.UUID, fleetSize, countryCode *string) (assignment.Result, []domain.Agent, error) {
	cfg, err := s.settings.AssignmentConfig(ctx, tenantID)
	if err != nil {
		return assignment.Result{}, nil, err
	}
	pool, err := s.agents.ListActive(ctx, tenantID)
	if err != nil {
		return assignment.Result{}, nil, err
	}

	route, err := assignment.AssignToSalesRep(assignment.LeadInput{
		FleetSize:   fleetSize,
		CountryCode: countryCode,
	}, pool, cfg)
	if err != nil {
		return assignment.Result{}, nil, err
	}
	return route, pool, nil
}

// tagExpansion marks leads from non-operational countries as expansion
// opportunities. Keys already present in the metadata win.
func (s *Service) tagExpansion(ctx context.Context, metadata domain.Metadata, country string) (domain.Metadata, error) {
	if country == "" {
		return metadata, nil
	}
	operational, err := s.countries.IsOperational(ctx, country)
	if err != nil {
		return nil, err
	}
	if operational {
		return metadata, nil
	}

	tagged := make(domain.Metadata, len(metadata)+3)
	for k, v := range metadata {
		tagged[k] = v
	}
	if _, ok := tagged[metaExpansionOpportunity]; !ok {
		tagged[metaExpansionOpportunity] = true
	}
	if _, ok := tagged[metaExpansionCountry]; !ok {
		tagged[metaExpansionCountry] = country
	}
	if _, ok := tagged[metaExpansionDetectedAt]; !ok {
		tagged[metaExpansionDetectedAt] = s.now().UTC().Format(time.RFC3339)
	}
	return tagged, nil
}

// publishAssigned emits LeadAssigned when the lead landed on an agent. The
// bus delivers asynchronously, so a failing notification handler never
// surfaces here.
func (s *Service) publishAssigned(ctx context.Context, lead domain.Lead, pool []domain.Agent) {
	if lead.AssignedTo == nil {
		return
	}

	var agent *domain.Agent
	for i := range pool {
		if pool[i].ID == *lead.AssignedTo {
			agent = &pool[i]
			break
		}
	}
	if agent == nil {
		return
	}

	reason := ""
	if lead.AssignmentReason != nil {
		reason = *lead.AssignmentReason
	}
	rule := ""
	if lead.MatchedRule != nil {
		rule = *lead.MatchedRule
	}
	s.bus.Publish(ctx, events.LeadAssigned{
		BaseEvent:        events.NewBaseEvent(),
		LeadID:           lead.ID,
		TenantID:         lead.TenantID,
		AgentID:          agent.ID,
		AgentName:        agent.Name,
		AgentEmail:       agent.Email,
		LeadName:         lead.Name,
		AssignmentReason: reason,
		MatchedRule:      rule,
	})
}
