// Package decay degrades engagement scores of leads that have gone quiet.
// The sweep runs per tenant, applies the tenant's decay policy and recomputes
// the qualification score with the fit score left untouched. One failing lead
// never aborts the batch.
package decay

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/scoring"
	"leadflow_backend/internal/settings"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// tenantConcurrency bounds how many tenants are swept in parallel.
const tenantConcurrency = 4

// LeadStore is the persistence surface the sweeper needs.
type LeadStore interface {
	ListTenantIDs(ctx context.Context) ([]uuid.UUID, error)
	FindInactiveSince(ctx context.Context, tenantID uuid.UUID, before time.Time) ([]domain.Lead, error)
	UpdateScores(ctx context.Context, tenantID, leadID uuid.UUID, patch domain.ScorePatch) error
}

// Settings provides the per-tenant decay policy and scoring rules.
type Settings interface {
	DecayConfig(ctx context.Context, tenantID uuid.UUID) (*settings.DecayConfig, error)
	ScoringConfig(ctx context.Context, tenantID uuid.UUID) (*settings.ScoringConfig, error)
}

// LeadDetail records one lead's outcome inside a sweep.
type LeadDetail struct {
	LeadID        uuid.UUID        `json:"lead_id"`
	OldEngagement int              `json:"old_engagement"`
	NewEngagement int              `json:"new_engagement"`
	OldStage      domain.LeadStage `json:"old_stage"`
	NewStage      domain.LeadStage `json:"new_stage"`
	Error         string           `json:"error,omitempty"`
}

// Result summarizes one sweep across all tenants.
type Result struct {
	Processed    int          `json:"processed"`
	Degraded     int          `json:"degraded"`
	StageChanges int          `json:"stage_changes"`
	Failed       int          `json:"failed"`
	Details      []LeadDetail `json:"details,omitempty"`
}

// Sweeper runs the periodic score decay job.
type Sweeper struct {
	store    LeadStore
	settings Settings
	log      *logger.Logger
	now      func() time.Time
}

func NewSweeper(store LeadStore, cfg Settings, log *logger.Logger) *Sweeper {
	return &Sweeper{store: store, settings: cfg, log: log, now: time.Now}
}

// Run sweeps every tenant. Tenant failures are logged and aggregated; the
// sweep keeps going for the remaining tenants.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	tenants, err := s.store.ListTenantIDs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list tenants: %w", err)
	}

	var (
		mu    sync.Mutex
		total Result
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(tenantConcurrency)

	for _, tenantID := range tenants {
		g.Go(func() error {
			res, err := s.DegradeInactiveScores(ctx, tenantID)
			if err != nil {
				s.log.Error("score decay sweep failed for tenant",
					"tenant_id", tenantID, "error", err)
				return nil
			}
			mu.Lock()
			total.Processed += res.Processed
			total.Degraded += res.Degraded
			total.StageChanges += res.StageChanges
			total.Failed += res.Failed
			total.Details = append(total.Details, res.Details...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return total, err
	}
	return total, nil
}

// DegradeInactiveScores sweeps a single tenant. A disabled policy is a no-op.
func (s *Sweeper) DegradeInactiveScores(ctx context.Context, tenantID uuid.UUID) (Result, error) {
	policy, err := s.settings.DecayConfig(ctx, tenantID)
	if err != nil {
		return Result{}, err
	}
	if !policy.Enabled {
		return Result{}, nil
	}

	scoringCfg, err := s.settings.ScoringConfig(ctx, tenantID)
	if err != nil {
		return Result{}, err
	}

	cutoff := s.now().AddDate(0, 0, -policy.InactivityThresholdDays)
	leads, err := s.store.FindInactiveSince(ctx, tenantID, cutoff)
	if err != nil {
		return Result{}, fmt.Errorf("find inactive leads: %w", err)
	}

	res := Result{Processed: len(leads)}
	for _, lead := range leads {
		detail := s.degradeLead(ctx, tenantID, lead, policy, scoringCfg)
		if detail == nil {
			continue
		}
		res.Details = append(res.Details, *detail)
		switch {
		case detail.Error != "":
			res.Failed++
		default:
			res.Degraded++
			if detail.NewStage != detail.OldStage {
				res.StageChanges++
			}
		}
	}

	if res.Degraded > 0 || res.Failed > 0 {
		s.log.Info("score decay sweep finished",
			"tenant_id", tenantID,
			"processed", res.Processed,
			"degraded", res.Degraded,
			"stage_changes", res.StageChanges,
			"failed", res.Failed)
	}
	return res, nil
}

// degradeLead applies the policy to one lead. It returns nil when the
// engagement score is already at or below the floor and nothing changes.
func (s *Sweeper) degradeLead(ctx context.Context, tenantID uuid.UUID, lead domain.Lead, policy *settings.DecayConfig, scoringCfg *settings.ScoringConfig) *LeadDetail {
	newEngagement := Degrade(lead.EngagementScore, policy)
	if newEngagement == lead.EngagementScore {
		return nil
	}

	qual := scoring.CalculateQualificationScore(lead.FitScore, newEngagement, scoringCfg)

	decayedAt := s.now()
	patch := domain.ScorePatch{
		FitScore:           lead.FitScore,
		EngagementScore:    newEngagement,
		QualificationScore: qual.Score,
		LeadStage:          qual.Stage,
		ScoreDecayedAt:     &decayedAt,
	}

	detail := LeadDetail{
		LeadID:        lead.ID,
		OldEngagement: lead.EngagementScore,
		NewEngagement: newEngagement,
		OldStage:      lead.LeadStage,
		NewStage:      qual.Stage,
	}
	if err := s.store.UpdateScores(ctx, tenantID, lead.ID, patch); err != nil {
		s.log.Error("score decay update failed", "lead_id", lead.ID, "error", err)
		detail.Error = err.Error()
		detail.NewEngagement = lead.EngagementScore
		detail.NewStage = lead.LeadStage
	}
	return &detail
}

// Degrade computes the decayed engagement score, clamped to the policy floor
// and never below zero.
func Degrade(engagement int, policy *settings.DecayConfig) int {
	var decayed int
	switch policy.DecayType {
	case settings.DecayPercentage:
		decayed = int(math.Floor(float64(engagement)*(1-policy.DecayValue/100) + 0.5))
	case settings.DecayFlat:
		decayed = engagement - int(policy.DecayValue)
	default:
		return engagement
	}

	floor := policy.MinimumScore
	if floor < 0 {
		floor = 0
	}
	if decayed < floor {
		decayed = floor
	}
	if decayed > engagement {
		// A floor above the current score must not raise it.
		return engagement
	}
	return decayed
}
