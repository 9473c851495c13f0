// Package repository persists leads in Postgres. All queries are tenant
// scoped; a lead from another tenant is indistinguishable from a missing one.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/platform/apperr"
)

const leadNotFoundMessage = "lead not found"

const leadColumns = `id, tenant_id, name, company, email, phone, fleet_size, country_code,
	message, metadata, gdpr_consent, consent_ip, fit_score, engagement_score,
	qualification_score, lead_stage, priority, assigned_to, assignment_reason,
	matched_rule, source, last_activity_at, score_decayed_at, created_by,
	created_at, updated_at`

// Repo implements the lead repository.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new lead repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// CreateParams holds everything needed to insert a scored, routed lead.
type CreateParams struct {
	TenantID           uuid.UUID
	Name               string
	Company            *string
	Email              *string
	Phone              *string
	FleetSize          *string
	CountryCode        *string
	Message            *string
	Metadata           domain.Metadata
	GDPRConsent        *bool
	ConsentIP          *string
	FitScore           int
	EngagementScore    int
	QualificationScore int
	LeadStage          domain.LeadStage
	Priority           domain.Priority
	AssignedTo         *uuid.UUID
	AssignmentReason   *string
	MatchedRule        *string
	Source             *string
	CreatedBy          *uuid.UUID
}

// Create inserts a lead and returns the stored row.
func (r *Repo) Create(ctx context.Context, params CreateParams) (domain.Lead, error) {
	query := `
		INSERT INTO leads (tenant_id, name, company, email, phone, fleet_size,
			country_code, message, metadata, gdpr_consent, consent_ip,
			fit_score, engagement_score, qualification_score, lead_stage,
			priority, assigned_to, assignment_reason, matched_rule, source,
			last_activity_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, now(), $21)
		RETURNING ` + leadColumns

	row := r.pool.QueryRow(ctx, query,
		params.TenantID, params.Name, params.Company, params.Email, params.Phone,
		params.FleetSize, params.CountryCode, params.Message, params.Metadata,
		params.GDPRConsent, params.ConsentIP, params.FitScore,
		params.EngagementScore, params.QualificationScore, params.LeadStage,
		params.Priority, params.AssignedTo, params.AssignmentReason,
		params.MatchedRule, params.Source, params.CreatedBy,
	)
	lead, err := scanLead(row)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("create lead: %w", err)
	}
	return lead, nil
}

// GetByID retrieves a lead by ID within a tenant.
func (r *Repo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1 AND tenant_id = $2`

	lead, err := scanLead(r.pool.QueryRow(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return domain.Lead{}, fmt.Errorf("get lead by id: %w", err)
	}
	return lead, nil
}

// ListParams filters and paginates the lead list.
type ListParams struct {
	TenantID   uuid.UUID
	Stage      *domain.LeadStage
	Priority   *domain.Priority
	AssignedTo *uuid.UUID
	Limit      int
	Offset     int
}

// List returns leads matching the filters plus the total match count.
func (r *Repo) List(ctx context.Context, params ListParams) ([]domain.Lead, int, error) {
	whereClauses := []string{"tenant_id = $1"}
	args := []interface{}{params.TenantID}

	if params.Stage != nil {
		args = append(args, *params.Stage)
		whereClauses = append(whereClauses, fmt.Sprintf("lead_stage = $%d", len(args)))
	}
	if params.Priority != nil {
		args = append(args, *params.Priority)
		whereClauses = append(whereClauses, fmt.Sprintf("priority = $%d", len(args)))
	}
	if params.AssignedTo != nil {
		args = append(args, *params.AssignedTo)
		whereClauses = append(whereClauses, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	where := strings.Join(whereClauses, " AND ")

	var total int
	countQuery := `SELECT count(*) FROM leads WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE %s
		ORDER BY qualification_score DESC, created_at DESC
		LIMIT $%d OFFSET $%d`, leadColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	return leads, total, nil
}

// UpdateScores applies a score patch to one lead.
func (r *Repo) UpdateScores(ctx context.Context, tenantID, id uuid.UUID, patch domain.ScorePatch) error {
	query := `
		UPDATE leads
		SET fit_score = $3,
			engagement_score = $4,
			qualification_score = $5,
			lead_stage = $6,
			score_decayed_at = COALESCE($7, score_decayed_at),
			updated_at = now()
		WHERE id = $1 AND tenant_id = $2`

	result, err := r.pool.Exec(ctx, query, id, tenantID,
		patch.FitScore, patch.EngagementScore, patch.QualificationScore,
		patch.LeadStage, patch.ScoreDecayedAt)
	if err != nil {
		return fmt.Errorf("update lead scores: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMessage)
	}
	return nil
}

// UpdateAssignment records the routing decision on a lead.
func (r *Repo) UpdateAssignment(ctx context.Context, tenantID, id uuid.UUID, assignedTo *uuid.UUID, reason *string, matchedRule *string) (domain.Lead, error) {
	query := `
		UPDATE leads
		SET assigned_to = $3,
			assignment_reason = $4,
			matched_rule = $5,
			updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING ` + leadColumns

	lead, err := scanLead(r.pool.QueryRow(ctx, query, id, tenantID, assignedTo, reason, matchedRule))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return domain.Lead{}, fmt.Errorf("update lead assignment: %w", err)
	}
	return lead, nil
}

// UpdatePriority overrides the computed priority of a lead.
func (r *Repo) UpdatePriority(ctx context.Context, tenantID, id uuid.UUID, priority domain.Priority) error {
	query := `UPDATE leads SET priority = $3, updated_at = now() WHERE id = $1 AND tenant_id = $2`

	result, err := r.pool.Exec(ctx, query, id, tenantID, priority)
	if err != nil {
		return fmt.Errorf("update lead priority: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMessage)
	}
	return nil
}

// TouchActivity stamps the lead's last activity at now.
func (r *Repo) TouchActivity(ctx context.Context, tenantID, id uuid.UUID) error {
	query := `UPDATE leads SET last_activity_at = now(), updated_at = now() WHERE id = $1 AND tenant_id = $2`

	result, err := r.pool.Exec(ctx, query, id, tenantID)
	if err != nil {
		return fmt.Errorf("touch lead activity: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMessage)
	}
	return nil
}

// FindInactiveSince returns leads with no activity and no decay since the
// cutoff. A lead that never had activity counts from its creation time, and a
// decayed lead does not become eligible again until a full inactivity window
// has passed since the last decay.
func (r *Repo) FindInactiveSince(ctx context.Context, tenantID uuid.UUID, before time.Time) ([]domain.Lead, error) {
	query := `SELECT ` + leadColumns + `
		FROM leads
		WHERE tenant_id = $1
		  AND engagement_score > 0
		  AND COALESCE(GREATEST(last_activity_at, score_decayed_at), created_at) < $2
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, tenantID, before)
	if err != nil {
		return nil, fmt.Errorf("find inactive leads: %w", err)
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find inactive leads: %w", err)
	}
	return leads, nil
}

// ListTenantIDs returns every tenant that owns at least one lead.
func (r *Repo) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT tenant_id FROM leads ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("list tenant ids: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tenant ids: %w", err)
	}
	return ids, nil
}

func scanLead(row pgx.Row) (domain.Lead, error) {
	var lead domain.Lead
	err := row.Scan(
		&lead.ID, &lead.TenantID, &lead.Name, &lead.Company, &lead.Email,
		&lead.Phone, &lead.FleetSize, &lead.CountryCode, &lead.Message,
		&lead.Metadata, &lead.GDPRConsent, &lead.ConsentIP, &lead.FitScore,
		&lead.EngagementScore, &lead.QualificationScore, &lead.LeadStage,
		&lead.Priority, &lead.AssignedTo, &lead.AssignmentReason,
		&lead.MatchedRule, &lead.Source, &lead.LastActivityAt,
		&lead.ScoreDecayedAt, &lead.CreatedBy, &lead.CreatedAt, &lead.UpdatedAt,
	)
	return lead, err
}
