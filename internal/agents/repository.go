// Package agents exposes the pool of sales employees that leads can be
// routed to.
package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/platform/apperr"
)

const agentNotFoundMessage = "agent not found"

// Repo reads agents from the users table.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ListActive returns the tenant's active agents ordered by ID, which keeps
// downstream tie-breaking stable across calls.
func (r *Repo) ListActive(ctx context.Context, tenantID uuid.UUID) ([]domain.Agent, error) {
	query := `
		SELECT id, name, email, title, status
		FROM users
		WHERE tenant_id = $1 AND status = $2
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query, tenantID, domain.AgentStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active agents: %w", err)
	}
	defer rows.Close()

	agents := make([]domain.Agent, 0)
	for rows.Next() {
		var agent domain.Agent
		if err := rows.Scan(&agent.ID, &agent.Name, &agent.Email, &agent.Title, &agent.Status); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active agents: %w", err)
	}
	return agents, nil
}

// GetByID retrieves one agent within a tenant.
func (r *Repo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (domain.Agent, error) {
	query := `SELECT id, name, email, title, status FROM users WHERE id = $1 AND tenant_id = $2`

	var agent domain.Agent
	if err := r.pool.QueryRow(ctx, query, id, tenantID).Scan(
		&agent.ID, &agent.Name, &agent.Email, &agent.Title, &agent.Status,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Agent{}, apperr.NotFound(agentNotFoundMessage)
		}
		return domain.Agent{}, fmt.Errorf("get agent by id: %w", err)
	}
	return agent, nil
}
