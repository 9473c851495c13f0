package agents

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/httpkit"
)

// Module exposes the agent pool over HTTP.
type Module struct {
	repo *Repo
}

func NewModule(pool *pgxpool.Pool) *Module {
	return &Module{repo: NewRepo(pool)}
}

func (m *Module) Name() string {
	return "agents"
}

// Repository returns the agent repository for other modules.
func (m *Module) Repository() *Repo {
	return m.repo
}

// RegisterRoutes mounts agent routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/agents", m.listActive)
	ctx.Protected.GET("/agents/:id", m.getAgent)
}

// listActive returns the tenant's active agents.
// GET /api/v1/agents
func (m *Module) listActive(c *gin.Context) {
	tenantID, ok := httpkit.TenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing tenant", nil)
		return
	}

	pool, err := m.repo.ListActive(c.Request.Context(), tenantID)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, gin.H{"items": pool, "total": len(pool)})
}

// getAgent returns one agent of the tenant.
// GET /api/v1/agents/:id
func (m *Module) getAgent(c *gin.Context) {
	tenantID, ok := httpkit.TenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing tenant", nil)
		return
	}
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid agent id", nil)
		return
	}

	agent, err := m.repo.GetByID(c.Request.Context(), tenantID, agentID)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, agent)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
