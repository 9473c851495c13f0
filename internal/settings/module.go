package settings

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/httpkit"
)

// Module exposes the rule documents over HTTP so tenants can inspect and tune
// their scoring, priority, assignment and decay configuration.
type Module struct {
	service *Service
}

func NewModule(svc *Service) *Module {
	return &Module{service: svc}
}

func (m *Module) Name() string {
	return "settings"
}

// Service returns the settings service for other modules.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts settings routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/settings/:key", m.getSetting)
	ctx.Protected.PUT("/settings/:key", m.updateSetting)
}

// getSetting returns the effective (tenant or global) rule document.
// GET /api/v1/settings/:key
func (m *Module) getSetting(c *gin.Context) {
	tenantID, ok := httpkit.TenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing tenant", nil)
		return
	}

	raw, err := m.service.Raw(c.Request.Context(), tenantID, c.Param("key"))
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, gin.H{"key": c.Param("key"), "value": json.RawMessage(raw)})
}

// updateSetting stores a tenant-specific rule document.
// PUT /api/v1/settings/:key
func (m *Module) updateSetting(c *gin.Context) {
	tenantID, ok := httpkit.TenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing tenant", nil)
		return
	}

	var raw json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid json document", nil)
		return
	}

	if err := m.service.Update(c.Request.Context(), tenantID, c.Param("key"), raw); err != nil {
		httpkit.DomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
