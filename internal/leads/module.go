// Package leads provides the lead qualification bounded context module.
package leads

import (
	"leadflow_backend/internal/agents"
	"leadflow_backend/internal/countries"
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/leads/handler"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/leads/service"
	"leadflow_backend/internal/settings"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repo
}

// NewModule creates and initializes the leads module.
func NewModule(pool *pgxpool.Pool, settingsSvc *settings.Service, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(
		repo,
		agents.NewRepo(pool),
		countries.New(pool),
		settingsSvc,
		bus,
		log,
	)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for direct access if needed.
func (m *Module) Repository() *repository.Repo {
	return m.repo
}

// RegisterRoutes mounts lead routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public intake endpoint, rate limited upstream.
	ctx.Public.POST("/leads", m.handler.CreatePublicLead)

	ctx.Protected.POST("/leads", m.handler.CreateLead)
	ctx.Protected.GET("/leads", m.handler.ListLeads)
	ctx.Protected.GET("/leads/:id", m.handler.GetLead)
	ctx.Protected.GET("/leads/:id/score-breakdown", m.handler.GetScoreBreakdown)
	ctx.Protected.POST("/leads/:id/rescore", m.handler.RescoreLead)
	ctx.Protected.POST("/leads/:id/assign", m.handler.AssignLead)
	ctx.Protected.POST("/leads/:id/activity", m.handler.TouchActivity)
	ctx.Protected.PATCH("/leads/:id/priority", m.handler.SetPriority)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
