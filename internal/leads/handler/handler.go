// Package handler exposes the lead pipeline over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/leads/service"
	"leadflow_backend/internal/leads/transport"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid lead id"

	defaultPageSize = 25
)

// Handler handles HTTP requests for leads.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new leads handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// CreatePublicLead ingests a lead from an unauthenticated source.
// POST /api/v1/public/leads
func (h *Handler) CreatePublicLead(c *gin.Context) {
	var req transport.PublicCreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	params := service.CreateLeadParams{
		TenantID:    req.TenantID,
		Name:        req.Name,
		Company:     req.Company,
		Email:       req.Email,
		Phone:       req.Phone,
		FleetSize:   req.FleetSize,
		CountryCode: req.CountryCode,
		Message:     req.Message,
		Metadata:    req.Metadata,
		GDPRConsent: req.GDPRConsent,
		Source:      req.Source,
	}
	if req.GDPRConsent != nil && *req.GDPRConsent {
		ip := c.ClientIP()
		params.ConsentIP = &ip
	}

	lead, err := h.svc.CreateLead(c.Request.Context(), params)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToLeadResponse(lead))
}

// CreateLead ingests a lead on behalf of an authenticated user.
// POST /api/v1/leads
func (h *Handler) CreateLead(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	tenantID, ok := httpkit.TenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing tenant", nil)
		return
	}

	params := service.CreateLeadParams{
		TenantID:           tenantID,
		Name:               req.Name,
		Company:            req.Company,
		Email:              req.Email,
		Phone:              req.Phone,
		FleetSize:          req.FleetSize,
		CountryCode:        req.CountryCode,
		Message:            req.Message,
		Metadata:           req.Metadata,
		GDPRConsent:        req.GDPRConsent,
		Source:             req.Source,
		AssignedToOverride: req.AssignedTo,
	}
	if req.Priority != nil {
		p := domain.Priority(*req.Priority)
		params.PriorityOverride = &p
	}
	if req.GDPRConsent != nil && *req.GDPRConsent {
		ip := c.ClientIP()
		params.ConsentIP = &ip
	}
	if userID, ok := httpkit.UserID(c); ok {
		params.CreatedBy = &userID
	}

	lead, err := h.svc.CreateLead(c.Request.Context(), params)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToLeadResponse(lead))
}

// ListLeads retrieves leads with filters and pagination.
// GET /api/v1/leads
func (h *Handler) ListLeads(c *gin.Context) {
	var req transport.ListLeadsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	tenantID, ok := httpkit.TenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing tenant", nil)
		return
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	params := repository.ListParams{
		TenantID:   tenantID,
		AssignedTo: req.AssignedTo,
		Limit:      pageSize,
		Offset:     (page - 1) * pageSize,
	}
	if req.Stage != "" {
		stage := domain.LeadStage(req.Stage)
		params.Stage = &stage
	}
	if req.Priority != "" {
		priority := domain.Priority(req.Priority)
		params.Priority = &priority
	}

	leads, total, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}

	items := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		items = append(items, transport.ToLeadResponse(lead))
	}
	httpkit.OK(c, transport.LeadListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	})
}

// GetLead retrieves a single lead.
// GET /api/v1/leads/:id
func (h *Handler) GetLead(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	lead, err := h.svc.Get(c.Request.Context(), tenantID, leadID)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

// RescoreLead recomputes the lead's scores with the current rules.
// POST /api/v1/leads/:id/rescore
func (h *Handler) RescoreLead(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	lead, err := h.svc.Rescore(c.Request.Context(), tenantID, leadID)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

// AssignLead re-runs the assignment rule chain for the lead.
// POST /api/v1/leads/:id/assign
func (h *Handler) AssignLead(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	lead, err := h.svc.Assign(c.Request.Context(), tenantID, leadID)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

// GetScoreBreakdown explains the lead's current scores without persisting.
// GET /api/v1/leads/:id/score-breakdown
func (h *Handler) GetScoreBreakdown(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	result, err := h.svc.ScoreBreakdown(c.Request.Context(), tenantID, leadID)
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, transport.ScoreBreakdownResponse{
		FitScore:           result.FitScore,
		EngagementScore:    result.EngagementScore,
		QualificationScore: result.QualificationScore,
		LeadStage:          string(result.Stage),
		Breakdown:          result.Breakdown,
	})
}

// SetPriority overrides the computed priority of a lead.
// PATCH /api/v1/leads/:id/priority
func (h *Handler) SetPriority(c *gin.Context) {
	var req transport.SetPriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	lead, err := h.svc.SetPriority(c.Request.Context(), tenantID, leadID, domain.Priority(req.Priority))
	if err != nil {
		httpkit.DomainError(c, err)
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

// TouchActivity records engagement on the lead, restarting the decay clock.
// POST /api/v1/leads/:id/activity
func (h *Handler) TouchActivity(c *gin.Context) {
	tenantID, leadID, ok := h.leadScope(c)
	if !ok {
		return
	}

	if err := h.svc.TouchActivity(c.Request.Context(), tenantID, leadID); err != nil {
		httpkit.DomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) leadScope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.Nil, uuid.Nil, false
	}
	tenantID, ok := httpkit.TenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing tenant", nil)
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, leadID, true
}
