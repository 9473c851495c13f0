// Package transport defines the HTTP request and response shapes for leads.
package transport

import (
	"time"

	"github.com/google/uuid"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/scoring"
)

// PublicCreateLeadRequest is the unauthenticated intake payload, e.g. from a
// marketing site form.
type PublicCreateLeadRequest struct {
	TenantID    uuid.UUID      `json:"tenantId" validate:"required"`
	Name        string         `json:"name" validate:"required,min=1,max=200"`
	Company     *string        `json:"company,omitempty" validate:"omitempty,max=200"`
	Email       *string        `json:"email,omitempty" validate:"omitempty,email,max=320"`
	Phone       *string        `json:"phone,omitempty" validate:"omitempty,max=32"`
	FleetSize   *string        `json:"fleetSize,omitempty" validate:"omitempty,max=20"`
	CountryCode *string        `json:"countryCode,omitempty" validate:"omitempty,len=2"`
	Message     *string        `json:"message,omitempty" validate:"omitempty,max=5000"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	GDPRConsent *bool          `json:"gdprConsent,omitempty"`
	Source      *string        `json:"source,omitempty" validate:"omitempty,max=100"`
}

// CreateLeadRequest is the authenticated intake payload. It additionally
// allows overriding the computed priority and assignment.
type CreateLeadRequest struct {
	Name        string         `json:"name" validate:"required,min=1,max=200"`
	Company     *string        `json:"company,omitempty" validate:"omitempty,max=200"`
	Email       *string        `json:"email,omitempty" validate:"omitempty,email,max=320"`
	Phone       *string        `json:"phone,omitempty" validate:"omitempty,max=32"`
	FleetSize   *string        `json:"fleetSize,omitempty" validate:"omitempty,max=20"`
	CountryCode *string        `json:"countryCode,omitempty" validate:"omitempty,len=2"`
	Message     *string        `json:"message,omitempty" validate:"omitempty,max=5000"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	GDPRConsent *bool          `json:"gdprConsent,omitempty"`
	Source      *string        `json:"source,omitempty" validate:"omitempty,max=100"`
	Priority    *string        `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	AssignedTo  *uuid.UUID     `json:"assignedTo,omitempty"`
}

// SetPriorityRequest overrides a lead's priority.
type SetPriorityRequest struct {
	Priority string `json:"priority" validate:"required,oneof=low medium high urgent"`
}

// ListLeadsRequest filters and paginates the lead list.
type ListLeadsRequest struct {
	Stage      string     `form:"stage" validate:"omitempty,oneof=top_of_funnel marketing_qualified sales_qualified opportunity"`
	Priority   string     `form:"priority" validate:"omitempty,oneof=low medium high urgent"`
	AssignedTo *uuid.UUID `form:"assignedTo"`
	Page       int        `form:"page" validate:"omitempty,min=1"`
	PageSize   int        `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// LeadResponse is the wire representation of a lead.
type LeadResponse struct {
	ID                 uuid.UUID      `json:"id"`
	TenantID           uuid.UUID      `json:"tenantId"`
	Name               string         `json:"name"`
	Company            *string        `json:"company,omitempty"`
	Email              *string        `json:"email,omitempty"`
	Phone              *string        `json:"phone,omitempty"`
	FleetSize          *string        `json:"fleetSize,omitempty"`
	CountryCode        *string        `json:"countryCode,omitempty"`
	Message            *string        `json:"message,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	GDPRConsent        *bool          `json:"gdprConsent,omitempty"`
	FitScore           int            `json:"fitScore"`
	EngagementScore    int            `json:"engagementScore"`
	QualificationScore int            `json:"qualificationScore"`
	LeadStage          string         `json:"leadStage"`
	Priority           string         `json:"priority"`
	AssignedTo         *uuid.UUID     `json:"assignedTo,omitempty"`
	AssignmentReason   *string        `json:"assignmentReason,omitempty"`
	MatchedRule        *string        `json:"matchedRule,omitempty"`
	Source             *string        `json:"source,omitempty"`
	LastActivityAt     *string        `json:"lastActivityAt,omitempty"`
	ScoreDecayedAt     *string        `json:"scoreDecayedAt,omitempty"`
	CreatedAt          string         `json:"createdAt"`
	UpdatedAt          string         `json:"updatedAt"`
}

// LeadListResponse is a paginated lead list.
type LeadListResponse struct {
	Items      []LeadResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}

// ScoreBreakdownResponse explains how a lead's scores were computed.
type ScoreBreakdownResponse struct {
	FitScore           int               `json:"fitScore"`
	EngagementScore    int               `json:"engagementScore"`
	QualificationScore int               `json:"qualificationScore"`
	LeadStage          string            `json:"leadStage"`
	Breakdown          scoring.Breakdown `json:"breakdown"`
}

// ToLeadResponse maps a domain lead onto the wire shape.
func ToLeadResponse(lead domain.Lead) LeadResponse {
	return LeadResponse{
		ID:                 lead.ID,
		TenantID:           lead.TenantID,
		Name:               lead.Name,
		Company:            lead.Company,
		Email:              lead.Email,
		Phone:              lead.Phone,
		FleetSize:          lead.FleetSize,
		CountryCode:        lead.CountryCode,
		Message:            lead.Message,
		Metadata:           lead.Metadata,
		GDPRConsent:        lead.GDPRConsent,
		FitScore:           lead.FitScore,
		EngagementScore:    lead.EngagementScore,
		QualificationScore: lead.QualificationScore,
		LeadStage:          string(lead.LeadStage),
		Priority:           string(lead.Priority),
		AssignedTo:         lead.AssignedTo,
		AssignmentReason:   lead.AssignmentReason,
		MatchedRule:        lead.MatchedRule,
		Source:             lead.Source,
		LastActivityAt:     formatTime(lead.LastActivityAt),
		ScoreDecayedAt:     formatTime(lead.ScoreDecayedAt),
		CreatedAt:          lead.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          lead.UpdatedAt.Format(time.RFC3339),
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(time.RFC3339)
	return &formatted
}
