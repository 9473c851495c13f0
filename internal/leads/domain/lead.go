// Package domain holds the lead model and its enumerated funnel values.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// LeadStage is the pipeline stage derived from the qualification score.
// The fourth stage, "opportunity", is reached by an explicit conversion step
// outside this engine and never assigned by classification.
type LeadStage string

const (
	StageTopOfFunnel        LeadStage = "top_of_funnel"
	StageMarketingQualified LeadStage = "marketing_qualified"
	StageSalesQualified     LeadStage = "sales_qualified"
	StageOpportunity        LeadStage = "opportunity"
)

// Priority is the advisory urgency tier derived from the qualification score.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ValidPriority reports whether the value is a known priority level.
func ValidPriority(value string) bool {
	switch Priority(value) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Metadata is the open enrichment map attached to a lead. Known keys include
// "page_views" (int) and "time_on_site" (seconds); everything else passes
// through untouched.
type Metadata map[string]any

// PageViews returns metadata.page_views, defaulting to 0 when absent or
// non-numeric. JSON decoding yields float64 for numbers.
func (m Metadata) PageViews() int {
	return m.intValue("page_views")
}

// TimeOnSite returns metadata.time_on_site in seconds, defaulting to 0.
func (m Metadata) TimeOnSite() int {
	return m.intValue("time_on_site")
}

func (m Metadata) intValue(key string) int {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Lead is the engine's view of a lead record. Persistence owns the canonical
// row; the engine reads it as a value and computes next-state fields.
type Lead struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	Name               string
	Company            *string
	Email              *string
	Phone              *string
	FleetSize          *string
	CountryCode        *string
	Message            *string
	Metadata           Metadata
	GDPRConsent        *bool
	ConsentIP          *string
	FitScore           int
	EngagementScore    int
	QualificationScore int
	LeadStage          LeadStage
	Priority           Priority
	AssignedTo         *uuid.UUID
	AssignmentReason   *string
	MatchedRule        *string
	Source             *string
	LastActivityAt     *time.Time
	ScoreDecayedAt     *time.Time
	CreatedBy          *uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ScorePatch is a partial update of a lead's score fields, applied after a
// rescore or a decay sweep without touching the rest of the record.
type ScorePatch struct {
	FitScore           int
	EngagementScore    int
	QualificationScore int
	LeadStage          LeadStage
	ScoreDecayedAt     *time.Time
}

// Agent is a sales agent eligible for lead assignment.
type Agent struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Title  string    `json:"title"`
	Status string    `json:"status"`
}

// AgentStatusActive is the only status eligible for assignment.
const AgentStatusActive = "active"
