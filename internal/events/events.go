// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadflow_backend/platform/events"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published when a new lead has been scored and persisted.
type LeadCreated struct {
	BaseEvent
	LeadID             uuid.UUID  `json:"leadId"`
	TenantID           uuid.UUID  `json:"tenantId"`
	QualificationScore int        `json:"qualificationScore"`
	LeadStage          string     `json:"leadStage"`
	Priority           string     `json:"priority"`
	AssignedTo         *uuid.UUID `json:"assignedTo,omitempty"`
}

func (e LeadCreated) EventName() string { return "leads.created" }

// LeadAssigned is published when a lead is routed to a sales agent.
// The notification module listens for it and emails the agent best-effort.
type LeadAssigned struct {
	BaseEvent
	LeadID           uuid.UUID `json:"leadId"`
	TenantID         uuid.UUID `json:"tenantId"`
	AgentID          uuid.UUID `json:"agentId"`
	AgentName        string    `json:"agentName"`
	AgentEmail       string    `json:"agentEmail"`
	LeadName         string    `json:"leadName"`
	AssignmentReason string    `json:"assignmentReason"`
	MatchedRule      string    `json:"matchedRule"`
}

func (e LeadAssigned) EventName() string { return "leads.assigned" }

// ScoreDecayCompleted is published after a decay sweep finishes for a tenant.
type ScoreDecayCompleted struct {
	BaseEvent
	TenantID     uuid.UUID `json:"tenantId"`
	Processed    int       `json:"processed"`
	Degraded     int       `json:"degraded"`
	StageChanges int       `json:"stageChanges"`
}

func (e ScoreDecayCompleted) EventName() string { return "leads.score_decay.completed" }
