// Package notification turns domain events into outbound email. It subscribes
// to the bus so the lead pipeline never blocks on, or fails because of, a
// mail server.
package notification

import (
	"context"
	"fmt"

	"leadflow_backend/internal/email"
	"leadflow_backend/internal/events"
	"leadflow_backend/platform/logger"
)

// Module handles lead events and sends the corresponding notifications.
type Module struct {
	sender     email.Sender
	log        *logger.Logger
	appBaseURL string
}

func New(sender email.Sender, log *logger.Logger, appBaseURL string) *Module {
	return &Module{sender: sender, log: log, appBaseURL: appBaseURL}
}

// RegisterHandlers subscribes to the lead events this module reacts to.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.LeadAssigned{}.EventName(), m)
}

// Handle dispatches an event to its notification. Errors are returned so the
// bus can log them; delivery stays best-effort because the bus runs handlers
// asynchronously.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadAssigned:
		return m.handleLeadAssigned(ctx, e)
	default:
		return nil
	}
}

func (m *Module) handleLeadAssigned(ctx context.Context, e events.LeadAssigned) error {
	if m.sender == nil {
		m.log.Debug("no email sender configured, skipping lead assigned notification",
			"lead_id", e.LeadID)
		return nil
	}
	if e.AgentEmail == "" {
		return nil
	}

	err := m.sender.SendLeadAssignedEmail(ctx, e.AgentEmail, email.LeadAssignedData{
		AgentName:        e.AgentName,
		LeadName:         e.LeadName,
		AssignmentReason: e.AssignmentReason,
		LeadURL:          fmt.Sprintf("%s/leads/%s", m.appBaseURL, e.LeadID),
	})
	if err != nil {
		return fmt.Errorf("send lead assigned email: %w", err)
	}

	m.log.Info("lead assigned notification sent",
		"lead_id", e.LeadID, "agent_id", e.AgentID)
	return nil
}
