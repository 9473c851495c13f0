// Package email delivers transactional mail for the lead engine.
package email

import "context"

// Sender delivers lead notifications. Implementations must be safe for
// concurrent use.
type Sender interface {
	SendLeadAssignedEmail(ctx context.Context, toEmail string, data LeadAssignedData) error
}

// LeadAssignedData fills the lead-assigned notification template.
type LeadAssignedData struct {
	AgentName        string
	LeadName         string
	LeadStage        string
	Priority         string
	AssignmentReason string
	LeadURL          string
}
