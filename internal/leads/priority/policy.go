// Package priority classifies a qualification score into an advisory urgency
// tier. Unlike scoring, this policy is resilient: priority is advisory
// metadata, not a compliance gate, so a missing or broken configuration
// degrades to a safe default instead of failing the lead.
package priority

import (
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/settings"
)

// Determine returns the priority level for a qualification score.
// Thresholds are scanned from the highest minimum down; the first satisfied
// level wins. With no match the configured default applies, and with no
// usable config at all the policy falls back to low.
func Determine(score int, cfg *settings.PriorityConfig) domain.Priority {
	if cfg == nil {
		return domain.PriorityLow
	}

	for _, t := range cfg.Thresholds {
		if score >= t.Min {
			return t.Level
		}
	}

	if cfg.Default != "" {
		return cfg.Default
	}
	return domain.PriorityLow
}
