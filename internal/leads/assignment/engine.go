// Package assignment routes a lead to one sales agent through an ordered rule
// chain: fleet-size priority, then geographic zone, then the configured
// fallback, then any active agent. Exactly one tier decides the assignment,
// and ties are broken by smallest agent ID so the outcome is deterministic.
package assignment

import (
	"fmt"
	"strings"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/settings"
	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
)

// Matched-rule labels for the two non-configured tiers.
const (
	RuleFallbackPattern  = "fallback_pattern"
	RuleUltimateFallback = "ultimate_fallback"
)

// ReasonNoAgents is returned when the eligible pool is empty.
const ReasonNoAgents = "No active employees available for assignment"

// LeadInput carries the lead attributes the rule chain routes on.
type LeadInput struct {
	FleetSize   *string
	CountryCode *string
}

// Result reports the routing outcome. When an agent is assigned, Reason and
// MatchedRule are always populated; when none is available, AssignedTo is nil
// and Reason explains why.
type Result struct {
	AssignedTo            *uuid.UUID
	Reason                string
	MatchedRule           *string
	EligibleEmployeeCount *int
}

// AssignToSalesRep evaluates the rule chain against the eligible agent pool.
// The function is pure: identical inputs always produce identical output.
func AssignToSalesRep(in LeadInput, agents []domain.Agent, cfg *settings.AssignmentConfig) (Result, error) {
	if cfg == nil {
		return Result{}, apperr.Configuration("assignment rules are required").WithOp(settings.KeyAssignmentRules)
	}

	if len(agents) == 0 {
		return Result{Reason: ReasonNoAgents}, nil
	}

	// Tier 1: fleet-size priority rule for the lead's tier.
	if in.FleetSize != nil {
		if rule, ok := cfg.FleetRules[strings.TrimSpace(*in.FleetSize)]; ok {
			matched := filterAgents(agents, rule.Include, rule.Exclude)
			if len(matched) > 0 {
				return pick(matched, rule.FleetSize,
					fmt.Sprintf("Fleet size priority rule '%s' matched", rule.FleetSize)), nil
			}
		}
	}

	// Tier 2: geographic zone containing the lead's country.
	if in.CountryCode != nil && strings.TrimSpace(*in.CountryCode) != "" {
		for _, zone := range cfg.Zones {
			if !zone.ContainsCountry(*in.CountryCode) {
				continue
			}
			matched := filterAgents(agents, zone.Matchers, nil)
			if len(matched) > 0 {
				return pick(matched, zone.Name,
					fmt.Sprintf("Geographic zone '%s' matched", zone.Name)), nil
			}
			break
		}
	}

	// Tier 3: configured fallback (fixed employee or title pattern).
	if fallback := fallbackAgents(agents, cfg.Fallback); len(fallback) > 0 {
		return pick(fallback, RuleFallbackPattern, "Fallback assignment rule matched"), nil
	}

	// Tier 4: any active agent.
	return pick(agents, RuleUltimateFallback, "Ultimate fallback: first active employee"), nil
}

func fallbackAgents(agents []domain.Agent, fb settings.Fallback) []domain.Agent {
	if fb.EmployeeID != nil {
		for _, agent := range agents {
			if agent.ID == *fb.EmployeeID {
				return []domain.Agent{agent}
			}
		}
		return nil
	}
	if fb.Matcher == nil {
		return nil
	}

	matched := make([]domain.Agent, 0)
	for _, agent := range agents {
		if fb.Matcher.Match(agent.Title) {
			matched = append(matched, agent)
		}
	}
	return matched
}

func filterAgents(agents []domain.Agent, include, exclude []*settings.TitleMatcher) []domain.Agent {
	matched := make([]domain.Agent, 0)
	for _, agent := range agents {
		if !settings.MatchAny(include, agent.Title) {
			continue
		}
		if settings.MatchAny(exclude, agent.Title) {
			continue
		}
		matched = append(matched, agent)
	}
	return matched
}

// pick selects the agent with the smallest ID among candidates. This is
// deterministic, not a rotating round robin.
func pick(candidates []domain.Agent, rule, reason string) Result {
	chosen := candidates[0]
	for _, agent := range candidates[1:] {
		if strings.Compare(agent.ID.String(), chosen.ID.String()) < 0 {
			chosen = agent
		}
	}

	count := len(candidates)
	assigned := chosen.ID
	return Result{
		AssignedTo:            &assigned,
		Reason:                reason,
		MatchedRule:           &rule,
		EligibleEmployeeCount: &count,
	}
}
