// Package intent implements the intent router: it classifies each incoming
// conversational turn and selects the specialized agent that should handle
// it.
//
// Classification is a three-stage pipeline (domain detection, action-intent
// classification, agent selection) where earlier stages may short-circuit
// the rest (the deterministic visualization fast path skips the backend
// entirely). The router never returns an error to its caller: any backend
// failure degrades to the configured default conversational agent with zero
// confidence.
package intent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/adamsih300u/bastion-sub010/pkg/contracts"
	"github.com/adamsih300u/bastion-sub010/pkg/models"
	"github.com/rs/zerolog/log"
)

// stickinessEpsilon is the score band within which the last active agent
// wins ties, preserving conversational continuity instead of thrashing
// between agents turn to turn.
const stickinessEpsilon = 0.1

// chartWords trigger the visualization fast path when the conversation
// already carries data to draw.
var chartWords = []string{"graph", "chart", "plot", "visualize", "visualise", "diagram"}

// Router classifies turns and selects agents. It is safe for concurrent use;
// Classify has no side effects.
type Router struct {
	profiles   []AgentProfile
	classifier contracts.Classifier
	policy     *PermissionPolicy
	fallback   models.AgentType
}

// NewRouter builds a router over the given agent roster. A nil classifier
// routes everything to the fallback agent; a nil policy never auto-grants.
func NewRouter(profiles []AgentProfile, classifier contracts.Classifier, policy *PermissionPolicy) *Router {
	if policy == nil {
		policy = NewPermissionPolicy(nil)
	}
	return &Router{
		profiles:   profiles,
		classifier: classifier,
		policy:     policy,
		fallback:   models.AgentChat,
	}
}

// Classify produces a routing decision for one user message.
func (r *Router) Classify(ctx context.Context, message string, rctx models.RoutingContext) models.RoutingDecision {
	// Stage 0: deterministic fast paths that need no backend call.
	if decision, ok := r.chartFastPath(message, rctx); ok {
		return decision
	}

	// Stages 1 and 2: domain + action intent from the classification backend.
	if r.classifier == nil {
		return r.fallbackDecision("classification_failed: no classifier configured")
	}
	classification, err := r.classifier.Classify(ctx, message, rctx.RecentMessages)
	if err != nil || classification == nil {
		log.Warn().Err(err).Msg("Classification backend failed, routing to fallback agent")
		return r.fallbackDecision("classification_failed")
	}

	// Stage 3: enumerate capable agents and score them.
	matches := r.scoreProfiles(message, classification)
	if len(matches) == 0 {
		return r.fallbackDecision(fmt.Sprintf(
			"no agent matched domain %q action %q", classification.Domain, classification.ActionIntent))
	}

	primary := r.applyStickiness(matches, rctx.LastAgent)

	decision := models.RoutingDecision{
		PrimaryAgent:      primary.AgentType,
		PrimaryConfidence: primary.ConfidenceScore,
		RoutingReasoning: fmt.Sprintf("domain=%s action=%s: %s",
			classification.Domain, classification.ActionIntent, primary.Reasoning),
		RequiresContextPreservation: rctx.LastAgent != "" && rctx.LastAgent != primary.AgentType,
		Domain:                      classification.Domain,
		ActionIntent:                classification.ActionIntent,
	}
	for _, m := range matches {
		if m.AgentType != primary.AgentType && len(decision.AlternativeAgents) < 3 {
			decision.AlternativeAgents = append(decision.AlternativeAgents, m)
		}
	}

	// Permission assessment for the chosen agent.
	if profile, ok := r.profile(primary.AgentType); ok && profile.needsNetwork(classification.ActionIntent) {
		decision.PermissionRequirement = models.PermissionRequirement{
			Required:       true,
			PermissionType: "web_access",
			Reasoning: fmt.Sprintf("%s needs network access for %s intents",
				profile.DisplayName, classification.ActionIntent),
			AutoGrantEligible: r.policy.AutoGrantEligible(primary.AgentType, classification.Domain, classification.ActionIntent),
		}
	}

	return decision
}

// chartFastPath recommends the data agent without a classification call when
// the user asks for a chart over material already in shared memory.
func (r *Router) chartFastPath(message string, rctx models.RoutingContext) (models.RoutingDecision, bool) {
	lower := strings.ToLower(message)
	wantsChart := false
	for _, w := range chartWords {
		if strings.Contains(lower, w) {
			wantsChart = true
			break
		}
	}
	if !wantsChart {
		return models.RoutingDecision{}, false
	}

	mem := rctx.SharedMemory
	hasData := len(mem.ResearchFindings) > 0 || len(mem.SearchResults) > 0 || mem.DataSufficiency.Assessed
	if !hasData {
		return models.RoutingDecision{}, false
	}

	return models.RoutingDecision{
		PrimaryAgent:      models.AgentData,
		PrimaryConfidence: 0.95,
		RoutingReasoning: fmt.Sprintf(
			"visualization fast path: %q requests a chart over data already in shared memory", message),
		RequiresContextPreservation: true,
		Domain:                      "data",
		ActionIntent:                models.IntentAnalysis,
		SuggestedVisualization:      "chart",
	}, true
}

// scoreProfiles scores every profile by capability and keyword overlap with
// the classified domain/action. Results are sorted best-first; zero-score
// profiles are dropped.
func (r *Router) scoreProfiles(message string, c *contracts.Classification) []models.AgentCapabilityMatch {
	lower := strings.ToLower(message)
	var matches []models.AgentCapabilityMatch

	for _, p := range r.profiles {
		var capsMatched []string
		score := 0.0

		for _, d := range p.Domains {
			if d == c.Domain {
				score += 0.4
				capsMatched = append(capsMatched, "domain:"+d)
				break
			}
		}
		for _, a := range p.Capabilities {
			if a == c.ActionIntent {
				score += 0.2
				capsMatched = append(capsMatched, "action:"+string(a))
				break
			}
		}

		keywordHits := 0
		for _, kw := range p.Keywords {
			if strings.Contains(lower, kw) {
				keywordHits++
			}
		}
		if keywordHits > 0 {
			bonus := 0.1 * float64(keywordHits)
			if bonus > 0.3 {
				bonus = 0.3
			}
			score += bonus
			capsMatched = append(capsMatched, fmt.Sprintf("keywords:%d", keywordHits))
		}

		var specialties []string
		for _, sp := range p.Specialties {
			for _, token := range strings.Fields(sp) {
				if len(token) > 3 && strings.Contains(lower, token) {
					specialties = append(specialties, sp)
					score += 0.05
					break
				}
			}
		}

		if score <= 0 {
			continue
		}
		if score > 1 {
			score = 1
		}

		matches = append(matches, models.AgentCapabilityMatch{
			AgentType:               p.Type,
			DisplayName:             p.DisplayName,
			CapabilitiesMatched:     capsMatched,
			ConfidenceScore:         score,
			SpecialtiesRelevant:     specialties,
			CollaborationPermission: p.Collaboration,
			Reasoning:               strings.Join(capsMatched, ", "),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].ConfidenceScore > matches[j].ConfidenceScore
	})
	return matches
}

// applyStickiness prefers the last active agent when it scores within
// stickinessEpsilon of the best candidate.
func (r *Router) applyStickiness(matches []models.AgentCapabilityMatch, lastAgent models.AgentType) models.AgentCapabilityMatch {
	top := matches[0]
	if lastAgent == "" || top.AgentType == lastAgent {
		return top
	}
	for _, m := range matches[1:] {
		if m.AgentType == lastAgent && top.ConfidenceScore-m.ConfidenceScore <= stickinessEpsilon {
			m.Reasoning += " (continuity: retained last active agent)"
			return m
		}
	}
	return top
}

// fallbackDecision is the never-raise failure path: the default
// conversational agent at zero confidence.
func (r *Router) fallbackDecision(reason string) models.RoutingDecision {
	return models.RoutingDecision{
		PrimaryAgent:      r.fallback,
		PrimaryConfidence: 0.0,
		RoutingReasoning:  reason,
	}
}

func (r *Router) profile(t models.AgentType) (AgentProfile, bool) {
	for _, p := range r.profiles {
		if p.Type == t {
			return p, true
		}
	}
	return AgentProfile{}, false
}
