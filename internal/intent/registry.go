package intent

import "github.com/adamsih300u/bastion-sub010/pkg/models"

// AgentProfile declares one routable agent: the domains and actions it
// covers, the keywords and specialties that score it, and whether it needs
// network access for a given action intent.
type AgentProfile struct {
	Type          models.AgentType
	DisplayName   string
	Domains       []string
	Capabilities  []models.ActionIntent
	Keywords      []string
	Specialties   []string
	Collaboration models.CollaborationPermission

	// NetworkIntents lists the action intents for which this agent reaches
	// the network (web search, live data). Routing to the agent for one of
	// these intents raises a permission requirement.
	NetworkIntents []models.ActionIntent
}

func (p AgentProfile) needsNetwork(action models.ActionIntent) bool {
	for _, a := range p.NetworkIntents {
		if a == action {
			return true
		}
	}
	return false
}

// DefaultProfiles returns the built-in agent roster. Deployments replace or
// extend this table; the router only reads it.
func DefaultProfiles() []AgentProfile {
	return []AgentProfile{
		{
			Type:          models.AgentChat,
			DisplayName:   "Conversational Assistant",
			Domains:       []string{"general", "conversation"},
			Capabilities:  []models.ActionIntent{models.IntentObservation, models.IntentQuery, models.IntentGeneration},
			Keywords:      []string{"explain", "tell", "help", "chat", "question"},
			Specialties:   []string{"general conversation", "clarification"},
			Collaboration: models.CollaborationOpen,
		},
		{
			Type:          models.AgentResearch,
			DisplayName:   "Research Agent",
			Domains:       []string{"research", "general"},
			Capabilities:  []models.ActionIntent{models.IntentQuery, models.IntentAnalysis, models.IntentObservation},
			Keywords:      []string{"research", "find", "search", "look up", "sources", "investigate", "latest", "news"},
			Specialties:   []string{"web research", "source gathering", "fact finding"},
			Collaboration: models.CollaborationOpen,
			NetworkIntents: []models.ActionIntent{
				models.IntentQuery, models.IntentAnalysis,
			},
		},
		{
			Type:          models.AgentData,
			DisplayName:   "Data Analysis Agent",
			Domains:       []string{"data", "research"},
			Capabilities:  []models.ActionIntent{models.IntentAnalysis, models.IntentGeneration, models.IntentQuery},
			Keywords:      []string{"graph", "chart", "plot", "stats", "statistics", "data", "visualize", "table", "numbers"},
			Specialties:   []string{"charting", "statistics", "tabular analysis"},
			Collaboration: models.CollaborationOpen,
		},
		{
			Type:          models.AgentFiction,
			DisplayName:   "Fiction Editing Agent",
			Domains:       []string{"fiction", "writing"},
			Capabilities:  []models.ActionIntent{models.IntentGeneration, models.IntentModification, models.IntentAnalysis},
			Keywords:      []string{"story", "chapter", "character", "prose", "edit", "manuscript", "plot", "dialogue"},
			Specialties:   []string{"line editing", "story structure", "character continuity"},
			Collaboration: models.CollaborationAskFirst,
		},
		{
			Type:          models.AgentWargame,
			DisplayName:   "Wargaming Agent",
			Domains:       []string{"wargaming", "simulation"},
			Capabilities:  []models.ActionIntent{models.IntentGeneration, models.IntentAnalysis, models.IntentManagement},
			Keywords:      []string{"scenario", "wargame", "simulate", "faction", "campaign", "order of battle"},
			Specialties:   []string{"scenario design", "force modeling", "adjudication"},
			Collaboration: models.CollaborationAskFirst,
		},
	}
}
