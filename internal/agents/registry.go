// Package agents provides the built-in agent implementations and the
// registry the conversation layer resolves routed agents from.
package agents

import (
	"github.com/rs/zerolog/log"

	"github.com/adamsih300u/bastion-sub010/pkg/contracts"
	"github.com/adamsih300u/bastion-sub010/pkg/models"
)

// Registry maps agent types to implementations. Registration happens at
// startup; lookups are read-only after that, so no locking.
type Registry struct {
	agents map[models.AgentType]contracts.Agent
}

// NewRegistry creates a registry with the given agents.
func NewRegistry(agents ...contracts.Agent) *Registry {
	r := &Registry{agents: map[models.AgentType]contracts.Agent{}}
	for _, a := range agents {
		r.Register(a)
	}
	return r
}

// Register adds an agent, replacing any previous one of the same type.
func (r *Registry) Register(a contracts.Agent) {
	if a == nil {
		return
	}
	if _, exists := r.agents[a.Type()]; exists {
		log.Warn().Str("agent", string(a.Type())).Msg("agents: replacing registered agent")
	}
	r.agents[a.Type()] = a
}

// Agent returns the implementation for a type, or nil when none registered.
func (r *Registry) Agent(t models.AgentType) contracts.Agent {
	return r.agents[t]
}

// Types lists the registered agent types.
func (r *Registry) Types() []models.AgentType {
	out := make([]models.AgentType, 0, len(r.agents))
	for t := range r.agents {
		out = append(out, t)
	}
	return out
}
