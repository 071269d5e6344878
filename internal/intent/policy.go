package intent

import (
	"github.com/adamsih300u/bastion-sub010/pkg/models"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"
)

// PolicyEnv is the evaluation environment for auto-grant rules.
type PolicyEnv struct {
	Agent  string `expr:"agent"`
	Domain string `expr:"domain"`
	Action string `expr:"action"`
}

// PermissionPolicy decides whether a permission requirement is eligible for
// automatic grant. Rules are per-agent boolean expressions over the routing
// environment, compiled once at construction.
type PermissionPolicy struct {
	programs map[models.AgentType]*vm.Program
}

// DefaultPolicyRules is the static per-agent auto-grant table. A missing
// entry means never auto-grant.
var DefaultPolicyRules = map[models.AgentType]string{
	// Research lookups for plain queries are low-risk; analysis passes that
	// fan out many fetches still require explicit approval.
	models.AgentResearch: `action == "query"`,
}

// NewPermissionPolicy compiles the rule table. Rules that fail to compile
// are dropped (logged); the affected agent simply never auto-grants.
func NewPermissionPolicy(rules map[models.AgentType]string) *PermissionPolicy {
	p := &PermissionPolicy{programs: make(map[models.AgentType]*vm.Program, len(rules))}
	for agent, rule := range rules {
		program, err := expr.Compile(rule, expr.Env(PolicyEnv{}), expr.AsBool())
		if err != nil {
			log.Warn().Str("agent", string(agent)).Str("rule", rule).Err(err).
				Msg("Invalid auto-grant rule, agent will not auto-grant")
			continue
		}
		p.programs[agent] = program
	}
	return p
}

// AutoGrantEligible evaluates the agent's rule against the routing
// environment. Evaluation errors count as not eligible.
func (p *PermissionPolicy) AutoGrantEligible(agent models.AgentType, domain string, action models.ActionIntent) bool {
	program, ok := p.programs[agent]
	if !ok {
		return false
	}
	out, err := expr.Run(program, PolicyEnv{
		Agent:  string(agent),
		Domain: domain,
		Action: string(action),
	})
	if err != nil {
		log.Warn().Str("agent", string(agent)).Err(err).Msg("Auto-grant rule evaluation failed")
		return false
	}
	eligible, _ := out.(bool)
	return eligible
}
