package agents

import "github.com/adamsih300u/bastion-sub010/pkg/contracts"

// StaticSettings is a fixed role-to-model table.
type StaticSettings struct {
	Models map[string]string
}

// DefaultSettings returns the built-in model assignments.
func DefaultSettings() *StaticSettings {
	return &StaticSettings{Models: map[string]string{
		"chat":     "claude-sonnet-4-20250514",
		"research": "claude-sonnet-4-20250514",
		"title":    "claude-sonnet-4-20250514",
	}}
}

func (s *StaticSettings) ModelFor(role string) string {
	return s.Models[role]
}

var _ contracts.SettingsService = (*StaticSettings)(nil)
