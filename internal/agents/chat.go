package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/adamsih300u/bastion-sub010/pkg/contracts"
	"github.com/adamsih300u/bastion-sub010/pkg/models"
)

const chatSystemPrompt = "You are a helpful assistant inside a multi-agent system. " +
	"Answer conversationally. When shared findings are provided, ground your answer in them."

// ChatAgent is the default conversational agent and the routing fallback.
// With a nil Generator it degrades to a canned local response so the server
// still answers without a model backend.
type ChatAgent struct {
	gen      Generator
	settings contracts.SettingsService
}

func NewChatAgent(gen Generator, settings contracts.SettingsService) *ChatAgent {
	return &ChatAgent{gen: gen, settings: settings}
}

func (a *ChatAgent) Type() models.AgentType { return models.AgentChat }

func (a *ChatAgent) Execute(ctx context.Context, query string, mem models.SharedMemory) (*models.AgentResult, error) {
	if a.gen == nil {
		return &models.AgentResult{Response: localResponse(query, mem)}, nil
	}

	model := "claude-sonnet-4-20250514"
	if a.settings != nil {
		if m := a.settings.ModelFor("chat"); m != "" {
			model = m
		}
	}

	response, err := a.gen.Generate(ctx, model, chatSystemPrompt, buildPrompt(query, mem))
	if err != nil {
		log.Warn().Err(err).Msg("agents: chat generation failed, using local response")
		return &models.AgentResult{Response: localResponse(query, mem)}, nil
	}
	return &models.AgentResult{Response: response}, nil
}

// buildPrompt prepends accumulated findings so follow-up questions can be
// answered from earlier agent work.
func buildPrompt(query string, mem models.SharedMemory) string {
	if len(mem.ResearchFindings) == 0 {
		return query
	}
	var sb strings.Builder
	sb.WriteString("Shared findings from earlier in this conversation:\n")
	for topic, finding := range mem.ResearchFindings {
		fmt.Fprintf(&sb, "- %s: %s\n", topic, finding)
	}
	sb.WriteString("\nUser question: ")
	sb.WriteString(query)
	return sb.String()
}

func localResponse(query string, mem models.SharedMemory) string {
	if len(mem.ResearchFindings) > 0 {
		return fmt.Sprintf("Here's what I have so far on %q, based on %d earlier finding(s). "+
			"Connect a model backend for a fuller answer.", query, len(mem.ResearchFindings))
	}
	return fmt.Sprintf("I received your message: %q. No model backend is configured, "+
		"so I can only acknowledge it.", query)
}
