// Package contracts defines the service interfaces at the boundary of the
// orchestration core.
//
// The core treats specialized agents as opaque, pluggable executors behind
// the Agent interface; classification, model selection, and title generation
// are likewise external services the core only consumes. Default in-process
// implementations live in internal/agents so the core runs and tests without
// any external backend.
package contracts

import (
	"context"

	"github.com/adamsih300u/bastion-sub010/pkg/models"
)

// ── Agent Executor ──────────────────────────────────────────

// Agent is the uniform contract every specialized agent implements
// (research, chat, fiction-editing, wargaming, ...). The core is agnostic
// to agent internals: it passes the query plus the conversation's shared
// memory and receives a response, memory updates, and raw tool outputs.
type Agent interface {
	// Type returns the agent's routing identity.
	Type() models.AgentType

	// Execute runs the agent against one user query. A non-nil
	// RequiresPermission on the result suspends the turn for human approval
	// instead of completing it.
	Execute(ctx context.Context, query string, memory models.SharedMemory) (*models.AgentResult, error)
}

// AgentRegistry resolves agent types to executors.
type AgentRegistry interface {
	// Agent returns the executor for the given type, or nil if none is bound.
	Agent(agentType models.AgentType) Agent
}

// ── Classification Backend ──────────────────────────────────

// Classification is the domain/action output of the external classifier.
type Classification struct {
	Domain       string
	ActionIntent models.ActionIntent
	Confidence   float64
}

// Classifier is the external classification backend consumed by the intent
// router's first two pipeline stages. Implementations may call an LLM; the
// router recovers locally from any error it returns.
type Classifier interface {
	Classify(ctx context.Context, message string, recentMessages []models.Message) (*Classification, error)
}

// ── Settings ────────────────────────────────────────────────

// SettingsService is the external model-selection policy. The core only
// passes the resolved model name through to agents.
type SettingsService interface {
	ModelFor(role string) string
}

// ── Title Generation ────────────────────────────────────────

// TitleService generates a conversation title from the first user message.
// Invoked once per new conversation.
type TitleService interface {
	Generate(ctx context.Context, firstMessage string) (string, error)
}
