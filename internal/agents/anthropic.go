package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Generator produces a completion for a prompt. The chat agent depends on
// this rather than a concrete SDK client so tests can substitute a stub.
type Generator interface {
	Generate(ctx context.Context, model, system, prompt string) (string, error)
}

// AnthropicGenerator backs Generator with the Claude Messages API. The SDK
// reads ANTHROPIC_API_KEY from the environment.
type AnthropicGenerator struct {
	client anthropic.Client
}

func NewAnthropicGenerator() *AnthropicGenerator {
	return &AnthropicGenerator{client: anthropic.NewClient()}
}

func (g *AnthropicGenerator) Generate(ctx context.Context, model, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
