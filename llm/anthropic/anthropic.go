// Package anthropic is the Anthropic-shaped LLM provider used by
// consolidation's Summarize phase: POST /v1/messages with x-api-key.
// Grounded on becomeliminal-nim-go-sdk/engine.Engine.Run's use of
// anthropic-sdk-go: the same MessageNewParams/System/Messages.New shape,
// just a single-turn call instead of a tool-calling loop.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Summarizer generates consolidation summaries via the Anthropic Messages
// API.
type Summarizer struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// New returns a Summarizer using apiKey. model defaults to a Claude Haiku
// tier model suited to short consolidation summaries; maxTokens defaults
// to 512 when 0.
func New(apiKey, model string, maxTokens int) *Summarizer {
	if model == "" {
		model = "claude-3-5-haiku-20241022"
	}
	if maxTokens == 0 {
		maxTokens = 512
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Summarizer{client: &client, model: model, maxTokens: int64(maxTokens)}
}

// Generate implements the engram.Summarizer contract.
func (s *Summarizer) Generate(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages.new: %w", err)
	}

	var out string
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			out += text.Text
		}
	}
	return out, nil
}
