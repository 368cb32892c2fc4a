// Package adapter provides the LLM boundary: a provider-agnostic
// completion client plus concrete OpenAI-compatible and Anthropic adapters.
package adapter

import (
	"context"
	"fmt"
	"os"
)

// Provider name constants.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Message is one turn of a conversation. Role is "user" or "assistant";
// system content is folded into CompletionRequest.Instructions.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest holds the parameters for a completion call.
type CompletionRequest struct {
	Instructions    string
	Messages        []Message
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

// Usage carries provider token accounting when available.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Completion is the result of one LLM call.
type Completion struct {
	Text      string
	LatencyMs int64
	Usage     *Usage
	Raw       any
}

// LLMClient is the single seam the orchestration core calls through.
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// New constructs the LLMClient for the named provider.
//
//   - provider: "openai" (any OpenAI-compatible endpoint) or "anthropic"
//   - model: default model id for this client
//   - apiKey: provider API key (empty = read from env in the concrete adapter)
//   - baseURL: endpoint override for OpenAI-compatible servers (empty = OPENAI_BASE_URL, then api.openai.com)
func New(provider, model, apiKey, baseURL string) (LLMClient, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAI(apiKey, baseURL, model), nil
	case ProviderAnthropic:
		return NewAnthropic(apiKey, model), nil
	default:
		return nil, fmt.Errorf("adapter: unknown provider %q; valid providers: openai, anthropic", provider)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
