package adapter

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// openaiClient implements LLMClient against any OpenAI-compatible
// /v1/chat/completions endpoint.
type openaiClient struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates the adapter. Empty apiKey falls back to OPENAI_API_KEY;
// empty baseURL falls back to OPENAI_BASE_URL, then the public API.
func NewOpenAI(apiKey, baseURL, model string) LLMClient {
	if apiKey == "" {
		apiKey = envOr("OPENAI_API_KEY", "")
	}
	if baseURL == "" {
		baseURL = envOr("OPENAI_BASE_URL", "")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &openaiClient{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *openaiClient) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.Instructions != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.Instructions,
		})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	started := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return Completion{}, fmt.Errorf("openai complete: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("openai complete: no choices in response")
	}

	return Completion{
		Text:      resp.Choices[0].Message.Content,
		LatencyMs: time.Since(started).Milliseconds(),
		Usage: &Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		Raw: resp,
	}, nil
}
