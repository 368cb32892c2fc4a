package adapter

import (
	"context"
	"fmt"
	"time"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// anthropicClient implements LLMClient for Anthropic models.
type anthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropic creates the adapter. Empty apiKey falls back to ANTHROPIC_API_KEY.
func NewAnthropic(apiKey, model string) LLMClient {
	if apiKey == "" {
		apiKey = envOr("ANTHROPIC_API_KEY", "")
	}
	if model == "" {
		model = "claude-sonnet-4-6"
	}
	return &anthropicClient{client: anthropic.NewClient(apiKey), model: model}
}

func (a *anthropicClient) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	model := req.Model
	if model == "" {
		model = a.model
	}
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	messages := make([]anthropic.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantTextMessage(m.Content))
			continue
		}
		messages = append(messages, anthropic.NewUserTextMessage(m.Content))
	}

	creq := anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if req.Instructions != "" {
		creq.System = req.Instructions
	}
	temp := float32(req.Temperature)
	creq.Temperature = &temp

	started := time.Now()
	resp, err := a.client.CreateMessages(ctx, creq)
	if err != nil {
		return Completion{}, fmt.Errorf("anthropic complete: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text += *block.Text
		}
	}

	return Completion{
		Text:      text,
		LatencyMs: time.Since(started).Milliseconds(),
		Usage: &Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
		Raw: resp,
	}, nil
}
