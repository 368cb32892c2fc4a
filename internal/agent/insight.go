package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/venikman/sellerpilot/internal/adapter"
	"github.com/venikman/sellerpilot/internal/memory"
)

// NoInsightLLMResponse is emitted when the insight route runs without a
// configured LLM.
const NoInsightLLMResponse = "[insight unavailable: no LLM provider configured]"

// InsightGenerator narrates executed tool results. It never mutates
// session state.
type InsightGenerator struct {
	llm adapter.LLMClient
}

// NewInsightGenerator creates an InsightGenerator. llm may be nil.
func NewInsightGenerator(llm adapter.LLMClient) *InsightGenerator {
	return &InsightGenerator{llm: llm}
}

const insightInstructions = `You are an analytics insight writer for sellers.
Ground every statement strictly on the provided plan and toolCalls JSON.
Do not invent numbers, products, or dates that are not in the data.
If a tool returned empty rows, say "no data returned" for that aspect.
For week-over-week drops, decompose the change using
conversion_rate = units / sessions and price = sales / units.`

// Generate asks the LLM for a grounded narrative over the run's evidence.
func (g *InsightGenerator) Generate(ctx context.Context, query string, plan Plan, toolCalls []ToolCallRecord, cards []memory.Card) (string, error) {
	if g.llm == nil {
		return NoInsightLLMResponse, nil
	}

	evidence, err := json.MarshalIndent(map[string]any{
		"plan":      plan,
		"toolCalls": toolCalls,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("insight: encode evidence: %w", err)
	}

	prompt := "QUESTION: " + query + "\n\nEVIDENCE:\n" + string(evidence) + "\n"
	for _, c := range cards {
		prompt += "\n" + c.Text + "\n"
	}
	prompt += "\nWrite a short, grounded insight narrative answering the question."

	completion, err := g.llm.Complete(ctx, adapter.CompletionRequest{
		Instructions:    insightInstructions,
		Messages:        []adapter.Message{{Role: "user", Content: prompt}},
		Temperature:     0.2,
		MaxOutputTokens: 800,
	})
	if err != nil {
		return "", fmt.Errorf("insight: %w", err)
	}
	return completion.Text, nil
}
