package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/venikman/sellerpilot/internal/adapter"
)

// fakeLLM scripts completion behaviour for tests.
type fakeLLM struct {
	fn    func(req adapter.CompletionRequest) (string, error)
	calls int
}

func (f *fakeLLM) Complete(_ context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	f.calls++
	text, err := f.fn(req)
	if err != nil {
		return adapter.Completion{}, err
	}
	return adapter.Completion{Text: text, LatencyMs: 1}, nil
}

// staticLLM always answers with the same text.
func staticLLM(text string) *fakeLLM {
	return &fakeLLM{fn: func(adapter.CompletionRequest) (string, error) { return text, nil }}
}

// failingLLM simulates a transport error.
func failingLLM() *fakeLLM {
	return &fakeLLM{fn: func(adapter.CompletionRequest) (string, error) {
		return "", errors.New("connection refused")
	}}
}

// confusedPlannerLLM emits a top_products plan that picks units instead of
// sales unless a memory card is visible in the prompt. It stands in for a
// weak baseline model whose mistakes memory should correct.
func confusedPlannerLLM(startDate, endDate string) *fakeLLM {
	return &fakeLLM{fn: func(req adapter.CompletionRequest) (string, error) {
		prompt := req.Instructions
		for _, m := range req.Messages {
			prompt += "\n" + m.Content
		}
		metric := "units"
		if strings.Contains(prompt, "MEMORY CARD") {
			metric = "sales"
		}
		return `{"route":"data_presenter","timeRange":{"startDate":"` + startDate + `","endDate":"` + endDate + `"},` +
			`"steps":[{"tool":"top_products","args":{"metric":"` + metric + `","startDate":"` + startDate + `","endDate":"` + endDate + `","limit":10}}]}`, nil
	}}
}
