// Package report renders scenario comparison reports as JSON and markdown.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/venikman/sellerpilot/internal/scenario"
)

// WriteJSON writes the report file format to path.
func WriteJSON(path string, rep scenario.Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}

// Markdown renders the per-config aggregate table plus per-step lines.
func Markdown(rep scenario.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Scenario %s — config comparison\n\n", rep.Scenario)

	b.WriteString("| Config | Avg quality | Question-level acc | Tool calls | Cached | p90 latency (ms) |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, s := range rep.Summaries {
		p90 := "-"
		if s.Aggregate.P90LatencyMs != nil {
			p90 = fmt.Sprintf("%d", *s.Aggregate.P90LatencyMs)
		}
		fmt.Fprintf(&b, "| %s | %.3f | %.3f | %d | %d | %s |\n",
			s.Config,
			s.Aggregate.AvgQuality,
			s.Aggregate.QuestionLevelAccRate,
			s.Aggregate.ToolCallsTotal,
			s.Aggregate.CachedToolCallsTotal,
			p90)
	}
	b.WriteString("\n")

	for _, s := range rep.Summaries {
		fmt.Fprintf(&b, "## %s\n\n", s.Config)
		for i, run := range s.Runs {
			label := run.StepID
			if label == "" {
				label = fmt.Sprintf("step %d", i+1)
			}
			if run.Error != "" {
				fmt.Fprintf(&b, "- %s: ERROR %s\n", label, run.Error)
				continue
			}
			if run.Scores == nil {
				fmt.Fprintf(&b, "- %s: unscored, %d tool calls (%d cached), %d ms\n",
					label, run.ToolCalls, run.CachedToolCalls, run.LatencyMs)
				continue
			}
			fmt.Fprintf(&b, "- %s: quality %.2f (c=%.2f p=%.2f r=%.2f), %d tool calls (%d cached), %d ms\n",
				label, run.Scores.Quality, run.Scores.Correctness, run.Scores.Completeness,
				run.Scores.Relevance, run.ToolCalls, run.CachedToolCalls, run.LatencyMs)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// WriteMarkdown writes the markdown rendering to path.
func WriteMarkdown(path string, rep scenario.Report) error {
	if err := os.WriteFile(path, []byte(Markdown(rep)), 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}
