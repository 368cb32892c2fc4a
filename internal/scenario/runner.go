package scenario

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"sort"

	progressbar "github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/venikman/sellerpilot/internal/adapter"
	"github.com/venikman/sellerpilot/internal/agent"
	"github.com/venikman/sellerpilot/internal/dataset"
	"github.com/venikman/sellerpilot/internal/db"
	"github.com/venikman/sellerpilot/internal/memory"
	"github.com/venikman/sellerpilot/internal/tools"
)

// questionLevelBar is the sub-score threshold for question-level accuracy.
const questionLevelBar = 0.8

// StepResult summarises one executed step.
type StepResult struct {
	StepID           string        `json:"stepId,omitempty"`
	Query            string        `json:"query"`
	ToolCalls        int           `json:"toolCalls"`
	CachedToolCalls  int           `json:"cachedToolCalls"`
	LatencyMs        int64         `json:"latencyMs"`
	Scores           *agent.Scores `json:"scores,omitempty"`
	QuestionLevelAcc bool          `json:"questionLevelAcc"`
	Error            string        `json:"error,omitempty"`
}

// Aggregate is the per-config rollup.
type Aggregate struct {
	AvgQuality           float64 `json:"avgQuality"`
	QuestionLevelAccRate float64 `json:"questionLevelAccRate"`
	ToolCallsTotal       int     `json:"toolCallsTotal"`
	CachedToolCallsTotal int     `json:"cachedToolCallsTotal"`
	P90LatencyMs         *int64  `json:"p90LatencyMs"`
}

// ConfigSummary is one config's runs plus aggregate.
type ConfigSummary struct {
	Config    string       `json:"config"`
	Runs      []StepResult `json:"runs"`
	Aggregate Aggregate    `json:"aggregate"`
}

// Report is the comparison output across configs.
type Report struct {
	Scenario  string          `json:"scenario"`
	Summaries []ConfigSummary `json:"summaries"`
}

// Runner executes a scenario across configs, one fresh state store per
// config so their memories cannot interfere.
type Runner struct {
	UserID    string
	StatePath string
	Repeat    int
	LLM       adapter.LLMClient
	RunLogDir string
	Progress  bool
	logger    *log.Logger
}

// NewRunner creates a Runner. statePath is the base path; each config gets
// its own file suffixed with the config name.
func NewRunner(userID, statePath string, repeat int, llm adapter.LLMClient) *Runner {
	if repeat < 1 {
		repeat = 1
	}
	return &Runner{
		UserID:    userID,
		StatePath: statePath,
		Repeat:    repeat,
		LLM:       llm,
		Progress:  term.IsTerminal(int(os.Stderr.Fd())),
		logger:    log.New(os.Stderr, "[RUNNER] ", log.LstdFlags),
	}
}

// Run executes every config over the scenario steps, Repeat passes each.
// Session state threads across steps within a pass, never across passes.
func (r *Runner) Run(ctx context.Context, sc Scenario, configs []ConfigSpec) (Report, error) {
	if err := sc.Validate(); err != nil {
		return Report{}, err
	}
	sc.ApplyDefaults()

	var bar *progressbar.ProgressBar
	if r.Progress {
		bar = progressbar.NewOptions(len(configs)*r.Repeat*len(sc.Steps),
			progressbar.OptionSetDescription("scenario "+sc.ID),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
	}

	report := Report{Scenario: sc.ID}
	for _, cfg := range configs {
		summary, err := r.runConfig(ctx, sc, cfg, bar)
		if err != nil {
			return report, err
		}
		report.Summaries = append(report.Summaries, summary)
	}
	return report, nil
}

func (r *Runner) runConfig(ctx context.Context, sc Scenario, cfg ConfigSpec, bar *progressbar.ProgressBar) (ConfigSummary, error) {
	statePath := fmt.Sprintf("%s-%s.db", r.StatePath, cfg.Name)
	// Start from an empty store: drop any state left by an earlier run.
	for _, p := range []string{statePath, statePath + "-wal", statePath + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return ConfigSummary{}, fmt.Errorf("runner: reset state for %s: %w", cfg.Name, err)
		}
	}
	database, err := db.Open(statePath)
	if err != nil {
		return ConfigSummary{}, fmt.Errorf("runner: open state for %s: %w", cfg.Name, err)
	}
	defer database.Close()

	store := memory.NewStore(database)
	registry := tools.NewRegistry(dataset.NewSeeded(sc.Seed, sc.StartDate, sc.Days))
	orch, err := agent.NewOrchestrator(store, registry, r.LLM)
	if err != nil {
		return ConfigSummary{}, fmt.Errorf("runner: %w", err)
	}

	runCfg := agent.RunConfig{MemoryMode: cfg.Mode, Today: sc.Today}
	summary := ConfigSummary{Config: cfg.Name}

	for pass := 0; pass < r.Repeat; pass++ {
		sess := agent.Session{}
		for _, step := range sc.Steps {
			run, nextSess, err := orch.HandleQuery(ctx, step.Query, r.UserID, runCfg, sess)
			if bar != nil {
				_ = bar.Add(1)
			}
			if err != nil {
				// A failed run aborts that step only; the scenario advances.
				r.logger.Printf("config %s step %q: %v", cfg.Name, step.Query, err)
				summary.Runs = append(summary.Runs, StepResult{
					StepID: step.ID,
					Query:  step.Query,
					Error:  err.Error(),
				})
				continue
			}
			sess = nextSess

			result := StepResult{
				StepID:    step.ID,
				Query:     step.Query,
				ToolCalls: len(run.ToolCalls),
				LatencyMs: run.Latencies.ManagerRouteMs + run.Latencies.WorkerTotalMs + run.Latencies.EvalMs,
			}
			for _, call := range run.ToolCalls {
				if call.Cached {
					result.CachedToolCalls++
				}
			}
			if run.Eval != nil {
				scores := run.Eval.Scores
				result.Scores = &scores
				result.QuestionLevelAcc = scores.Correctness > questionLevelBar &&
					scores.Completeness > questionLevelBar &&
					scores.Relevance > questionLevelBar
			}
			summary.Runs = append(summary.Runs, result)

			if r.RunLogDir != "" {
				if err := AppendRunLog(r.RunLogDir, run); err != nil {
					r.logger.Printf("run log append failed: %v", err)
				}
			}
		}
	}

	summary.Aggregate = aggregate(summary.Runs)
	return summary, nil
}

func aggregate(runs []StepResult) Aggregate {
	var agg Aggregate
	var qualitySum float64
	scored := 0
	accurate := 0
	latencies := make([]int64, 0, len(runs))

	for _, run := range runs {
		agg.ToolCallsTotal += run.ToolCalls
		agg.CachedToolCallsTotal += run.CachedToolCalls
		if run.Error != "" {
			continue
		}
		latencies = append(latencies, run.LatencyMs)
		if run.Scores != nil {
			qualitySum += run.Scores.Quality
			scored++
			if run.QuestionLevelAcc {
				accurate++
			}
		}
	}
	if scored > 0 {
		agg.AvgQuality = math.Round(qualitySum/float64(scored)*1000) / 1000
		agg.QuestionLevelAccRate = math.Round(float64(accurate)/float64(scored)*1000) / 1000
	}
	agg.P90LatencyMs = P90(latencies)
	return agg
}

// P90 returns sorted[floor((n-1)*0.9)], or nil for empty input.
func P90(latencies []int64) *int64 {
	if len(latencies) == 0 {
		return nil
	}
	sorted := append([]int64(nil), latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(math.Floor(float64(len(sorted)-1) * 0.9))
	v := sorted[idx]
	return &v
}
