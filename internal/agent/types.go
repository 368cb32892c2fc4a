// Package agent contains the orchestration core: manager routing, LLM and
// heuristic planning, deterministic execution with result caching, the
// presenter and insight agents, run evaluation, and the top-level state
// machine that ties them together.
package agent

import (
	"github.com/venikman/sellerpilot/internal/memory"
)

// MemoryMode selects how much of the memory system a run may touch.
type MemoryMode string

const (
	ModeBaseline       MemoryMode = "baseline"
	ModeRead           MemoryMode = "read"
	ModeReadWrite      MemoryMode = "readwrite"
	ModeReadWriteCache MemoryMode = "readwrite_cache"
)

// RetrievalEnabled reports whether memory cards are injected.
func (m MemoryMode) RetrievalEnabled() bool {
	return m != ModeBaseline && m != ""
}

// WritesEnabled reports whether the evaluator may persist memory.
func (m MemoryMode) WritesEnabled() bool {
	return m == ModeReadWrite || m == ModeReadWriteCache
}

// CacheEnabled reports whether the executor uses the tool-result cache.
func (m MemoryMode) CacheEnabled() bool {
	return m == ModeReadWriteCache
}

// ValidMemoryMode returns true for a recognised mode.
func ValidMemoryMode(m MemoryMode) bool {
	switch m {
	case ModeBaseline, ModeRead, ModeReadWrite, ModeReadWriteCache:
		return true
	}
	return false
}

// RunConfig is the per-run configuration snapshot.
type RunConfig struct {
	MemoryMode MemoryMode `json:"memoryMode"`
	Today      string     `json:"today,omitempty"`
}

// Worker routes.
const (
	RouteDataPresenter    = "data_presenter"
	RouteInsightGenerator = "insight_generator"
)

// TimeRange bounds a plan in ISO dates.
type TimeRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// PlanStep is a single typed tool call.
type PlanStep struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// Plan is the validated output of the planner.
type Plan struct {
	Route     string     `json:"route"`
	TimeRange *TimeRange `json:"timeRange,omitempty"`
	Steps     []PlanStep `json:"steps"`
	Notes     string     `json:"notes,omitempty"`
}

// ToolCallRecord logs one executed (or cache-served) step.
type ToolCallRecord struct {
	Tool       string         `json:"tool"`
	Args       map[string]any `json:"args"`
	Signature  string         `json:"signature"`
	Cached     bool           `json:"cached"`
	StartedAt  string         `json:"startedAt"`
	DurationMs int64          `json:"durationMs"`
	Result     any            `json:"result"`
}

// Scores are the three sub-scores plus their mean.
type Scores struct {
	Correctness  float64 `json:"correctness"`
	Completeness float64 `json:"completeness"`
	Relevance    float64 `json:"relevance"`
	Quality      float64 `json:"quality"`
}

// EvalResult is the evaluator's verdict for one run.
type EvalResult struct {
	SpecKind string   `json:"specKind"`
	Scores   Scores   `json:"scores"`
	Notes    []string `json:"notes,omitempty"`
}

// Session is the mutable per-scenario conversational state, passed into
// and returned from every step rather than hidden in ambient state.
type Session struct {
	SelectedProductIDs []string `json:"selectedProductIds"`
}

// Latencies records per-stage wall-clock milliseconds.
type Latencies struct {
	ManagerRouteMs int64 `json:"manager_route_ms"`
	WorkerTotalMs  int64 `json:"worker_total_ms"`
	EvalMs         int64 `json:"eval_ms"`
}

// PlannerInfo preserves how the plan was obtained.
type PlannerInfo struct {
	UsedFallback bool   `json:"usedFallback"`
	RawText      string `json:"rawText,omitempty"`
}

// RouteDecision is the manager's gate verdict.
type RouteDecision struct {
	OOD    bool   `json:"ood"`
	Route  string `json:"route,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Run is the full record of one orchestrated query.
type Run struct {
	ID             string           `json:"id"`
	CreatedAt      string           `json:"createdAt"`
	UserID         string           `json:"userId"`
	Config         RunConfig        `json:"config"`
	Query          string           `json:"query"`
	AugmentedQuery string           `json:"augmentedQuery"`
	Route          string           `json:"route,omitempty"`
	OOD            bool             `json:"ood"`
	Plan           *Plan            `json:"plan,omitempty"`
	Planner        PlannerInfo      `json:"planner"`
	ToolCalls      []ToolCallRecord `json:"toolCalls,omitempty"`
	Response       string           `json:"response"`
	Eval           *EvalResult      `json:"eval,omitempty"`
	MemoryInjected []memory.Card    `json:"memoryInjected,omitempty"`
	Latencies      Latencies        `json:"latencies"`
	Session        Session          `json:"session"`
}

// OutOfScopeResponse is the fixed reply for queries the manager declines.
const OutOfScopeResponse = "Out of scope: I can help with seller analytics (sales, traffic, benchmarks)."
