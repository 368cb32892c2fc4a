package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/venikman/sellerpilot/internal/memory"
)

const evalToday = "2026-02-04"

// runPlanned executes a heuristic plan for query and returns its records.
func runPlanned(t *testing.T, query string, sess Session) (*Plan, []ToolCallRecord) {
	t.Helper()
	registry := newTestRegistry()
	p := NewPlanner(registry, nil)
	plan := p.HeuristicPlan(PlannerInput{
		Route:       RouteDataPresenter,
		Query:       query,
		TimeContext: testTimeContext(t),
		Session:     sess,
	})
	records, _, err := NewExecutor(registry, nil).Execute(context.Background(), plan, false)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	return &plan, records
}

func TestInferSpec(t *testing.T) {
	e := NewEvaluator(newTestRegistry())

	spec := e.InferSpec("What were the sales for my top 10 products last month?", evalToday)
	if spec == nil || spec.Kind != SpecTopProducts {
		t.Fatalf("expected top_products spec, got %+v", spec)
	}
	if spec.Metric != "sales" || spec.Limit != 10 {
		t.Errorf("spec fields: %+v", spec)
	}
	if spec.Range.StartDate != "2026-01-01" || spec.Range.EndDate != "2026-01-31" {
		t.Errorf("spec range: %+v", spec.Range)
	}

	spec = e.InferSpec("show traffic for those products last month", evalToday)
	if spec == nil || spec.Kind != SpecTimeseries || spec.Metric != "sessions" {
		t.Fatalf("expected timeseries spec, got %+v", spec)
	}

	spec = e.InferSpec("why did sales drop wow?", evalToday)
	if spec == nil || spec.Kind != SpecWhyDropWoW {
		t.Fatalf("expected why_drop_wow spec, got %+v", spec)
	}

	if spec := e.InferSpec("list all products", evalToday); spec != nil {
		t.Errorf("unscoreable query must yield nil spec, got %+v", spec)
	}
	if spec := e.InferSpec("top 10 products ever", evalToday); spec != nil {
		t.Errorf("top products without a range phrase must yield nil spec, got %+v", spec)
	}
}

func TestEvaluate_PerfectTopProducts(t *testing.T) {
	e := NewEvaluator(newTestRegistry())
	query := "What were the sales for my top 10 products last month?"
	plan, records := runPlanned(t, query, Session{})

	res := e.Evaluate(context.Background(), query, evalToday, plan, records)
	if res == nil {
		t.Fatal("expected an evaluation")
	}
	if res.Scores.Quality <= 0.95 {
		t.Errorf("perfect run should score above 0.95, got %+v", res.Scores)
	}
	if res.Scores.Correctness != 1 || res.Scores.Completeness != 1 || res.Scores.Relevance != 1 {
		t.Errorf("sub-scores: %+v", res.Scores)
	}
}

func TestEvaluate_MissingCallScoresZero(t *testing.T) {
	e := NewEvaluator(newTestRegistry())
	res := e.Evaluate(context.Background(), "top 10 products last month by sales", evalToday, nil, nil)
	if res == nil {
		t.Fatal("expected an evaluation")
	}
	if res.Scores != (Scores{}) {
		t.Errorf("missing call must score all zeros, got %+v", res.Scores)
	}
	if len(res.Notes) == 0 {
		t.Error("notes must explain the zero score")
	}
}

func TestEvaluate_EmptyRows(t *testing.T) {
	e := NewEvaluator(newTestRegistry())
	records := []ToolCallRecord{{
		Tool:   "top_products",
		Args:   map[string]any{"metric": "sales", "startDate": "2026-01-01", "endDate": "2026-01-31", "limit": 10},
		Result: map[string]any{"rows": []any{}},
	}}

	res := e.Evaluate(context.Background(), "top 10 products last month by sales", evalToday, nil, records)
	want := Scores{Correctness: 0, Completeness: 0, Relevance: 0.2, Quality: 0.07}
	if res.Scores != want {
		t.Errorf("empty rows: got %+v, want %+v", res.Scores, want)
	}
}

func TestEvaluate_WrongMetricLowersRelevance(t *testing.T) {
	e := NewEvaluator(newTestRegistry())
	query := "What were the sales for my top 10 products last month?"

	// A confused planner asked for units instead of sales.
	registry := newTestRegistry()
	def, _ := registry.Get("top_products")
	args, _ := def.Validate(map[string]any{"metric": "units", "startDate": "2026-01-01", "endDate": "2026-01-31", "limit": 10})
	result, _ := def.Execute(context.Background(), args)
	records := []ToolCallRecord{{Tool: "top_products", Args: args, Result: result}}

	res := e.Evaluate(context.Background(), query, evalToday, nil, records)
	if res.Scores.Relevance != 0.4 {
		t.Errorf("metric mismatch must set relevance 0.4, got %v", res.Scores.Relevance)
	}
	if res.Scores.Quality >= 0.95 {
		t.Errorf("confused run should not score like a perfect one: %+v", res.Scores)
	}
}

func TestEvaluate_Timeseries(t *testing.T) {
	e := NewEvaluator(newTestRegistry())
	query := "show traffic for those products last month"
	sess := Session{SelectedProductIDs: []string{"P-001", "P-002", "P-003"}}
	plan, records := runPlanned(t, query, sess)

	res := e.Evaluate(context.Background(), query, evalToday, plan, records)
	if res == nil {
		t.Fatal("expected an evaluation")
	}
	if res.Scores.Relevance != 1 {
		t.Errorf("relevance: got %v (args %+v)", res.Scores.Relevance, records[0].Args)
	}
	if res.Scores.Completeness != 1 {
		t.Errorf("all requested products have series; completeness got %v", res.Scores.Completeness)
	}
	if res.Scores.Correctness != 1 {
		t.Errorf("all points in range; correctness got %v", res.Scores.Correctness)
	}
}

func TestEvaluate_WhyDropWoW_StrongPath(t *testing.T) {
	e := NewEvaluator(newTestRegistry())
	query := "why did sales drop wow?"
	plan, records := runPlanned(t, query, Session{})

	res := e.Evaluate(context.Background(), query, evalToday, plan, records)
	if res == nil {
		t.Fatal("expected an evaluation")
	}
	if res.Scores.Relevance != 1 {
		t.Errorf("weekly comparison should be fully relevant, got %v", res.Scores.Relevance)
	}
	if res.Scores.Completeness != 0.8 {
		t.Errorf("weekly comparison tier is 0.8, got %v", res.Scores.Completeness)
	}
	// Both weekly leaders come from the same dataset the ground truth uses.
	if res.Scores.Correctness != 1 {
		t.Errorf("leaders should match ground truth, got %v", res.Scores.Correctness)
	}
}

func TestEvaluate_WhyDropWoW_NoUsefulTools(t *testing.T) {
	e := NewEvaluator(newTestRegistry())
	records := []ToolCallRecord{{Tool: "list_products", Args: map[string]any{"limit": 20}}}
	res := e.Evaluate(context.Background(), "why did sales drop wow?", evalToday, nil, records)
	if res.Scores.Relevance != 0.5 {
		t.Errorf("relevance: got %v", res.Scores.Relevance)
	}
	if res.Scores.Correctness != 0.2 {
		t.Errorf("baseline correctness: got %v", res.Scores.Correctness)
	}
}

func TestCanonicalizeQuery(t *testing.T) {
	got := CanonicalizeQuery("Top 10 products from 2026-01-01 to 2026-01-31   by sales")
	want := "top <n> products from <date> to <date> by sales"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestProposeWrites_Thresholds(t *testing.T) {
	e := NewEvaluator(newTestRegistry())
	plan := &Plan{Route: RouteDataPresenter}
	calls := []ToolCallRecord{{Tool: "top_products", Args: map[string]any{"metric": "sales", "limit": 10}}}

	good := e.ProposeWrites("demo", "top 10 products last month", &EvalResult{Scores: Scores{Quality: 0.9}}, plan, calls)
	if len(good) != 2 {
		t.Fatalf("good run should propose query_pattern + tool_template, got %d", len(good))
	}
	if good[0].Kind != memory.KindQueryPattern || good[0].Importance != 0.35 {
		t.Errorf("first write: %+v", good[0])
	}
	if good[1].Kind != memory.KindToolTemplate || good[1].Importance != 0.45 {
		t.Errorf("second write: %+v", good[1])
	}
	if good[1].Meta["tool"] != "top_products" {
		t.Errorf("tool template meta: %+v", good[1].Meta)
	}
	for _, w := range good {
		if w.Scope != memory.UserScope("demo") {
			t.Errorf("writes must target the user scope, got %q", w.Scope)
		}
	}

	bad := e.ProposeWrites("demo", "top 10 products last month",
		&EvalResult{Scores: Scores{Quality: 0.3}, Notes: []string{"rows diverged"}}, plan, calls)
	if len(bad) != 1 || bad[0].Kind != memory.KindFailureCase || bad[0].Importance != 0.4 {
		t.Fatalf("bad run proposal wrong: %+v", bad)
	}
	if !strings.Contains(bad[0].Text, "rows diverged") {
		t.Errorf("failure case must carry the notes: %q", bad[0].Text)
	}
	if bad[0].Meta["plan"] == "" || bad[0].Meta["toolCalls"] == "" {
		t.Errorf("failure case meta must carry plan and toolCalls: %+v", bad[0].Meta)
	}

	mid := e.ProposeWrites("demo", "q", &EvalResult{Scores: Scores{Quality: 0.65}}, plan, calls)
	if len(mid) != 1 || mid[0].Kind != memory.KindQueryPattern || mid[0].Importance != 0.2 {
		t.Fatalf("mid run proposal wrong: %+v", mid)
	}

	if got := e.ProposeWrites("demo", "q", nil, plan, calls); got != nil {
		t.Errorf("nil eval proposes nothing, got %+v", got)
	}
}
