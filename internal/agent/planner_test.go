package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/venikman/sellerpilot/internal/dataset"
	"github.com/venikman/sellerpilot/internal/memory"
	"github.com/venikman/sellerpilot/internal/timectx"
	"github.com/venikman/sellerpilot/internal/tools"
)

func testTimeContext(t *testing.T) timectx.TimeContext {
	t.Helper()
	tc, err := timectx.Get("2026-02-04")
	if err != nil {
		t.Fatalf("time context: %v", err)
	}
	return tc
}

func newTestRegistry() *tools.Registry {
	return tools.NewRegistry(dataset.NewSeeded(42, "2025-10-01", 120))
}

func TestHeuristicPlan_TopProducts(t *testing.T) {
	p := NewPlanner(newTestRegistry(), nil)
	plan := p.HeuristicPlan(PlannerInput{
		Route:       RouteDataPresenter,
		Query:       "What were the sales for my top 10 products last month?",
		TimeContext: testTimeContext(t),
	})

	if len(plan.Steps) != 1 || plan.Steps[0].Tool != "top_products" {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	args := plan.Steps[0].Args
	if args["metric"] != "sales" {
		t.Errorf("metric: got %v", args["metric"])
	}
	if args["startDate"] != "2026-01-01" || args["endDate"] != "2026-01-31" {
		t.Errorf("range: got %v..%v", args["startDate"], args["endDate"])
	}
	if args["limit"] != 10 {
		t.Errorf("limit: got %v", args["limit"])
	}
}

func TestHeuristicPlan_ThoseProducts(t *testing.T) {
	p := NewPlanner(newTestRegistry(), nil)
	plan := p.HeuristicPlan(PlannerInput{
		Route:       RouteDataPresenter,
		Query:       "show traffic for those products last month",
		TimeContext: testTimeContext(t),
		Session:     Session{SelectedProductIDs: []string{"P-001", "P-002"}},
	})

	if len(plan.Steps) != 1 || plan.Steps[0].Tool != "timeseries" {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	args := plan.Steps[0].Args
	if args["metric"] != "sessions" {
		t.Errorf("traffic should map to sessions, got %v", args["metric"])
	}
	ids, _ := args["productIds"].([]string)
	if len(ids) != 2 || ids[0] != "P-001" {
		t.Errorf("productIds: got %v", args["productIds"])
	}
}

func TestHeuristicPlan_ThoseProductsWithoutSelection(t *testing.T) {
	p := NewPlanner(newTestRegistry(), nil)
	plan := p.HeuristicPlan(PlannerInput{
		Route:       RouteDataPresenter,
		Query:       "show traffic for those products last month",
		TimeContext: testTimeContext(t),
	})
	// With nothing selected the rule cannot fire; listing is the floor.
	if plan.Steps[0].Tool == "timeseries" {
		t.Errorf("timeseries must not fire without selected products: %+v", plan)
	}
}

func TestHeuristicPlan_WhyDropWoW(t *testing.T) {
	p := NewPlanner(newTestRegistry(), nil)
	plan := p.HeuristicPlan(PlannerInput{
		Route:       RouteInsightGenerator,
		Query:       "Why did sales drop WoW?",
		TimeContext: testTimeContext(t),
	})

	if len(plan.Steps) != 6 {
		t.Fatalf("expected 6 steps, got %d", len(plan.Steps))
	}
	metrics := map[string]int{}
	weeks := map[string]int{}
	for _, step := range plan.Steps {
		if step.Tool != "top_products" {
			t.Errorf("step tool: got %s", step.Tool)
		}
		metrics[step.Args["metric"].(string)]++
		weeks[step.Args["startDate"].(string)]++
		if step.Args["limit"] != 50 {
			t.Errorf("limit: got %v", step.Args["limit"])
		}
	}
	for _, m := range []string{"sales", "sessions", "units"} {
		if metrics[m] != 2 {
			t.Errorf("metric %s appears %d times, want 2", m, metrics[m])
		}
	}
	if weeks["2026-02-02"] != 3 || weeks["2026-01-26"] != 3 {
		t.Errorf("weekly split wrong: %v", weeks)
	}
	if plan.TimeRange == nil || plan.TimeRange.StartDate != "2026-02-02" {
		t.Errorf("timeRange should be this week: %+v", plan.TimeRange)
	}
}

func TestHeuristicPlan_Default(t *testing.T) {
	p := NewPlanner(newTestRegistry(), nil)
	plan := p.HeuristicPlan(PlannerInput{
		Route:       RouteDataPresenter,
		Query:       "what sessions data do you have",
		TimeContext: testTimeContext(t),
	})
	if plan.Steps[0].Tool != "list_products" || plan.Steps[0].Args["limit"] != 20 {
		t.Errorf("default plan wrong: %+v", plan)
	}
}

func TestBuildPlan_LLMPlanAccepted(t *testing.T) {
	llm := staticLLM(`Here you go: {"route":"data_presenter","steps":[{"tool":"top_products","args":{"metric":"revenue","start_date":"2026-01-01","end_date":"2026-01-31","n":5}}]}`)
	p := NewPlanner(newTestRegistry(), llm)

	out, err := p.BuildPlan(context.Background(), PlannerInput{
		Route:       RouteDataPresenter,
		Query:       "top 5 products last month",
		TimeContext: testTimeContext(t),
	})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if out.UsedFallback {
		t.Fatal("valid LLM plan should not fall back")
	}
	args := out.Plan.Steps[0].Args
	if args["metric"] != "sales" || args["limit"] != 5 {
		t.Errorf("args not coerced during validation: %v", args)
	}
}

func TestBuildPlan_GarbageFallsBack(t *testing.T) {
	cases := []string{
		"I cannot produce a plan right now.",
		`{"route":"data_presenter","steps":[{"tool":"nuke_everything","args":{}}]}`,
		`{"route":"data_presenter","steps":[{"tool":"top_products","args":{"metric":"sales","startDate":"Jan 1","endDate":"2026-01-31"}}]}`,
		`{"route":"data_presenter","steps":[]}`,
	}
	for _, text := range cases {
		p := NewPlanner(newTestRegistry(), staticLLM(text))
		out, err := p.BuildPlan(context.Background(), PlannerInput{
			Route:       RouteDataPresenter,
			Query:       "top 10 products last month by sales",
			TimeContext: testTimeContext(t),
		})
		if err != nil {
			t.Fatalf("BuildPlan(%q): %v", text, err)
		}
		if !out.UsedFallback {
			t.Errorf("expected fallback for %q", text)
		}
		if out.RawText != text {
			t.Errorf("raw text must be preserved, got %q", out.RawText)
		}
		if len(out.Plan.Steps) == 0 {
			t.Errorf("fallback plan empty for %q", text)
		}
	}
}

func TestBuildPlan_TriesLaterCandidates(t *testing.T) {
	text := `{"thinking": "hmm"} {"route":"data_presenter","steps":[{"tool":"list_products","args":{"limit":5}}]}`
	p := NewPlanner(newTestRegistry(), staticLLM(text))
	out, err := p.BuildPlan(context.Background(), PlannerInput{
		Route:       RouteDataPresenter,
		Query:       "list products",
		TimeContext: testTimeContext(t),
	})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if out.UsedFallback {
		t.Error("second candidate was valid; fallback not expected")
	}
	if out.Plan.Steps[0].Tool != "list_products" {
		t.Errorf("wrong plan: %+v", out.Plan)
	}
}

func TestBuildPlan_TransportErrorPropagates(t *testing.T) {
	p := NewPlanner(newTestRegistry(), failingLLM())
	if _, err := p.BuildPlan(context.Background(), PlannerInput{
		Route:       RouteDataPresenter,
		Query:       "top products",
		TimeContext: testTimeContext(t),
	}); err == nil {
		t.Error("transport error must propagate")
	}
}

func TestValidatePlan_RejectsOversizedPlan(t *testing.T) {
	p := NewPlanner(newTestRegistry(), nil)
	steps := make([]PlanStep, 7)
	for i := range steps {
		steps[i] = PlanStep{Tool: "list_products", Args: map[string]any{"limit": 5}}
	}
	if _, err := p.ValidatePlan(Plan{Route: RouteDataPresenter, Steps: steps}, RouteDataPresenter); err == nil {
		t.Error("7-step plan must be rejected")
	}
}

func TestValidatePlan_TimeRangeRegex(t *testing.T) {
	p := NewPlanner(newTestRegistry(), nil)
	plan := Plan{
		Route:     RouteDataPresenter,
		TimeRange: &TimeRange{StartDate: "2026/01/01", EndDate: "2026-01-31"},
		Steps:     []PlanStep{{Tool: "list_products", Args: map[string]any{"limit": 5}}},
	}
	if _, err := p.ValidatePlan(plan, RouteDataPresenter); err == nil {
		t.Error("non-ISO timeRange must be rejected")
	}
}

func TestComposePrompt_IncludesMarkerAndCards(t *testing.T) {
	p := NewPlanner(newTestRegistry(), nil)
	prompt := p.composePrompt(PlannerInput{
		Route:          RouteDataPresenter,
		Query:          "top 10 products last month",
		AugmentedQuery: "top 10 products last month [augmented]",
		TimeContext:    testTimeContext(t),
		Session:        Session{SelectedProductIDs: []string{"P-007"}},
		MemoryCards: []memory.Card{
			{Text: "MEMORY CARD [domain_rule] (global)\nLast month is the previous calendar month.\nSignals: q=1.00 imp=0.60 used=0 last=never"},
		},
	})
	for _, want := range []string{"OUTPUT_JSON_PLAN", "top_products", "MEMORY CARD [domain_rule]", "selectedProductIds=P-007", "ROUTE: data_presenter", "[augmented]"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
