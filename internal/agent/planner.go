package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/venikman/sellerpilot/internal/adapter"
	"github.com/venikman/sellerpilot/internal/dataset"
	"github.com/venikman/sellerpilot/internal/memory"
	"github.com/venikman/sellerpilot/internal/timectx"
	"github.com/venikman/sellerpilot/internal/tools"
)

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// promptTokenBudget caps the composed planning prompt; memory cards are
// dropped from the tail when the budget is exceeded.
const promptTokenBudget = 6000

// PlannerInput carries everything a planning call may draw on.
type PlannerInput struct {
	Route          string
	Query          string
	AugmentedQuery string
	TimeContext    timectx.TimeContext
	Session        Session
	MemoryCards    []memory.Card
}

// PlannerOutput is the planning result plus provenance.
type PlannerOutput struct {
	Plan         Plan
	RawText      string
	UsedFallback bool
}

// Planner produces validated tool plans, via the LLM when one is
// configured and via deterministic rules otherwise.
type Planner struct {
	registry *tools.Registry
	llm      adapter.LLMClient
	enc      *tiktoken.Tiktoken
	logger   *log.Logger
}

// NewPlanner creates a Planner. llm may be nil (heuristic-only planning).
func NewPlanner(registry *tools.Registry, llm adapter.LLMClient) *Planner {
	// Token counting is best-effort; planning works without the encoder.
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}
	return &Planner{
		registry: registry,
		llm:      llm,
		enc:      enc,
		logger:   log.New(os.Stderr, "[PLANNER] ", log.LstdFlags),
	}
}

// BuildPlan returns a validated plan. LLM parse or validation failures are
// never fatal: the heuristic plan is used and RawText preserved.
func (p *Planner) BuildPlan(ctx context.Context, in PlannerInput) (PlannerOutput, error) {
	if p.llm == nil {
		return PlannerOutput{Plan: p.HeuristicPlan(in), UsedFallback: true}, nil
	}

	prompt := p.composePrompt(in)
	completion, err := p.llm.Complete(ctx, adapter.CompletionRequest{
		Instructions:    planInstructions,
		Messages:        []adapter.Message{{Role: "user", Content: prompt}},
		Temperature:     0,
		MaxOutputTokens: 1200,
	})
	if err != nil {
		// Transport errors abort the run; only malformed output falls back.
		return PlannerOutput{}, fmt.Errorf("planner: %w", err)
	}

	if plan, ok := p.parsePlan(completion.Text, in.Route); ok {
		return PlannerOutput{Plan: plan, RawText: completion.Text}, nil
	}

	p.logger.Printf("no valid plan in LLM output, using heuristic fallback")
	return PlannerOutput{
		Plan:         p.HeuristicPlan(in),
		RawText:      completion.Text,
		UsedFallback: true,
	}, nil
}

const planInstructions = `You are a planning module for a seller-analytics assistant. ` +
	`Emit exactly one JSON object and nothing else.`

func (p *Planner) composePrompt(in PlannerInput) string {
	var sb strings.Builder
	sb.WriteString("OUTPUT_JSON_PLAN\n\n")
	sb.WriteString("Produce a JSON plan: {\"route\": string, \"timeRange\": {\"startDate\", \"endDate\"}?, \"steps\": [{\"tool\", \"args\"}], \"notes\"?}.\n")
	sb.WriteString("At most 6 steps. Every step must use a tool below with valid args.\n\n")
	sb.WriteString("TOOLS:\n")
	sb.WriteString(p.registry.PromptDump())
	fmt.Fprintf(&sb, "\nROUTE: %s\n", in.Route)
	fmt.Fprintf(&sb, "TODAY: %s (this week %s..%s, last week %s..%s, this month %s..%s, last month %s..%s)\n",
		in.TimeContext.Today,
		in.TimeContext.ThisWeekStart, in.TimeContext.ThisWeekEnd,
		in.TimeContext.LastWeekStart, in.TimeContext.LastWeekEnd,
		in.TimeContext.ThisMonthStart, in.TimeContext.ThisMonthEnd,
		in.TimeContext.LastMonthStart, in.TimeContext.LastMonthEnd)
	if len(in.Session.SelectedProductIDs) > 0 {
		fmt.Fprintf(&sb, "SESSION: selectedProductIds=%s\n", strings.Join(in.Session.SelectedProductIDs, ","))
	}

	base := sb.String()
	cards := p.fitCards(base, in.MemoryCards)
	if len(cards) > 0 {
		sb.WriteString("\nRELEVANT MEMORY:\n")
		for _, c := range cards {
			sb.WriteString(c.Text)
			sb.WriteString("\n\n")
		}
	}

	fmt.Fprintf(&sb, "\nQUERY: %s\n", in.AugmentedQuery)
	return sb.String()
}

// fitCards drops trailing cards until the prompt fits the token budget.
func (p *Planner) fitCards(base string, cards []memory.Card) []memory.Card {
	if p.enc == nil {
		return cards
	}
	used := len(p.enc.Encode(base, nil, nil))
	kept := cards[:0:0]
	for _, c := range cards {
		n := len(p.enc.Encode(c.Text, nil, nil))
		if used+n > promptTokenBudget {
			break
		}
		used += n
		kept = append(kept, c)
	}
	return kept
}

// parsePlan tries every balanced-brace candidate in order.
func (p *Planner) parsePlan(text, route string) (Plan, bool) {
	for _, candidate := range ExtractJSONObjects(text) {
		cleaned := StripTrailingCommas(candidate)
		var plan Plan
		if err := json.Unmarshal([]byte(cleaned), &plan); err != nil {
			continue
		}
		validated, err := p.ValidatePlan(plan, route)
		if err != nil {
			continue
		}
		return validated, true
	}
	return Plan{}, false
}

// ValidatePlan checks plan shape, tool existence, and per-step args
// (after coercion). The returned plan carries the coerced args.
func (p *Planner) ValidatePlan(plan Plan, route string) (Plan, error) {
	if plan.Route == "" {
		plan.Route = route
	}
	if len(plan.Steps) == 0 {
		return Plan{}, fmt.Errorf("planner: plan has no steps")
	}
	if len(plan.Steps) > tools.MaxPlanSteps {
		return Plan{}, fmt.Errorf("planner: plan has %d steps, max %d", len(plan.Steps), tools.MaxPlanSteps)
	}
	if tr := plan.TimeRange; tr != nil {
		if !isoDateRe.MatchString(tr.StartDate) || !isoDateRe.MatchString(tr.EndDate) {
			return Plan{}, fmt.Errorf("planner: timeRange dates must be YYYY-MM-DD")
		}
	}
	for i, step := range plan.Steps {
		def, ok := p.registry.Get(step.Tool)
		if !ok {
			return Plan{}, fmt.Errorf("planner: step %d: unknown tool %q", i, step.Tool)
		}
		args := step.Args
		if args == nil {
			args = map[string]any{}
		}
		coerced, err := def.Validate(args)
		if err != nil {
			return Plan{}, fmt.Errorf("planner: step %d: %w", i, err)
		}
		plan.Steps[i].Args = coerced
	}
	return plan, nil
}

// HeuristicPlan is the deterministic rule-based plan builder.
func (p *Planner) HeuristicPlan(in PlannerInput) Plan {
	metric := detectMetric(in.Query)
	limit := detectLimit(in.Query, 10)
	tr := detectRange(in.Query, in.TimeContext)

	switch {
	case mentionsAll(in.Query, "those products") && len(in.Session.SelectedProductIDs) > 0:
		return p.mustValidate(Plan{
			Route:     in.Route,
			TimeRange: &tr,
			Steps: []PlanStep{{
				Tool: "timeseries",
				Args: map[string]any{
					"metric":     metric,
					"productIds": in.Session.SelectedProductIDs,
					"startDate":  tr.StartDate,
					"endDate":    tr.EndDate,
					"grain":      "day",
				},
			}},
			Notes: "heuristic: timeseries over selected products",
		}, in.Route)

	case mentionsAll(in.Query, "why", "drop", "wow"):
		thisWeek := TimeRange{StartDate: in.TimeContext.ThisWeekStart, EndDate: in.TimeContext.ThisWeekEnd}
		lastWeek := TimeRange{StartDate: in.TimeContext.LastWeekStart, EndDate: in.TimeContext.LastWeekEnd}
		var steps []PlanStep
		for _, m := range []string{dataset.MetricSales, dataset.MetricSessions, dataset.MetricUnits} {
			for _, week := range []TimeRange{thisWeek, lastWeek} {
				steps = append(steps, PlanStep{
					Tool: "top_products",
					Args: map[string]any{
						"metric":    m,
						"startDate": week.StartDate,
						"endDate":   week.EndDate,
						"limit":     50,
					},
				})
			}
		}
		return p.mustValidate(Plan{
			Route:     in.Route,
			TimeRange: &thisWeek,
			Steps:     steps,
			Notes:     "heuristic: week-over-week top comparison",
		}, in.Route)

	case mentionsAll(in.Query, "top", "products") || topNRe.MatchString(strings.ToLower(in.Query)):
		return p.mustValidate(Plan{
			Route:     in.Route,
			TimeRange: &tr,
			Steps: []PlanStep{{
				Tool: "top_products",
				Args: map[string]any{
					"metric":    metric,
					"startDate": tr.StartDate,
					"endDate":   tr.EndDate,
					"limit":     limit,
				},
			}},
			Notes: "heuristic: top products ranking",
		}, in.Route)

	default:
		return p.mustValidate(Plan{
			Route: in.Route,
			Steps: []PlanStep{{
				Tool: "list_products",
				Args: map[string]any{"limit": 20},
			}},
			Notes: "heuristic: product listing",
		}, in.Route)
	}
}

// mustValidate normalizes heuristic args through the same validation path
// as LLM plans. Heuristic plans are well-formed by construction.
func (p *Planner) mustValidate(plan Plan, route string) Plan {
	validated, err := p.ValidatePlan(plan, route)
	if err != nil {
		p.logger.Printf("heuristic plan failed validation: %v", err)
		return plan
	}
	return validated
}
