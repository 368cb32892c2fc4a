package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"regexp"
	"strings"

	"github.com/venikman/sellerpilot/internal/dataset"
	"github.com/venikman/sellerpilot/internal/memory"
	"github.com/venikman/sellerpilot/internal/timectx"
	"github.com/venikman/sellerpilot/internal/tools"
)

// Eval spec kinds.
const (
	SpecTopProducts = "top_products"
	SpecTimeseries  = "timeseries"
	SpecWhyDropWoW  = "why_drop_wow"
)

// Quality thresholds for write proposals.
const (
	GoodQualityThreshold = 0.8
	BadQualityThreshold  = 0.5
)

// EvalSpec is the ground-truth expectation inferred from the raw query.
type EvalSpec struct {
	Kind   string
	Metric string
	Limit  int
	Range  TimeRange
}

// Evaluator scores runs against re-derived ground truth and proposes
// memory writes. It re-derives the time context from the query and today;
// it never trusts the planner.
type Evaluator struct {
	registry *tools.Registry
	logger   *log.Logger
}

// NewEvaluator creates an Evaluator over the canonical tool registry.
func NewEvaluator(registry *tools.Registry) *Evaluator {
	return &Evaluator{
		registry: registry,
		logger:   log.New(os.Stderr, "[EVAL] ", log.LstdFlags),
	}
}

// InferSpec derives the expected canonical call from the query text.
// Returns nil when the query matches no scoring template.
func (e *Evaluator) InferSpec(query, today string) *EvalSpec {
	tc, err := timectx.Get(today)
	if err != nil {
		return nil
	}

	switch {
	case mentionsAll(query, "why", "drop", "wow"):
		return &EvalSpec{Kind: SpecWhyDropWoW, Metric: detectMetric(query)}

	case mentionsAny(query, "traffic", "session") && mentionsAll(query, "those products"):
		return &EvalSpec{
			Kind:   SpecTimeseries,
			Metric: dataset.MetricSessions,
			Range:  detectRange(query, tc),
		}

	case mentionsAll(query, "top", "products") &&
		mentionsAny(query, "last month", "this month", "last week"):
		limit := detectLimit(query, 10)
		return &EvalSpec{
			Kind:   SpecTopProducts,
			Metric: detectMetric(query),
			Limit:  limit,
			Range:  detectRange(query, tc),
		}
	}
	return nil
}

// Evaluate scores a run. A nil result means the query has no ground-truth
// template and the run is simply not scored.
func (e *Evaluator) Evaluate(ctx context.Context, query, today string, plan *Plan, toolCalls []ToolCallRecord) *EvalResult {
	spec := e.InferSpec(query, today)
	if spec == nil {
		return nil
	}

	switch spec.Kind {
	case SpecTopProducts:
		return e.scoreTopProducts(ctx, spec, toolCalls)
	case SpecTimeseries:
		return e.scoreTimeseries(spec, toolCalls)
	case SpecWhyDropWoW:
		return e.scoreWhyDropWoW(ctx, spec, today, toolCalls)
	}
	return nil
}

func finish(kind string, correctness, completeness, relevance float64, notes []string) *EvalResult {
	quality := math.Round((correctness+completeness+relevance)/3*100) / 100
	return &EvalResult{
		SpecKind: kind,
		Scores: Scores{
			Correctness:  correctness,
			Completeness: completeness,
			Relevance:    relevance,
			Quality:      quality,
		},
		Notes: notes,
	}
}

// nearlyEqual compares with relative tolerance against max(1, |a|, |b|).
func nearlyEqual(a, b, tol float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= tol*scale
}

func firstCall(toolCalls []ToolCallRecord, tool string) *ToolCallRecord {
	for i := range toolCalls {
		if toolCalls[i].Tool == tool {
			return &toolCalls[i]
		}
	}
	return nil
}

func (e *Evaluator) reinvoke(ctx context.Context, tool string, args map[string]any) []map[string]any {
	def, ok := e.registry.Get(tool)
	if !ok {
		return nil
	}
	validated, err := def.Validate(args)
	if err != nil {
		return nil
	}
	result, err := def.Execute(ctx, validated)
	if err != nil {
		return nil
	}
	return genericRows(result, "rows")
}

func argsMatchSpec(args map[string]any, spec *EvalSpec) bool {
	metric, _ := args["metric"].(string)
	start, _ := args["startDate"].(string)
	end, _ := args["endDate"].(string)
	return metric == spec.Metric && start == spec.Range.StartDate && end == spec.Range.EndDate
}

func (e *Evaluator) scoreTopProducts(ctx context.Context, spec *EvalSpec, toolCalls []ToolCallRecord) *EvalResult {
	call := firstCall(toolCalls, "top_products")
	if call == nil {
		return finish(spec.Kind, 0, 0, 0, []string{"expected a top_products call, none executed"})
	}

	relevance := 0.4
	if argsMatchSpec(call.Args, spec) {
		relevance = 1
	}

	actual := genericRows(call.Result, "rows")
	if len(actual) == 0 {
		return finish(spec.Kind, 0, 0, 0.2, []string{"top_products returned no rows"})
	}

	expected := e.reinvoke(ctx, "top_products", map[string]any{
		"metric":    spec.Metric,
		"startDate": spec.Range.StartDate,
		"endDate":   spec.Range.EndDate,
		"limit":     spec.Limit,
	})

	var notes []string
	if relevance < 1 {
		notes = append(notes, fmt.Sprintf("args diverge from expectation (want metric=%s %s..%s)",
			spec.Metric, spec.Range.StartDate, spec.Range.EndDate))
	}

	n := spec.Limit
	if len(expected) < n {
		n = len(expected)
	}
	if len(actual) < n {
		n = len(actual)
	}

	correctness := 0.0
	if n > 0 {
		matches := 0
		for i := 0; i < n; i++ {
			expID, _ := expected[i]["productId"].(string)
			actID, _ := actual[i]["productId"].(string)
			expVal, _ := expected[i]["metricValue"].(float64)
			actVal, _ := actual[i]["metricValue"].(float64)
			if expID == actID && nearlyEqual(expVal, actVal, 0.01) {
				matches++
			}
		}
		correctness = float64(matches) / float64(n)
		if matches < n {
			notes = append(notes, fmt.Sprintf("%d/%d ranked rows diverge from ground truth", n-matches, n))
		}
	}

	completeness := math.Min(1, float64(len(actual))/float64(spec.Limit))
	if completeness < 1 {
		notes = append(notes, fmt.Sprintf("returned %d rows of %d requested", len(actual), spec.Limit))
	}

	return finish(spec.Kind, correctness, completeness, relevance, notes)
}

func (e *Evaluator) scoreTimeseries(spec *EvalSpec, toolCalls []ToolCallRecord) *EvalResult {
	call := firstCall(toolCalls, "timeseries")
	if call == nil {
		return finish(spec.Kind, 0, 0, 0, []string{"expected a timeseries call, none executed"})
	}

	relevance := 0.4
	if argsMatchSpec(call.Args, spec) {
		relevance = 1
	}

	var notes []string
	if relevance < 1 {
		notes = append(notes, fmt.Sprintf("args diverge from expectation (want metric=%s %s..%s)",
			spec.Metric, spec.Range.StartDate, spec.Range.EndDate))
	}

	series := genericRows(call.Result, "series")
	requested := 0
	if ids, ok := call.Args["productIds"].([]string); ok {
		requested = len(ids)
	} else if ids, ok := call.Args["productIds"].([]any); ok {
		requested = len(ids)
	}

	completeness := 0.5
	if requested > 0 {
		completeness = math.Min(1, float64(len(series))/float64(requested))
	}
	if len(series) == 0 {
		notes = append(notes, "timeseries returned no series")
		return finish(spec.Kind, 0, 0, relevance, notes)
	}

	totalPoints, inRange := 0, 0
	for _, s := range series {
		points, _ := s["points"].([]any)
		for _, p := range points {
			obj, _ := p.(map[string]any)
			date, _ := obj["date"].(string)
			totalPoints++
			if date >= spec.Range.StartDate && date <= spec.Range.EndDate {
				inRange++
			}
		}
	}
	correctness := 0.0
	if totalPoints > 0 {
		correctness = float64(inRange) / float64(totalPoints)
		if inRange < totalPoints {
			notes = append(notes, fmt.Sprintf("%d/%d points fall outside the expected range", totalPoints-inRange, totalPoints))
		}
	} else {
		notes = append(notes, "series contained no points")
	}
	if completeness < 1 {
		notes = append(notes, fmt.Sprintf("returned %d series for %d requested products", len(series), requested))
	}

	return finish(spec.Kind, correctness, completeness, relevance, notes)
}

func (e *Evaluator) scoreWhyDropWoW(ctx context.Context, spec *EvalSpec, today string, toolCalls []ToolCallRecord) *EvalResult {
	tc, err := timectx.Get(today)
	if err != nil {
		return finish(spec.Kind, 0, 0, 0, []string{"invalid today: " + today})
	}
	thisWeek := TimeRange{StartDate: tc.ThisWeekStart, EndDate: tc.ThisWeekEnd}
	lastWeek := TimeRange{StartDate: tc.LastWeekStart, EndDate: tc.LastWeekEnd}

	var thisCall, lastCall *ToolCallRecord
	hasTimeseries := false
	hasChanges := false
	for i := range toolCalls {
		call := &toolCalls[i]
		switch call.Tool {
		case "top_products":
			metric, _ := call.Args["metric"].(string)
			start, _ := call.Args["startDate"].(string)
			end, _ := call.Args["endDate"].(string)
			if metric != spec.Metric {
				continue
			}
			if start == thisWeek.StartDate && end == thisWeek.EndDate && thisCall == nil {
				thisCall = call
			}
			if start == lastWeek.StartDate && end == lastWeek.EndDate && lastCall == nil {
				lastCall = call
			}
		case "timeseries":
			hasTimeseries = true
		case "compute_changes":
			hasChanges = true
		}
	}

	weeklyComparison := thisCall != nil && lastCall != nil
	drilldown := hasTimeseries && hasChanges

	relevance := 0.5
	if weeklyComparison || drilldown {
		relevance = 1
	}

	completeness := 0.2
	switch {
	case drilldown:
		completeness = 0.9
	case weeklyComparison:
		completeness = 0.8
	case hasTimeseries:
		completeness = 0.5
	case hasChanges:
		completeness = 0.3
	}

	var notes []string
	if !weeklyComparison && !drilldown {
		notes = append(notes, "neither weekly top-comparison nor timeseries+compute_changes drilldown present")
	}

	correctness := 0.2
	if weeklyComparison {
		comparable, matches := 0, 0
		for _, pair := range []struct {
			call *ToolCallRecord
			week TimeRange
		}{{thisCall, thisWeek}, {lastCall, lastWeek}} {
			actual := genericRows(pair.call.Result, "rows")
			expected := e.reinvoke(ctx, "top_products", map[string]any{
				"metric":    spec.Metric,
				"startDate": pair.week.StartDate,
				"endDate":   pair.week.EndDate,
				"limit":     1,
			})
			if len(actual) == 0 || len(expected) == 0 {
				continue
			}
			comparable++
			actID, _ := actual[0]["productId"].(string)
			expID, _ := expected[0]["productId"].(string)
			if actID == expID {
				matches++
			}
		}
		if comparable > 0 {
			correctness = float64(matches) / float64(comparable)
			if matches < comparable {
				notes = append(notes, "weekly leader differs from ground truth")
			}
		}
	} else if drilldown {
		correctness = 0.6
	}

	return finish(spec.Kind, correctness, completeness, relevance, notes)
}

// ---- Write proposals ----

var (
	canonDateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}(?:[T ][0-9:.]+Z?)?`)
	canonNumRe  = regexp.MustCompile(`\d+(?:\.\d+)?`)
	canonWsRe   = regexp.MustCompile(`\s+`)
)

// CanonicalizeQuery lowercases and abstracts dates and numbers so similar
// queries dedupe onto one memory row.
func CanonicalizeQuery(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	q = canonDateRe.ReplaceAllString(q, "<date>")
	q = canonNumRe.ReplaceAllString(q, "<n>")
	return canonWsRe.ReplaceAllString(q, " ")
}

// ProposeWrites turns an evaluation into dedupable memory items for the
// user's scope. All writes flow through UpsertMemoryItem.
func (e *Evaluator) ProposeWrites(userID, query string, res *EvalResult, plan *Plan, toolCalls []ToolCallRecord) []memory.UpsertInput {
	if res == nil {
		return nil
	}
	scope := memory.UserScope(userID)
	canon := CanonicalizeQuery(query)
	quality := res.Scores.Quality

	toolNames := make([]string, 0, len(toolCalls))
	for _, c := range toolCalls {
		toolNames = append(toolNames, c.Tool)
	}
	route := ""
	if plan != nil {
		route = plan.Route
	}

	switch {
	case quality >= GoodQualityThreshold:
		writes := []memory.UpsertInput{{
			Scope:      scope,
			Kind:       memory.KindQueryPattern,
			Text:       fmt.Sprintf("Query pattern %q answered well via route=%s tools=[%s].", canon, route, strings.Join(toolNames, ",")),
			Importance: 0.35,
			Quality:    quality,
		}}
		if call := firstCall(toolCalls, "top_products"); call != nil {
			argsJSON := tools.StableJSON(call.Args)
			writes = append(writes, memory.UpsertInput{
				Scope:      scope,
				Kind:       memory.KindToolTemplate,
				Text:       fmt.Sprintf("For %q call top_products with args %s.", canon, argsJSON),
				Meta:       map[string]string{"tool": "top_products", "args": argsJSON},
				Importance: 0.45,
				Quality:    quality,
			})
		}
		return writes

	case quality <= BadQualityThreshold:
		meta := map[string]string{}
		if plan != nil {
			if b, err := json.Marshal(plan); err == nil {
				meta["plan"] = string(b)
			}
		}
		if b, err := json.Marshal(toolCalls); err == nil {
			meta["toolCalls"] = string(b)
		}
		return []memory.UpsertInput{{
			Scope:      scope,
			Kind:       memory.KindFailureCase,
			Text:       fmt.Sprintf("Query %q scored %.2f: %s", canon, quality, strings.Join(res.Notes, "; ")),
			Meta:       meta,
			Importance: 0.4,
			Quality:    quality,
		}}

	default:
		return []memory.UpsertInput{{
			Scope:      scope,
			Kind:       memory.KindQueryPattern,
			Text:       fmt.Sprintf("Query pattern %q partially answered via route=%s tools=[%s].", canon, route, strings.Join(toolNames, ",")),
			Importance: 0.2,
			Quality:    quality,
		}}
	}
}
