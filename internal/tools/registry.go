// Package tools defines the typed tool surface over the analytics dataset:
// schemas, argument coercion and validation, executors, and the canonical
// invocation signature used for result caching.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/venikman/sellerpilot/internal/dataset"
)

// CacheNamespace prefixes every signature written to the tool-result cache.
const CacheNamespace = "toolcache"

// MaxPlanSteps bounds how many plan steps the executor will run.
const MaxPlanSteps = 6

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Definition describes one callable tool.
type Definition struct {
	Name        string
	Description string
	// ArgsSchema is a human-readable schema string included in planner prompts.
	ArgsSchema string
	// Validate coerces args and reports the first schema violation.
	Validate func(args map[string]any) (map[string]any, error)
	// Execute runs the tool against the dataset with validated args.
	Execute func(ctx context.Context, args map[string]any) (any, error)
}

// Registry maps tool names to their definitions.
type Registry struct {
	ds    dataset.Query
	order []string
	defs  map[string]Definition
}

// NewRegistry builds the five-tool registry over a dataset.
func NewRegistry(ds dataset.Query) *Registry {
	r := &Registry{ds: ds, defs: map[string]Definition{}}
	r.register(Definition{
		Name:        "list_products",
		Description: "List catalog products, optionally filtered by category.",
		ArgsSchema:  `{category?: string, limit?: int (max 500)}`,
		Validate:    r.validateListProducts,
		Execute:     r.execListProducts,
	})
	r.register(Definition{
		Name:        "top_products",
		Description: "Rank products by a metric total over a date range, descending.",
		ArgsSchema:  `{metric: "sales"|"units"|"sessions"|"conversion_rate", startDate: "YYYY-MM-DD", endDate: "YYYY-MM-DD", limit: int 1..100}`,
		Validate:    r.validateTopProducts,
		Execute:     r.execTopProducts,
	})
	r.register(Definition{
		Name:        "timeseries",
		Description: "Daily per-product points for a metric over a date range.",
		ArgsSchema:  `{metric: string, productIds: [string, ...], startDate: "YYYY-MM-DD", endDate: "YYYY-MM-DD", grain: "day"}`,
		Validate:    r.validateTimeseries,
		Execute:     r.execTimeseries,
	})
	r.register(Definition{
		Name:        "benchmark",
		Description: "Category average of a metric over a date range.",
		ArgsSchema:  `{metric: string, category: string, startDate: "YYYY-MM-DD", endDate: "YYYY-MM-DD"}`,
		Validate:    r.validateBenchmark,
		Execute:     r.execBenchmark,
	})
	r.register(Definition{
		Name:        "compute_changes",
		Description: "Start/end/absolute/percent change over an ordered series of points.",
		ArgsSchema:  `{points: [{date: "YYYY-MM-DD", value: number}, ...] (min 2)}`,
		Validate:    r.validateComputeChanges,
		Execute:     r.execComputeChanges,
	})
	return r
}

func (r *Registry) register(d Definition) {
	r.order = append(r.order, d.Name)
	r.defs[d.Name] = d
}

// Get returns the definition for a tool name.
func (r *Registry) Get(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// PromptDump renders the registry for inclusion in a planner prompt.
func (r *Registry) PromptDump() string {
	var sb strings.Builder
	for _, name := range r.order {
		d := r.defs[name]
		fmt.Fprintf(&sb, "- %s: %s\n  args: %s\n", d.Name, d.Description, d.ArgsSchema)
	}
	return sb.String()
}

// ---- Coercion ----

var keyAliases = map[string]string{
	"start_date":  "startDate",
	"end_date":    "endDate",
	"product_ids": "productIds",
	"n":           "limit",
	"topN":        "limit",
	"top_n":       "limit",
}

var metricSynonyms = map[string]string{
	"revenue":    dataset.MetricSales,
	"gmv":        dataset.MetricSales,
	"traffic":    dataset.MetricSessions,
	"visits":     dataset.MetricSessions,
	"visit":      dataset.MetricSessions,
	"conversion": dataset.MetricConversionRate,
	"cvr":        dataset.MetricConversionRate,
}

// CoerceArgs rewrites common aliases before validation: snake_case keys,
// metric synonyms, "daily" grain, and timestamp-suffixed dates.
func CoerceArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if canon, ok := keyAliases[k]; ok {
			k = canon
		}
		out[k] = v
	}

	if m, ok := out["metric"].(string); ok {
		m = strings.ToLower(strings.TrimSpace(m))
		if canon, ok := metricSynonyms[m]; ok {
			m = canon
		}
		out["metric"] = m
	}
	if g, ok := out["grain"].(string); ok && strings.EqualFold(g, "daily") {
		out["grain"] = "day"
	}
	for _, k := range []string{"startDate", "endDate"} {
		if s, ok := out[k].(string); ok && len(s) > 10 {
			out[k] = s[:10]
		}
	}
	return out
}

func stringArg(args map[string]any, key string) (string, bool) {
	s, ok := args[key].(string)
	return strings.TrimSpace(s), ok && strings.TrimSpace(s) != ""
}

func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true
		}
	case string:
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

func stringSliceArg(args map[string]any, key string) []string {
	var out []string
	switch v := args[key].(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}

func requireDateRange(tool string, args map[string]any) (string, string, error) {
	start, ok := stringArg(args, "startDate")
	if !ok || !isoDateRe.MatchString(start) {
		return "", "", fmt.Errorf("tools: %s: startDate must be YYYY-MM-DD, got %v", tool, args["startDate"])
	}
	end, ok := stringArg(args, "endDate")
	if !ok || !isoDateRe.MatchString(end) {
		return "", "", fmt.Errorf("tools: %s: endDate must be YYYY-MM-DD, got %v", tool, args["endDate"])
	}
	if end < start {
		return "", "", fmt.Errorf("tools: %s: endDate %s before startDate %s", tool, end, start)
	}
	return start, end, nil
}

func requireMetric(tool string, args map[string]any) (string, error) {
	m, ok := stringArg(args, "metric")
	if !ok {
		return "", fmt.Errorf("tools: %s: metric is required", tool)
	}
	if !dataset.ValidMetric(m) {
		return "", fmt.Errorf("tools: %s: unknown metric %q", tool, m)
	}
	return m, nil
}

// ---- Per-tool validation ----

func (r *Registry) validateListProducts(args map[string]any) (map[string]any, error) {
	args = CoerceArgs(args)
	out := map[string]any{}
	if cat, ok := stringArg(args, "category"); ok {
		out["category"] = cat
	}
	limit := 500
	if n, ok := intArg(args, "limit"); ok {
		if n < 1 || n > 500 {
			return nil, fmt.Errorf("tools: list_products: limit must be 1..500, got %d", n)
		}
		limit = n
	}
	out["limit"] = limit
	return out, nil
}

func (r *Registry) validateTopProducts(args map[string]any) (map[string]any, error) {
	args = CoerceArgs(args)
	metric, err := requireMetric("top_products", args)
	if err != nil {
		return nil, err
	}
	start, end, err := requireDateRange("top_products", args)
	if err != nil {
		return nil, err
	}
	limit := 10
	if n, ok := intArg(args, "limit"); ok {
		if n < 1 || n > 100 {
			return nil, fmt.Errorf("tools: top_products: limit must be 1..100, got %d", n)
		}
		limit = n
	}
	return map[string]any{"metric": metric, "startDate": start, "endDate": end, "limit": limit}, nil
}

func (r *Registry) validateTimeseries(args map[string]any) (map[string]any, error) {
	args = CoerceArgs(args)
	metric, err := requireMetric("timeseries", args)
	if err != nil {
		return nil, err
	}
	start, end, err := requireDateRange("timeseries", args)
	if err != nil {
		return nil, err
	}
	ids := stringSliceArg(args, "productIds")
	if len(ids) == 0 {
		return nil, fmt.Errorf("tools: timeseries: productIds must have at least one id")
	}
	grain := "day"
	if g, ok := stringArg(args, "grain"); ok {
		if g != "day" {
			return nil, fmt.Errorf("tools: timeseries: unsupported grain %q", g)
		}
		grain = g
	}
	return map[string]any{"metric": metric, "productIds": ids, "startDate": start, "endDate": end, "grain": grain}, nil
}

func (r *Registry) validateBenchmark(args map[string]any) (map[string]any, error) {
	args = CoerceArgs(args)
	metric, err := requireMetric("benchmark", args)
	if err != nil {
		return nil, err
	}
	start, end, err := requireDateRange("benchmark", args)
	if err != nil {
		return nil, err
	}
	cat, ok := stringArg(args, "category")
	if !ok {
		return nil, fmt.Errorf("tools: benchmark: category is required")
	}
	return map[string]any{"metric": metric, "category": cat, "startDate": start, "endDate": end}, nil
}

func (r *Registry) validateComputeChanges(args map[string]any) (map[string]any, error) {
	args = CoerceArgs(args)
	raw, ok := args["points"].([]any)
	if !ok {
		// Allow pre-typed points from internal callers.
		if typed, okT := args["points"].([]dataset.Point); okT {
			raw = make([]any, len(typed))
			for i, p := range typed {
				raw[i] = map[string]any{"date": p.Date, "value": p.Value}
			}
		}
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("tools: compute_changes: points must have at least 2 entries")
	}
	points := make([]any, 0, len(raw))
	for i, e := range raw {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("tools: compute_changes: point %d is not an object", i)
		}
		if _, ok := m["value"].(float64); !ok {
			if _, ok := intOf(m["value"]); !ok {
				return nil, fmt.Errorf("tools: compute_changes: point %d missing numeric value", i)
			}
		}
		points = append(points, m)
	}
	return map[string]any{"points": points}, nil
}

func intOf(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case float64:
		return int(t), true
	}
	return 0, false
}

// ---- Executors ----

// jsonValue round-trips v through encoding/json so fresh results and cached
// results share an identical generic shape.
func jsonValue(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	_ = json.Unmarshal(b, &out)
	return out
}

func (r *Registry) execListProducts(_ context.Context, args map[string]any) (any, error) {
	cat, _ := stringArg(args, "category")
	limit, _ := intArg(args, "limit")
	return jsonValue(map[string]any{"products": r.ds.ListProducts(cat, limit)}), nil
}

func (r *Registry) execTopProducts(_ context.Context, args map[string]any) (any, error) {
	metric, _ := stringArg(args, "metric")
	start, _ := stringArg(args, "startDate")
	end, _ := stringArg(args, "endDate")
	limit, _ := intArg(args, "limit")
	return jsonValue(map[string]any{"rows": r.ds.TopProducts(metric, start, end, limit)}), nil
}

func (r *Registry) execTimeseries(_ context.Context, args map[string]any) (any, error) {
	metric, _ := stringArg(args, "metric")
	start, _ := stringArg(args, "startDate")
	end, _ := stringArg(args, "endDate")
	ids := stringSliceArg(args, "productIds")
	return jsonValue(map[string]any{"series": r.ds.Timeseries(metric, ids, start, end)}), nil
}

func (r *Registry) execBenchmark(_ context.Context, args map[string]any) (any, error) {
	metric, _ := stringArg(args, "metric")
	cat, _ := stringArg(args, "category")
	start, _ := stringArg(args, "startDate")
	end, _ := stringArg(args, "endDate")
	return jsonValue(r.ds.Benchmark(metric, cat, start, end)), nil
}

func (r *Registry) execComputeChanges(_ context.Context, args map[string]any) (any, error) {
	raw, _ := args["points"].([]any)
	points := make([]dataset.Point, 0, len(raw))
	for _, e := range raw {
		m, _ := e.(map[string]any)
		p := dataset.Point{}
		if s, ok := m["date"].(string); ok {
			p.Date = s
		}
		switch v := m["value"].(type) {
		case float64:
			p.Value = v
		case int:
			p.Value = float64(v)
		}
		points = append(points, p)
	}
	return jsonValue(r.ds.ComputeChanges(points)), nil
}
