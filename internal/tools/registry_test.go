package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/venikman/sellerpilot/internal/dataset"
)

func testRegistry() *Registry {
	return NewRegistry(dataset.NewSeeded(42, "2025-10-01", 120))
}

func TestCoerceArgs_MetricSynonymsAndAliases(t *testing.T) {
	cases := []struct {
		name string
		in   map[string]any
		key  string
		want any
	}{
		{"revenue to sales", map[string]any{"metric": "Revenue"}, "metric", "sales"},
		{"gmv to sales", map[string]any{"metric": "gmv"}, "metric", "sales"},
		{"traffic to sessions", map[string]any{"metric": "traffic"}, "metric", "sessions"},
		{"cvr to conversion_rate", map[string]any{"metric": "cvr"}, "metric", "conversion_rate"},
		{"snake start_date", map[string]any{"start_date": "2026-01-01"}, "startDate", "2026-01-01"},
		{"n to limit", map[string]any{"n": 5.0}, "limit", 5.0},
		{"topN to limit", map[string]any{"topN": 5.0}, "limit", 5.0},
		{"grain daily to day", map[string]any{"grain": "daily"}, "grain", "day"},
		{"timestamp trimmed", map[string]any{"startDate": "2026-01-01T00:00:00Z"}, "startDate", "2026-01-01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := CoerceArgs(tc.in)
			if out[tc.key] != tc.want {
				t.Errorf("got %v, want %v (args %v)", out[tc.key], tc.want, out)
			}
		})
	}
}

func TestValidateTopProducts(t *testing.T) {
	r := testRegistry()
	def, _ := r.Get("top_products")

	args, err := def.Validate(map[string]any{
		"metric":     "revenue",
		"start_date": "2026-01-01",
		"end_date":   "2026-01-31",
		"n":          10.0,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if args["metric"] != "sales" || args["limit"] != 10 {
		t.Errorf("coerced args wrong: %v", args)
	}

	if _, err := def.Validate(map[string]any{"metric": "sales", "startDate": "01/01/2026", "endDate": "2026-01-31"}); err == nil {
		t.Error("expected error for non-ISO date")
	}
	if _, err := def.Validate(map[string]any{"metric": "sales", "startDate": "2026-01-01", "endDate": "2026-01-31", "limit": 101.0}); err == nil {
		t.Error("expected error for limit > 100")
	}
	if _, err := def.Validate(map[string]any{"metric": "clicks", "startDate": "2026-01-01", "endDate": "2026-01-31"}); err == nil {
		t.Error("expected error for unknown metric")
	}
	if _, err := def.Validate(map[string]any{"metric": "sales", "startDate": "2026-02-01", "endDate": "2026-01-31"}); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestValidateTimeseries(t *testing.T) {
	r := testRegistry()
	def, _ := r.Get("timeseries")

	args, err := def.Validate(map[string]any{
		"metric":      "traffic",
		"product_ids": []any{"P-001", "P-002"},
		"startDate":   "2026-01-01",
		"endDate":     "2026-01-31",
		"grain":       "daily",
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if args["metric"] != "sessions" || args["grain"] != "day" {
		t.Errorf("coercion failed: %v", args)
	}

	if _, err := def.Validate(map[string]any{"metric": "sessions", "productIds": []any{}, "startDate": "2026-01-01", "endDate": "2026-01-31"}); err == nil {
		t.Error("expected error for empty productIds")
	}
}

func TestValidateComputeChanges(t *testing.T) {
	r := testRegistry()
	def, _ := r.Get("compute_changes")

	if _, err := def.Validate(map[string]any{"points": []any{map[string]any{"date": "2026-01-01", "value": 1.0}}}); err == nil {
		t.Error("expected error for fewer than 2 points")
	}
	if _, err := def.Validate(map[string]any{"points": []any{
		map[string]any{"date": "2026-01-01", "value": 1.0},
		map[string]any{"date": "2026-01-02", "value": 2.0},
	}}); err != nil {
		t.Errorf("valid points rejected: %v", err)
	}
}

func TestExecute_TopProductsShape(t *testing.T) {
	r := testRegistry()
	def, _ := r.Get("top_products")

	args, err := def.Validate(map[string]any{"metric": "sales", "startDate": "2026-01-01", "endDate": "2026-01-31", "limit": 10.0})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	res, err := def.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	m, ok := res.(map[string]any)
	if !ok {
		t.Fatalf("result should be a generic map, got %T", res)
	}
	rows, ok := m["rows"].([]any)
	if !ok || len(rows) != 10 {
		t.Fatalf("expected 10 generic rows, got %v", m["rows"])
	}
	first, _ := rows[0].(map[string]any)
	if _, ok := first["productId"].(string); !ok {
		t.Errorf("row missing productId: %v", first)
	}
	if _, ok := first["metricValue"].(float64); !ok {
		t.Errorf("row missing metricValue: %v", first)
	}
}

func TestRegistry_PromptDumpListsAllTools(t *testing.T) {
	r := testRegistry()
	dump := r.PromptDump()
	for _, name := range []string{"list_products", "top_products", "timeseries", "benchmark", "compute_changes"} {
		if !strings.Contains(dump, name) {
			t.Errorf("prompt dump missing %s", name)
		}
	}
}
