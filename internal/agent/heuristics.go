package agent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/venikman/sellerpilot/internal/dataset"
	"github.com/venikman/sellerpilot/internal/timectx"
)

// Shared keyword heuristics used by the fallback planner and the evaluator.
// The evaluator deliberately re-derives everything from the raw query so it
// never trusts planner output.

var topNRe = regexp.MustCompile(`\btop\s+(\d{1,3})\b`)

// detectMetric maps query vocabulary onto a metric, defaulting to sales.
func detectMetric(query string) string {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "traffic") || strings.Contains(q, "session"):
		return dataset.MetricSessions
	case strings.Contains(q, "conversion") || strings.Contains(q, "cvr"):
		return dataset.MetricConversionRate
	case strings.Contains(q, "unit"):
		return dataset.MetricUnits
	default:
		return dataset.MetricSales
	}
}

// detectLimit extracts N from "top N", defaulting to def.
func detectLimit(query string, def int) int {
	m := topNRe.FindStringSubmatch(strings.ToLower(query))
	if m == nil {
		return def
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return def
	}
	if n > 100 {
		return 100
	}
	return n
}

// detectRange resolves "this|last week|month" phrases against the time
// context, defaulting to last month.
func detectRange(query string, tc timectx.TimeContext) TimeRange {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "this week"):
		return TimeRange{StartDate: tc.ThisWeekStart, EndDate: tc.ThisWeekEnd}
	case strings.Contains(q, "last week"):
		return TimeRange{StartDate: tc.LastWeekStart, EndDate: tc.LastWeekEnd}
	case strings.Contains(q, "this month"):
		return TimeRange{StartDate: tc.ThisMonthStart, EndDate: tc.ThisMonthEnd}
	case strings.Contains(q, "last month"):
		return TimeRange{StartDate: tc.LastMonthStart, EndDate: tc.LastMonthEnd}
	default:
		return TimeRange{StartDate: tc.LastMonthStart, EndDate: tc.LastMonthEnd}
	}
}

func mentionsAll(query string, words ...string) bool {
	q := strings.ToLower(query)
	for _, w := range words {
		if !strings.Contains(q, w) {
			return false
		}
	}
	return true
}

func mentionsAny(query string, words ...string) bool {
	q := strings.ToLower(query)
	for _, w := range words {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}
