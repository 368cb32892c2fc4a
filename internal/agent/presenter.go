package agent

import (
	"fmt"
	"strings"
)

// maxSelectedProducts bounds how many product ids the presenter pins into
// the session for "those products" follow-ups.
const maxSelectedProducts = 20

// Presenter renders tool results deterministically, with no LLM involved.
type Presenter struct{}

// NewPresenter creates a Presenter.
func NewPresenter() *Presenter {
	return &Presenter{}
}

// Render produces the response text and the updated session. Priority:
// top_products, then timeseries, then list_products, then "No results."
func (p *Presenter) Render(plan Plan, results map[string]any, sess Session) (string, Session) {
	if rows := genericRows(results["top_products"], "rows"); rows != nil {
		return p.renderTopProducts(plan, rows, &sess), sess
	}
	if series := genericRows(results["timeseries"], "series"); series != nil {
		return p.renderTimeseries(series), sess
	}
	if products := genericRows(results["list_products"], "products"); products != nil {
		return p.renderProducts(products), sess
	}
	return "No results.", sess
}

func (p *Presenter) renderTopProducts(plan Plan, rows []map[string]any, sess *Session) string {
	var sb strings.Builder
	header := "Top products"
	if plan.TimeRange != nil {
		header = fmt.Sprintf("Top products (%s to %s)", plan.TimeRange.StartDate, plan.TimeRange.EndDate)
	}
	sb.WriteString(header + "\n")

	var selected []string
	for i, row := range rows {
		id, _ := row["productId"].(string)
		name, _ := row["productName"].(string)
		metric, _ := row["metric"].(string)
		value, _ := row["metricValue"].(float64)
		fmt.Fprintf(&sb, "%d. %s (%s) — %s %.2f\n", i+1, name, id, metric, value)
		if len(selected) < maxSelectedProducts && id != "" {
			selected = append(selected, id)
		}
	}
	if len(rows) == 0 {
		sb.WriteString("(no rows)\n")
	}
	if len(selected) > 0 {
		sess.SelectedProductIDs = selected
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (p *Presenter) renderTimeseries(series []map[string]any) string {
	var sb strings.Builder
	sb.WriteString("Daily series\n")
	for _, s := range series {
		id, _ := s["productId"].(string)
		name, _ := s["productName"].(string)
		metric, _ := s["metric"].(string)
		points, _ := s["points"].([]any)
		if len(points) == 0 {
			fmt.Fprintf(&sb, "- %s (%s): no data returned\n", name, id)
			continue
		}
		last, _ := points[len(points)-1].(map[string]any)
		lastDate, _ := last["date"].(string)
		lastValue, _ := last["value"].(float64)
		fmt.Fprintf(&sb, "- %s (%s): %d points of %s, latest %s = %.2f\n",
			name, id, len(points), metric, lastDate, lastValue)
	}
	if len(series) == 0 {
		sb.WriteString("(no series)\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (p *Presenter) renderProducts(products []map[string]any) string {
	var sb strings.Builder
	sb.WriteString("Products\n")
	for _, row := range products {
		id, _ := row["id"].(string)
		name, _ := row["name"].(string)
		category, _ := row["category"].(string)
		fmt.Fprintf(&sb, "- %s (%s, %s)\n", name, id, category)
	}
	if len(products) == 0 {
		sb.WriteString("(none)\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// genericRows pulls the named []object field out of a generic tool result.
// Returns nil when the result is absent or shaped differently; an empty
// slice means the tool ran and returned nothing.
func genericRows(result any, field string) []map[string]any {
	m, ok := result.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := m[field].([]any)
	if !ok {
		// A tool that ran but found nothing serializes the slice as null.
		if v, present := m[field]; present && v == nil {
			return []map[string]any{}
		}
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, e := range raw {
		if obj, ok := e.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}
