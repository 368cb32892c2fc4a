// Package dataset provides the seller-analytics tables behind the tool
// registry: a deterministic, seeded set of products with daily sales,
// units, and traffic rows, plus the aggregation queries over them.
package dataset

import (
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"
)

// Metric names accepted by every aggregation query.
const (
	MetricSales          = "sales"
	MetricUnits          = "units"
	MetricSessions       = "sessions"
	MetricConversionRate = "conversion_rate"
)

// ValidMetric reports whether m is a recognised metric.
func ValidMetric(m string) bool {
	switch m {
	case MetricSales, MetricUnits, MetricSessions, MetricConversionRate:
		return true
	}
	return false
}

// Product is a catalog entry.
type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// TopRow is one ranked row from TopProducts.
type TopRow struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Metric      string  `json:"metric"`
	MetricValue float64 `json:"metricValue"`
}

// Point is a dated metric value.
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Series is the per-product daily timeseries for one metric.
type Series struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Metric      string  `json:"metric"`
	Points      []Point `json:"points"`
}

// BenchmarkResult is the category average of a metric over a range.
type BenchmarkResult struct {
	Category  string  `json:"category"`
	Metric    string  `json:"metric"`
	StartDate string  `json:"startDate"`
	EndDate   string  `json:"endDate"`
	Average   float64 `json:"average"`
}

// Changes summarises the movement between the first and last point.
type Changes struct {
	StartValue float64 `json:"startValue"`
	EndValue   float64 `json:"endValue"`
	AbsChange  float64 `json:"absChange"`
	PctChange  float64 `json:"pctChange"`
}

// Query is the read-only surface the tool registry executes against.
type Query interface {
	ListProducts(category string, limit int) []Product
	TopProducts(metric, startDate, endDate string, limit int) []TopRow
	Timeseries(metric string, productIDs []string, startDate, endDate string) []Series
	Benchmark(metric, category, startDate, endDate string) BenchmarkResult
	ComputeChanges(points []Point) Changes
}

// dailyRow holds one product-day of raw facts.
type dailyRow struct {
	date     string
	sessions float64
	units    float64
	sales    float64
}

// Dataset is a fully in-memory, seed-deterministic implementation of Query.
type Dataset struct {
	products []Product
	// rows[productID] is ordered by date ascending.
	rows map[string][]dailyRow
}

var categories = []string{"electronics", "home", "beauty", "sports", "toys", "grocery"}

var nameParts = map[string][]string{
	"electronics": {"Wireless Earbuds", "Smart Plug", "USB-C Hub", "Bluetooth Speaker"},
	"home":        {"Ceramic Vase", "Linen Throw", "LED Desk Lamp", "Spice Rack"},
	"beauty":      {"Vitamin C Serum", "Clay Mask", "Jade Roller", "Lip Balm Set"},
	"sports":      {"Yoga Mat", "Resistance Bands", "Foam Roller", "Water Bottle"},
	"toys":        {"Building Blocks", "Plush Fox", "Puzzle Cube", "RC Car"},
	"grocery":     {"Matcha Powder", "Olive Oil", "Trail Mix", "Oat Cookies"},
}

// NewSeeded builds a dataset of days days (120 when days <= 0) of
// per-product facts. The same
// (seed, startDate, days) always produces identical rows.
func NewSeeded(seed int64, startDate string, days int) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	start, err := time.ParseInLocation("2006-01-02", startDate, time.UTC)
	if err != nil {
		start = time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	}
	if days <= 0 {
		days = 120
	}

	d := &Dataset{rows: map[string][]dailyRow{}}

	idx := 1
	for _, cat := range categories {
		for _, name := range nameParts[cat] {
			p := Product{
				ID:       productID(idx),
				Name:     name,
				Category: cat,
			}
			d.products = append(d.products, p)

			baseSessions := 40 + rng.Float64()*260
			baseCvr := 0.01 + rng.Float64()*0.07
			price := 6 + rng.Float64()*94
			trend := -0.002 + rng.Float64()*0.004

			rows := make([]dailyRow, 0, days)
			for day := 0; day < days; day++ {
				date := start.AddDate(0, 0, day)
				weekday := weekdayFactor(date.Weekday())
				drift := 1 + trend*float64(day)
				noise := 0.8 + rng.Float64()*0.4

				sessions := math.Max(0, baseSessions*weekday*drift*noise)
				cvr := baseCvr * (0.85 + rng.Float64()*0.3)
				units := math.Floor(sessions * cvr)
				sales := round2(units * price)

				rows = append(rows, dailyRow{
					date:     date.Format("2006-01-02"),
					sessions: math.Floor(sessions),
					units:    units,
					sales:    sales,
				})
			}
			d.rows[p.ID] = rows
			idx++
		}
	}
	return d
}

func productID(i int) string {
	const digits = "0123456789"
	// P-001 style ids keep ordering readable in fixtures and logs.
	return "P-" + string([]byte{digits[i/100%10], digits[i/10%10], digits[i%10]})
}

func weekdayFactor(d time.Weekday) float64 {
	switch d {
	case time.Saturday, time.Sunday:
		return 1.35
	case time.Friday:
		return 1.15
	default:
		return 1.0
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ListProducts returns catalog entries, optionally filtered by category.
func (d *Dataset) ListProducts(category string, limit int) []Product {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	out := make([]Product, 0, limit)
	for _, p := range d.products {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		out = append(out, p)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func (d *Dataset) metricTotal(productID, metric, startDate, endDate string) float64 {
	var sessions, units, sales float64
	for _, r := range d.rows[productID] {
		if r.date < startDate || r.date > endDate {
			continue
		}
		sessions += r.sessions
		units += r.units
		sales += r.sales
	}
	switch metric {
	case MetricSales:
		return round2(sales)
	case MetricUnits:
		return units
	case MetricSessions:
		return sessions
	case MetricConversionRate:
		if sessions == 0 {
			return 0
		}
		return round4(units / sessions)
	}
	return 0
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// TopProducts ranks every product by the metric total over the range,
// descending, and returns the first limit rows.
func (d *Dataset) TopProducts(metric, startDate, endDate string, limit int) []TopRow {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	rows := make([]TopRow, 0, len(d.products))
	for _, p := range d.products {
		rows = append(rows, TopRow{
			ProductID:   p.ID,
			ProductName: p.Name,
			Metric:      metric,
			MetricValue: d.metricTotal(p.ID, metric, startDate, endDate),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].MetricValue == rows[j].MetricValue {
			return rows[i].ProductID < rows[j].ProductID
		}
		return rows[i].MetricValue > rows[j].MetricValue
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// Timeseries returns per-product daily points for the metric over the range.
// Unknown product ids yield no series.
func (d *Dataset) Timeseries(metric string, productIDs []string, startDate, endDate string) []Series {
	nameByID := map[string]string{}
	for _, p := range d.products {
		nameByID[p.ID] = p.Name
	}

	var out []Series
	for _, id := range productIDs {
		rows, ok := d.rows[id]
		if !ok {
			continue
		}
		s := Series{ProductID: id, ProductName: nameByID[id], Metric: metric}
		for _, r := range rows {
			if r.date < startDate || r.date > endDate {
				continue
			}
			var v float64
			switch metric {
			case MetricSales:
				v = r.sales
			case MetricUnits:
				v = r.units
			case MetricSessions:
				v = r.sessions
			case MetricConversionRate:
				if r.sessions > 0 {
					v = round4(r.units / r.sessions)
				}
			}
			s.Points = append(s.Points, Point{Date: r.date, Value: v})
		}
		out = append(out, s)
	}
	return out
}

// Benchmark averages the per-product metric totals across a category.
func (d *Dataset) Benchmark(metric, category, startDate, endDate string) BenchmarkResult {
	res := BenchmarkResult{Category: category, Metric: metric, StartDate: startDate, EndDate: endDate}
	// Totals are summed as whole ten-thousandths so the rounded average does
	// not depend on float summation order.
	var sum float64
	var n int
	for _, p := range d.products {
		if !strings.EqualFold(p.Category, category) {
			continue
		}
		sum += math.Round(d.metricTotal(p.ID, metric, startDate, endDate) * 10000)
		n++
	}
	if n > 0 {
		res.Average = math.Round(sum/float64(n)/100) / 100
	}
	return res
}

// ComputeChanges compares the first and last points of a series.
func (d *Dataset) ComputeChanges(points []Point) Changes {
	var c Changes
	if len(points) == 0 {
		return c
	}
	c.StartValue = points[0].Value
	c.EndValue = points[len(points)-1].Value
	c.AbsChange = round4(c.EndValue - c.StartValue)
	switch {
	case c.StartValue == 0 && c.EndValue == 0:
		c.PctChange = 0
	case c.StartValue == 0:
		c.PctChange = 1.0
	default:
		c.PctChange = round4((c.EndValue - c.StartValue) / c.StartValue)
	}
	return c
}
