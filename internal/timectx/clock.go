// Package timectx resolves "today" and calendar week/month boundaries.
// All date math is UTC; weeks run Monday through Sunday.
package timectx

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for all dates in the system.
const DateLayout = "2006-01-02"

// TimeContext holds precomputed calendar boundaries for a given today.
type TimeContext struct {
	Today          string `json:"today"`
	ThisWeekStart  string `json:"thisWeekStart"`
	ThisWeekEnd    string `json:"thisWeekEnd"`
	LastWeekStart  string `json:"lastWeekStart"`
	LastWeekEnd    string `json:"lastWeekEnd"`
	ThisMonthStart string `json:"thisMonthStart"`
	ThisMonthEnd   string `json:"thisMonthEnd"`
	LastMonthStart string `json:"lastMonthStart"`
	LastMonthEnd   string `json:"lastMonthEnd"`
}

// Clock supplies wall time and the calendar context derived from it.
type Clock interface {
	NowMs() int64
	Today() string
	TimeContext() TimeContext
}

// Get computes the TimeContext for a "YYYY-MM-DD" today.
func Get(today string) (TimeContext, error) {
	t, err := time.ParseInLocation(DateLayout, today, time.UTC)
	if err != nil {
		return TimeContext{}, fmt.Errorf("timectx: parse today %q: %w", today, err)
	}

	// Monday-based offset within the week.
	wd := int(t.Weekday())
	offset := (wd + 6) % 7
	thisWeekStart := t.AddDate(0, 0, -offset)
	thisWeekEnd := thisWeekStart.AddDate(0, 0, 6)
	lastWeekStart := thisWeekStart.AddDate(0, 0, -7)
	lastWeekEnd := thisWeekStart.AddDate(0, 0, -1)

	thisMonthStart := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	thisMonthEnd := thisMonthStart.AddDate(0, 1, -1)
	lastMonthEnd := thisMonthStart.AddDate(0, 0, -1)
	lastMonthStart := time.Date(lastMonthEnd.Year(), lastMonthEnd.Month(), 1, 0, 0, 0, 0, time.UTC)

	return TimeContext{
		Today:          today,
		ThisWeekStart:  thisWeekStart.Format(DateLayout),
		ThisWeekEnd:    thisWeekEnd.Format(DateLayout),
		LastWeekStart:  lastWeekStart.Format(DateLayout),
		LastWeekEnd:    lastWeekEnd.Format(DateLayout),
		ThisMonthStart: thisMonthStart.Format(DateLayout),
		ThisMonthEnd:   thisMonthEnd.Format(DateLayout),
		LastMonthStart: lastMonthStart.Format(DateLayout),
		LastMonthEnd:   lastMonthEnd.Format(DateLayout),
	}, nil
}

// SystemClock reads the host clock in UTC.
type SystemClock struct{}

func (SystemClock) NowMs() int64 {
	return time.Now().UnixMilli()
}

func (SystemClock) Today() string {
	return time.Now().UTC().Format(DateLayout)
}

func (SystemClock) TimeContext() TimeContext {
	tc, _ := Get(time.Now().UTC().Format(DateLayout))
	return tc
}

// FixedClock pins today to a configured date while keeping real wall time
// for latency measurements. Used for scenario today overrides.
type FixedClock struct {
	FixedToday string
}

func (c FixedClock) NowMs() int64 {
	return time.Now().UnixMilli()
}

func (c FixedClock) Today() string {
	return c.FixedToday
}

func (c FixedClock) TimeContext() TimeContext {
	tc, _ := Get(c.FixedToday)
	return tc
}

// ForToday returns a FixedClock when todayOverride is set, else the system clock.
func ForToday(todayOverride string) Clock {
	if todayOverride != "" {
		return FixedClock{FixedToday: todayOverride}
	}
	return SystemClock{}
}

// NowIso returns the current instant as an RFC 3339 UTC timestamp.
func NowIso() string {
	return time.Now().UTC().Format(time.RFC3339)
}
