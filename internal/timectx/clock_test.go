package timectx

import "testing"

func TestGet_MidWeekMidMonth(t *testing.T) {
	tc, err := Get("2026-02-04")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if tc.LastMonthStart != "2026-01-01" {
		t.Errorf("lastMonthStart: got %q", tc.LastMonthStart)
	}
	if tc.LastMonthEnd != "2026-01-31" {
		t.Errorf("lastMonthEnd: got %q", tc.LastMonthEnd)
	}
	if tc.ThisWeekStart != "2026-02-02" {
		t.Errorf("thisWeekStart: got %q", tc.ThisWeekStart)
	}
	if tc.ThisWeekEnd != "2026-02-08" {
		t.Errorf("thisWeekEnd: got %q", tc.ThisWeekEnd)
	}
	if tc.LastWeekStart != "2026-01-26" {
		t.Errorf("lastWeekStart: got %q", tc.LastWeekStart)
	}
	if tc.LastWeekEnd != "2026-02-01" {
		t.Errorf("lastWeekEnd: got %q", tc.LastWeekEnd)
	}
	if tc.ThisMonthStart != "2026-02-01" {
		t.Errorf("thisMonthStart: got %q", tc.ThisMonthStart)
	}
	if tc.ThisMonthEnd != "2026-02-28" {
		t.Errorf("thisMonthEnd: got %q", tc.ThisMonthEnd)
	}
}

func TestGet_SundayBelongsToCurrentWeek(t *testing.T) {
	// 2026-02-08 is a Sunday; the week still starts on Monday the 2nd.
	tc, err := Get("2026-02-08")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if tc.ThisWeekStart != "2026-02-02" {
		t.Errorf("thisWeekStart: got %q", tc.ThisWeekStart)
	}
	if tc.ThisWeekEnd != "2026-02-08" {
		t.Errorf("thisWeekEnd: got %q", tc.ThisWeekEnd)
	}
}

func TestGet_MonthBoundaryAcrossYear(t *testing.T) {
	tc, err := Get("2026-01-01")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if tc.LastMonthStart != "2025-12-01" {
		t.Errorf("lastMonthStart: got %q", tc.LastMonthStart)
	}
	if tc.LastMonthEnd != "2025-12-31" {
		t.Errorf("lastMonthEnd: got %q", tc.LastMonthEnd)
	}
}

func TestGet_InvalidDate(t *testing.T) {
	if _, err := Get("02/04/2026"); err == nil {
		t.Error("expected error for non-ISO date")
	}
}

func TestForToday(t *testing.T) {
	c := ForToday("2026-02-04")
	if c.Today() != "2026-02-04" {
		t.Errorf("fixed clock today: got %q", c.Today())
	}
	if c.TimeContext().ThisWeekStart != "2026-02-02" {
		t.Errorf("fixed clock week start: got %q", c.TimeContext().ThisWeekStart)
	}
	if ForToday("").Today() == "" {
		t.Error("system clock today should not be empty")
	}
}
