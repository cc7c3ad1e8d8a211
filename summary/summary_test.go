package summary

import (
	"strings"
	"testing"

	"water4weightloss/dbtypes"
)

func TestCompute(t *testing.T) {
	days := []*dbtypes.HydrationDay{
		{Date: "2025-03-03", Total: 2200, Goal: 2000, Logs: []dbtypes.HydrationLog{{Amount: 2200}}},
		{Date: "2025-03-02", Total: 1400, Goal: 2000, Logs: []dbtypes.HydrationLog{{Amount: 1400}}},
		{Date: "2025-03-01"}, // no logs, ignored
	}

	got := Compute("Alex", days, 4)

	if got.TotalML != 3600 {
		t.Errorf("TotalML: got %d, want 3600", got.TotalML)
	}
	if got.DaysLogged != 2 {
		t.Errorf("DaysLogged: got %d, want 2", got.DaysLogged)
	}
	if got.DailyAvgML != 1800 {
		t.Errorf("DailyAvgML: got %d, want 1800", got.DailyAvgML)
	}
	if got.GoalHitDays != 1 {
		t.Errorf("GoalHitDays: got %d, want 1", got.GoalHitDays)
	}
	if got.DailyStreak != 4 {
		t.Errorf("DailyStreak: got %d, want 4", got.DailyStreak)
	}
}

func TestComputeEmpty(t *testing.T) {
	got := Compute("", nil, 0)
	if got.DaysLogged != 0 || got.TotalML != 0 || got.DailyAvgML != 0 {
		t.Errorf("Compute on empty input = %+v, want zeros", got)
	}
	if got.Name != "there" {
		t.Errorf("Name: got %q, want fallback", got.Name)
	}
}

func TestEmailTemplate(t *testing.T) {
	var b strings.Builder
	stats := WeekStats{Name: "Alex", TotalML: 9000, DailyAvgML: 1800, GoalHitDays: 3, DaysLogged: 5, DailyStreak: 2}
	if err := emailPlainTemplate.Execute(&b, stats); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	body := b.String()
	for _, want := range []string{"Alex", "9000ml", "1800ml", "3 day(s)", "5 day(s)"} {
		if !strings.Contains(body, want) {
			t.Errorf("email body missing %q:\n%s", want, body)
		}
	}
}
