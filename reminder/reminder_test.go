package reminder

import (
	"strings"
	"testing"
	"time"

	"water4weightloss/pattern"
)

func TestDecideStale(t *testing.T) {
	now := time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC)

	p := pattern.Pattern{
		DaysWithLogs: 3,
		LastLogTime:  now.Add(-3 * time.Hour),
	}
	d := Decide(p, now, 1500, 2000)
	if !d.Send || d.Reason != ReasonStale {
		t.Errorf("got %+v, want stale trigger", d)
	}

	// No history at all also counts as stale.
	d = Decide(pattern.Pattern{}, now, 1500, 2000)
	if !d.Send || d.Reason != ReasonStale {
		t.Errorf("got %+v, want stale trigger for empty pattern", d)
	}
}

func TestDecideGapHour(t *testing.T) {
	now := time.Date(2025, 3, 1, 15, 30, 0, 0, time.UTC)

	p := pattern.Pattern{
		DaysWithLogs: 5,
		LastLogTime:  now.Add(-30 * time.Minute),
		GapHours:     []int{15, 16},
	}
	// On pace, recent log, but 15h is a habitual gap.
	d := Decide(p, now, 1900, 2000)
	if !d.Send || d.Reason != ReasonGapHour {
		t.Errorf("got %+v, want gap-hour trigger", d)
	}
}

func TestDecideBehindPace(t *testing.T) {
	// Spec scenario: goal 2000, hour 14, progress 500.  Expected intake is
	// 2000*14/24 = 1166; 500 < 0.8*1166, so the pace trigger fires.
	now := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)

	p := pattern.Pattern{
		DaysWithLogs: 4,
		LastLogTime:  now.Add(-time.Hour),
	}
	d := Decide(p, now, 500, 2000)
	if !d.Send || d.Reason != ReasonBehindPace {
		t.Errorf("got %+v, want behind-pace trigger", d)
	}

	if got := ExpectedIntake(2000, now); got < 1166 || got > 1167 {
		t.Errorf("ExpectedIntake: got %v, want ~1166.67", got)
	}
}

func TestDecideNoTrigger(t *testing.T) {
	now := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)

	p := pattern.Pattern{
		DaysWithLogs: 4,
		LastLogTime:  now.Add(-time.Hour),
	}
	// 1100 >= 0.8 * 1166.67 = 933, recent log, no gap.
	d := Decide(p, now, 1100, 2000)
	if d.Send {
		t.Errorf("got %+v, want no trigger", d)
	}
}

func TestDecideZeroGoal(t *testing.T) {
	now := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)

	p := pattern.Pattern{
		DaysWithLogs: 4,
		LastLogTime:  now.Add(-time.Hour),
	}
	// A zero goal must not fire the pace trigger (or divide by zero later).
	d := Decide(p, now, 0, 0)
	if d.Send {
		t.Errorf("got %+v, want no trigger with zero goal", d)
	}
}

func TestComposeBands(t *testing.T) {
	tests := []struct {
		name   string
		hour   int
		intake int64
		want   string
	}{
		{name: "MorningLow", hour: 8, intake: 100, want: "Good morning"},
		{name: "AfternoonLow", hour: 14, intake: 200, want: "big glass"},
		{name: "AfternoonMid", hour: 14, intake: 800, want: "on pace"},
		{name: "EveningLow", hour: 19, intake: 600, want: "Evening check-in"},
		{name: "EveningHigh", hour: 21, intake: 1800, want: "Almost there"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			now := time.Date(2025, 3, 1, tc.hour, 0, 0, 0, time.UTC)
			got := Compose(pattern.Pattern{}, now, tc.intake, 2000, "Alex")
			if !strings.Contains(got, tc.want) {
				t.Errorf("Compose at %dh with %dml = %q, want substring %q", tc.hour, tc.intake, got, tc.want)
			}
			if !strings.Contains(got, "Alex") {
				t.Errorf("Compose = %q, want the user's name", got)
			}
		})
	}
}

func TestComposePatternClause(t *testing.T) {
	now := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)

	withHistory := pattern.Pattern{DaysWithLogs: 4, TotalAvg: 1200}
	got := Compose(withHistory, now, 500, 2000, "Alex")
	if !strings.Contains(got, "averaging 1200ml daily") {
		t.Errorf("Compose = %q, want averaging clause", got)
	}

	// Fewer than three days of history: no pattern clause.
	thinHistory := pattern.Pattern{DaysWithLogs: 2, TotalAvg: 1200}
	got = Compose(thinHistory, now, 500, 2000, "Alex")
	if strings.Contains(got, "averaging") {
		t.Errorf("Compose = %q, want no averaging clause for thin history", got)
	}
}

func TestComposeDefaultsName(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	got := Compose(pattern.Pattern{}, now, 0, 2000, "")
	if !strings.Contains(got, "there") {
		t.Errorf("Compose = %q, want fallback name", got)
	}
}
