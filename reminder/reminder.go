// Package reminder decides when a contextual reminder should fire and what
// it should say.
package reminder

import (
	"fmt"
	"time"

	"water4weightloss/pattern"
)

const (
	// StaleAfter is how long without a log before a reminder is warranted.
	StaleAfter = 2 * time.Hour

	// PaceFactor scales the linearly-expected intake; a user below this
	// fraction of the expected amount is behind pace.  The expected amount
	// is goal*hour/24, uniform over the whole day including sleep.
	PaceFactor = 0.8

	// MinInterval is the at-most-one-reminder-per-hour guarantee, enforced
	// server-side against the profile's lastReminderAt field.
	MinInterval = time.Hour

	// minPatternDays is how much history a pattern needs before its numbers
	// are quoted in a message.
	minPatternDays = 3
)

// Reason identifies which trigger fired.
type Reason string

const (
	ReasonStale      Reason = "stale"
	ReasonGapHour    Reason = "gap-hour"
	ReasonBehindPace Reason = "behind-pace"
)

// Decision is the outcome of a reminder check.
type Decision struct {
	Send   bool
	Reason Reason
}

// ExpectedIntake is the linearly-expected intake for the elapsed fraction of
// the day.
func ExpectedIntake(goal int64, now time.Time) float64 {
	return float64(goal) * float64(now.UTC().Hour()) / 24
}

// Decide checks the three independent triggers; any one of them firing means
// a reminder should be sent.  Rate limiting is the caller's concern.
func Decide(p pattern.Pattern, now time.Time, intake, goal int64) Decision {
	now = now.UTC()

	if p.LastLogTime.IsZero() || now.Sub(p.LastLogTime) > StaleAfter {
		return Decision{Send: true, Reason: ReasonStale}
	}

	if p.InGap(now.Hour()) {
		return Decision{Send: true, Reason: ReasonGapHour}
	}

	if goal > 0 && float64(intake) < PaceFactor*ExpectedIntake(goal, now) {
		return Decision{Send: true, Reason: ReasonBehindPace}
	}

	return Decision{}
}

// Compose picks message phrasing from the time-of-day band and current
// progress, then appends a pattern-derived clause when there is enough
// history to quote.
func Compose(p pattern.Pattern, now time.Time, intake, goal int64, name string) string {
	if name == "" {
		name = "there"
	}

	var progress float64
	if goal > 0 {
		progress = float64(intake) / float64(goal) * 100
	}

	expected := int64(ExpectedIntake(goal, now))

	var msg string
	hour := now.UTC().Hour()
	switch {
	case hour < 12:
		if progress < 25 {
			msg = fmt.Sprintf("Good morning %s! Start your day right: aim for %dml by now.", name, expected)
		} else {
			msg = fmt.Sprintf("Nice start, %s! You're at %.0f%% of your goal. Keep sipping.", name, progress)
		}
	case hour < 17:
		switch {
		case progress < 25:
			msg = fmt.Sprintf("Hey %s, you're at %.0f%% of your goal and the day is half gone. Time for a big glass!", name, progress)
		case progress < 50:
			msg = fmt.Sprintf("%s, you're a bit behind. About %dml would be on pace by now.", name, expected)
		default:
			msg = fmt.Sprintf("Solid afternoon, %s! %.0f%% down, keep it going.", name, progress)
		}
	default:
		switch {
		case progress < 50:
			msg = fmt.Sprintf("Evening check-in, %s: %.0f%% of your goal so far. A couple of glasses still counts!", name, progress)
		case progress < 75:
			msg = fmt.Sprintf("%s, you're close at %.0f%% done. Finish strong tonight.", name, progress)
		default:
			msg = fmt.Sprintf("Almost there, %s! %.0f%% of today's goal. One more glass seals it.", name, progress)
		}
	}

	if p.DaysWithLogs >= minPatternDays && goal > 0 && p.TotalAvg < float64(goal) {
		msg += fmt.Sprintf(" You're averaging %.0fml daily, below your %dml goal.", p.TotalAvg, goal)
	}

	return msg
}
