// Package streak derives daily-streak state from log-date transitions.
package streak

import "water4weightloss/dbtypes"

// Advance computes the streak values that result from a log on the day named
// by today (a UTC day key).  Logging again on the same day leaves the streak
// unchanged, logging on the day after lastLogDate extends it, and any gap
// resets it to 1.  LongestStreak never decreases.
func Advance(lastLogDate, today string, daily, longest int64) (newDaily, newLongest int64) {
	switch lastLogDate {
	case today:
		newDaily = daily
	case dbtypes.PrevDayKey(today):
		newDaily = daily + 1
	default:
		newDaily = 1
	}

	newLongest = longest
	if newDaily > newLongest {
		newLongest = newDaily
	}
	return newDaily, newLongest
}

// Badge is a streak milestone the user has earned.
type Badge struct {
	Days  int64  `json:"days"`
	Label string `json:"label"`
}

var milestones = []Badge{
	{Days: 3, Label: "3-day streak"},
	{Days: 7, Label: "1-week streak"},
	{Days: 14, Label: "2-week streak"},
	{Days: 30, Label: "30-day streak"},
	{Days: 60, Label: "60-day streak"},
	{Days: 100, Label: "100-day streak"},
}

// Badges returns the milestones earned by a longest streak, in ascending
// order.
func Badges(longest int64) []Badge {
	var earned []Badge
	for _, m := range milestones {
		if longest >= m.Days {
			earned = append(earned, m)
		}
	}
	return earned
}
