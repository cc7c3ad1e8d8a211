// Package pattern summarizes a week of hydration logs into the consumption
// pattern the reminder logic keys off.
package pattern

import (
	"time"

	"water4weightloss/dbtypes"
)

// Time-of-day windows, in UTC hours.
const (
	morningStart   = 5
	afternoonStart = 11
	eveningStart   = 17
	eveningEnd     = 23

	wakingStart = 8
	wakingEnd   = 22
)

// Pattern is the derived consumption summary.  It is recomputed from the
// last 7 days of logs on every reminder check and never persisted.
type Pattern struct {
	MorningAvg   float64
	AfternoonAvg float64
	EveningAvg   float64
	TotalAvg     float64
	GapHours     []int
	LastLogTime  time.Time
	DaysWithLogs int
}

// Analyze buckets a week of day documents by hour of day.  Window averages
// are per-log; TotalAvg is the average daily total over days that have at
// least one log.  GapHours lists waking hours with zero logs across the whole
// week.  An empty input yields a zero Pattern with no gap hours; callers must
// check DaysWithLogs before drawing conclusions.
func Analyze(days []*dbtypes.HydrationDay) Pattern {
	p := Pattern{}

	var hourCounts [24]int64
	var windowSum [3]int64
	var windowCount [3]int64
	var grandTotal int64

	for _, day := range days {
		if day == nil || len(day.Logs) == 0 {
			continue
		}
		p.DaysWithLogs++
		for _, log := range day.Logs {
			ts := log.Timestamp.UTC()
			hour := ts.Hour()
			hourCounts[hour]++

			switch {
			case hour >= morningStart && hour < afternoonStart:
				windowSum[0] += log.Amount
				windowCount[0]++
			case hour >= afternoonStart && hour < eveningStart:
				windowSum[1] += log.Amount
				windowCount[1]++
			case hour >= eveningStart && hour < eveningEnd:
				windowSum[2] += log.Amount
				windowCount[2]++
			}

			grandTotal += log.Amount
			if ts.After(p.LastLogTime) {
				p.LastLogTime = ts
			}
		}
	}

	if p.DaysWithLogs == 0 {
		return p
	}

	if windowCount[0] > 0 {
		p.MorningAvg = float64(windowSum[0]) / float64(windowCount[0])
	}
	if windowCount[1] > 0 {
		p.AfternoonAvg = float64(windowSum[1]) / float64(windowCount[1])
	}
	if windowCount[2] > 0 {
		p.EveningAvg = float64(windowSum[2]) / float64(windowCount[2])
	}
	p.TotalAvg = float64(grandTotal) / float64(p.DaysWithLogs)

	for hour := wakingStart; hour < wakingEnd; hour++ {
		if hourCounts[hour] == 0 {
			p.GapHours = append(p.GapHours, hour)
		}
	}

	return p
}

// InGap reports whether the given hour is one of the pattern's gap hours.
func (p Pattern) InGap(hour int) bool {
	for _, h := range p.GapHours {
		if h == hour {
			return true
		}
	}
	return false
}
