// Package dbtypes holds the document shapes stored in Firestore.
package dbtypes

import (
	"fmt"
	"time"
)

// UserProfile is the per-user settings and streak document.
//
// Streak fields are only ever written by the log-water transaction, so
// LongestStreak >= DailyStreak holds at all times.
type UserProfile struct {
	ID             string          `firestore:"id"`
	Email          string          `firestore:"email"`
	DisplayName    string          `firestore:"displayName"`
	PhoneNumber    string          `firestore:"phoneNumber"`
	DeviceToken    string          `firestore:"deviceToken"`
	HydrationGoal  int64           `firestore:"hydrationGoal"`
	MotivationTone string          `firestore:"motivationTone"`
	LastLogDate    string          `firestore:"lastLogDate"`
	DailyStreak    int64           `firestore:"dailyStreak"`
	LongestStreak  int64           `firestore:"longestStreak"`
	SMSReminders   bool            `firestore:"smsReminders"`
	PushReminders  bool            `firestore:"pushReminders"`
	EmailSummaries bool            `firestore:"emailSummaries"`
	ReminderTimes  map[string]bool `firestore:"reminderTimes"`

	// Server-side reminder rate limiting and weekly summary bookkeeping.
	LastReminderAt time.Time `firestore:"lastReminderAt"`
	LastSummaryAt  time.Time `firestore:"lastSummaryAt"`
}

// HydrationLog is a single recorded intake event.
type HydrationLog struct {
	Amount    int64     `firestore:"amount"`
	Timestamp time.Time `firestore:"timestamp"`
}

// HydrationDay is the per-user, per-day log document.  Total always equals
// the sum of Logs[].Amount; both are maintained inside the same transaction.
type HydrationDay struct {
	UserID      string         `firestore:"userId"`
	Date        string         `firestore:"date"`
	Total       int64          `firestore:"total"`
	Goal        int64          `firestore:"goal"`
	Logs        []HydrationLog `firestore:"logs"`
	LastUpdated time.Time      `firestore:"lastUpdated"`
}

// SMSDailyCount tracks SMS sends per user per day.  Created on the first
// send of the day, incremented per send, never decremented; date rollover
// produces a fresh document.
type SMSDailyCount struct {
	UserID string `firestore:"userId"`
	Date   string `firestore:"date"`
	Count  int64  `firestore:"count"`
}

// DayKey formats a time as the UTC calendar-date key used for day documents
// and SMS counts.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// PrevDayKey returns the day key immediately before the given key.  Malformed
// keys yield an empty string, which never matches a stored date.
func PrevDayKey(key string) string {
	t, err := time.Parse("2006-01-02", key)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format("2006-01-02")
}

// DayDocID is the document ID for a user's day document or SMS count.
func DayDocID(userID, dateKey string) string {
	return fmt.Sprintf("%s_%s", userID, dateKey)
}
