// Package dblayer packages up most actual firestore accesses.
package dblayer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"water4weightloss/dbtypes"
	"water4weightloss/streak"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	usersCollection     = "Users"
	daysCollection      = "HydrationDays"
	smsCountsCollection = "SmsDailyCounts"
)

// MaxSMSPerDay caps SMS reminders per user per UTC calendar day.
const MaxSMSPerDay = 2

// DefaultHydrationGoal is applied to profiles created on first log, in ml.
const DefaultHydrationGoal = 2000

var (
	ErrProfileNotFound = errors.New("no profile for that user")
	ErrDayNotFound     = errors.New("no logs for that day")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidGoal     = errors.New("hydration goal must be positive")
)

type DB struct {
	firestoreClient *firestore.Client
}

func New(firestoreClient *firestore.Client) *DB {
	return &DB{
		firestoreClient: firestoreClient,
	}
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// LogWater appends an intake event to the user's day document and advances
// the streak on the profile.  Everything happens inside one transaction, so
// the day total always equals the sum of its log amounts and concurrent logs
// never lose an increment.  A missing profile is created with defaults.
func (db *DB) LogWater(ctx context.Context, userID string, amount int64, now time.Time) (*dbtypes.HydrationDay, *dbtypes.UserProfile, error) {
	if amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}

	today := dbtypes.DayKey(now)
	profileRef := db.firestoreClient.Collection(usersCollection).Doc(userID)
	dayRef := db.firestoreClient.Collection(daysCollection).Doc(dbtypes.DayDocID(userID, today))

	var day *dbtypes.HydrationDay
	var profile *dbtypes.UserProfile

	err := db.firestoreClient.RunTransaction(ctx, func(ctx context.Context, txn *firestore.Transaction) error {
		// The transaction function can run more than once, so state is
		// rebuilt from scratch on every attempt.
		profile = &dbtypes.UserProfile{}
		profileSnap, err := txn.Get(profileRef)
		if isNotFound(err) {
			profile.ID = userID
			profile.HydrationGoal = DefaultHydrationGoal
		} else if err != nil {
			return fmt.Errorf("while reading profile: %w", err)
		} else if err := profileSnap.DataTo(profile); err != nil {
			return fmt.Errorf("while unmarshaling profile: %w", err)
		}

		day = &dbtypes.HydrationDay{
			UserID: userID,
			Date:   today,
			Goal:   profile.HydrationGoal,
		}
		daySnap, err := txn.Get(dayRef)
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("while reading day document: %w", err)
		}
		if err == nil {
			if err := daySnap.DataTo(day); err != nil {
				return fmt.Errorf("while unmarshaling day document: %w", err)
			}
		}

		day.Logs = append(day.Logs, dbtypes.HydrationLog{
			Amount:    amount,
			Timestamp: now.UTC(),
		})
		day.Total = 0
		for _, log := range day.Logs {
			day.Total += log.Amount
		}
		day.LastUpdated = now.UTC()

		profile.DailyStreak, profile.LongestStreak = streak.Advance(profile.LastLogDate, today, profile.DailyStreak, profile.LongestStreak)
		profile.LastLogDate = today

		if err := txn.Set(dayRef, day); err != nil {
			return fmt.Errorf("while writing day document: %w", err)
		}
		if err := txn.Set(profileRef, profile); err != nil {
			return fmt.Errorf("while writing profile: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("while executing log-water transaction: %w", err)
	}

	return day, profile, nil
}

// Profile fetches a user profile.
func (db *DB) Profile(ctx context.Context, userID string) (*dbtypes.UserProfile, error) {
	snap, err := db.firestoreClient.Collection(usersCollection).Doc(userID).Get(ctx)
	if isNotFound(err) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("while retrieving profile %s: %w", userID, err)
	}

	profile := &dbtypes.UserProfile{}
	if err := snap.DataTo(profile); err != nil {
		return nil, fmt.Errorf("while unmarshaling profile %s: %w", userID, err)
	}

	return profile, nil
}

// Day fetches a single day document.
func (db *DB) Day(ctx context.Context, userID, date string) (*dbtypes.HydrationDay, error) {
	snap, err := db.firestoreClient.Collection(daysCollection).Doc(dbtypes.DayDocID(userID, date)).Get(ctx)
	if isNotFound(err) {
		return nil, ErrDayNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("while retrieving day %s for %s: %w", date, userID, err)
	}

	day := &dbtypes.HydrationDay{}
	if err := snap.DataTo(day); err != nil {
		return nil, fmt.Errorf("while unmarshaling day %s for %s: %w", date, userID, err)
	}

	return day, nil
}

// History returns the user's day documents for the n days ending at now,
// most recent first.  Days without logs are simply absent.
func (db *DB) History(ctx context.Context, userID string, n int, now time.Time) ([]*dbtypes.HydrationDay, error) {
	from := dbtypes.DayKey(now.AddDate(0, 0, -(n - 1)))

	var days []*dbtypes.HydrationDay
	dayIter := db.firestoreClient.Collection(daysCollection).
		Where("userId", "==", userID).
		Where("date", ">=", from).
		OrderBy("date", firestore.Desc).
		Documents(ctx)
	defer dayIter.Stop()
	for {
		snap, err := dayIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while iterating days for %s: %w", userID, err)
		}

		day := &dbtypes.HydrationDay{}
		if err := snap.DataTo(day); err != nil {
			return nil, fmt.Errorf("while unmarshaling day %s: %w", snap.Ref.ID, err)
		}
		days = append(days, day)
	}

	return days, nil
}

// Settings is the user-editable slice of the profile.
type Settings struct {
	HydrationGoal  int64           `json:"hydrationGoal"`
	MotivationTone string          `json:"motivationTone"`
	PhoneNumber    string          `json:"phoneNumber"`
	DeviceToken    string          `json:"deviceToken"`
	SMSReminders   bool            `json:"smsReminders"`
	PushReminders  bool            `json:"pushReminders"`
	EmailSummaries bool            `json:"emailSummaries"`
	ReminderTimes  map[string]bool `json:"reminderTimes"`
}

// UpdateSettings overwrites the user-editable profile fields.  Streak and
// bookkeeping fields are untouched.
func (db *DB) UpdateSettings(ctx context.Context, userID string, s *Settings) error {
	if s.HydrationGoal <= 0 {
		return ErrInvalidGoal
	}

	profileRef := db.firestoreClient.Collection(usersCollection).Doc(userID)
	err := db.firestoreClient.RunTransaction(ctx, func(ctx context.Context, txn *firestore.Transaction) error {
		profile := &dbtypes.UserProfile{ID: userID}
		profileSnap, err := txn.Get(profileRef)
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("while reading profile: %w", err)
		}
		if err == nil {
			if err := profileSnap.DataTo(profile); err != nil {
				return fmt.Errorf("while unmarshaling profile: %w", err)
			}
		}

		profile.HydrationGoal = s.HydrationGoal
		profile.MotivationTone = s.MotivationTone
		profile.PhoneNumber = s.PhoneNumber
		profile.DeviceToken = s.DeviceToken
		profile.SMSReminders = s.SMSReminders
		profile.PushReminders = s.PushReminders
		profile.EmailSummaries = s.EmailSummaries
		profile.ReminderTimes = s.ReminderTimes

		if err := txn.Set(profileRef, profile); err != nil {
			return fmt.Errorf("while writing profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("while executing settings transaction: %w", err)
	}

	return nil
}

// ReserveSMSSlot transactionally claims one of the day's SMS slots for the
// user.  The count never decrements, even if the send that follows fails;
// that keeps the per-day cap a hard guarantee under concurrent sweeps.
func (db *DB) ReserveSMSSlot(ctx context.Context, userID, date string) (count int64, limitReached bool, err error) {
	countRef := db.firestoreClient.Collection(smsCountsCollection).Doc(dbtypes.DayDocID(userID, date))

	err = db.firestoreClient.RunTransaction(ctx, func(ctx context.Context, txn *firestore.Transaction) error {
		record := &dbtypes.SMSDailyCount{UserID: userID, Date: date}
		snap, err := txn.Get(countRef)
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("while reading SMS count: %w", err)
		}
		if err == nil {
			if err := snap.DataTo(record); err != nil {
				return fmt.Errorf("while unmarshaling SMS count: %w", err)
			}
		}

		if record.Count >= MaxSMSPerDay {
			count = record.Count
			limitReached = true
			return nil
		}

		record.Count++
		count = record.Count
		limitReached = false
		if err := txn.Set(countRef, record); err != nil {
			return fmt.Errorf("while writing SMS count: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("while executing SMS count transaction: %w", err)
	}

	return count, limitReached, nil
}

// ClaimReminderSlot transactionally claims the right to send the user a
// contextual reminder.  It returns false when one was sent less than interval
// ago, which makes the one-per-hour limit durable across devices and
// processes.
func (db *DB) ClaimReminderSlot(ctx context.Context, userID string, now time.Time, interval time.Duration) (bool, error) {
	return db.claimSlot(ctx, userID, now, interval, "lastReminderAt")
}

// ClaimSummarySlot is ClaimReminderSlot for the weekly summary email.
func (db *DB) ClaimSummarySlot(ctx context.Context, userID string, now time.Time, interval time.Duration) (bool, error) {
	return db.claimSlot(ctx, userID, now, interval, "lastSummaryAt")
}

func (db *DB) claimSlot(ctx context.Context, userID string, now time.Time, interval time.Duration, field string) (bool, error) {
	profileRef := db.firestoreClient.Collection(usersCollection).Doc(userID)

	claimed := false
	err := db.firestoreClient.RunTransaction(ctx, func(ctx context.Context, txn *firestore.Transaction) error {
		claimed = false

		profileSnap, err := txn.Get(profileRef)
		if isNotFound(err) {
			return ErrProfileNotFound
		}
		if err != nil {
			return fmt.Errorf("while reading profile: %w", err)
		}

		profile := &dbtypes.UserProfile{}
		if err := profileSnap.DataTo(profile); err != nil {
			return fmt.Errorf("while unmarshaling profile: %w", err)
		}

		last := profile.LastReminderAt
		if field == "lastSummaryAt" {
			last = profile.LastSummaryAt
		}
		if !last.IsZero() && now.Sub(last) < interval {
			return nil
		}

		claimed = true
		return txn.Update(profileRef, []firestore.Update{{Path: field, Value: now.UTC()}})
	})
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return false, ErrProfileNotFound
		}
		return false, fmt.Errorf("while executing claim transaction: %w", err)
	}

	return claimed, nil
}

// ReminderUsers returns the profiles of every user opted in to at least one
// reminder or summary channel.
func (db *DB) ReminderUsers(ctx context.Context) ([]*dbtypes.UserProfile, error) {
	var users []*dbtypes.UserProfile

	userIter := db.firestoreClient.Collection(usersCollection).Documents(ctx)
	defer userIter.Stop()
	for {
		snap, err := userIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while iterating users: %w", err)
		}

		profile := &dbtypes.UserProfile{}
		if err := snap.DataTo(profile); err != nil {
			return nil, fmt.Errorf("while unmarshaling user %s: %w", snap.Ref.ID, err)
		}

		if profile.SMSReminders || profile.PushReminders || profile.EmailSummaries {
			users = append(users, profile)
		}
	}

	return users, nil
}
