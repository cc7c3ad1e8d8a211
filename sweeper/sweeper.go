// Package sweeper walks every opted-in user, runs their reminder check, and
// dispatches whatever fires.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"water4weightloss/dbtypes"
	"water4weightloss/notify"
	"water4weightloss/pattern"
	"water4weightloss/reminder"
	"water4weightloss/summary"
)

// historyDays is how much history the pattern analyzer looks at.
const historyDays = 7

// summaryInterval is the minimum gap between weekly summary emails.
const summaryInterval = 7 * 24 * time.Hour

// Store is the slice of the database layer the sweep needs.
type Store interface {
	ReminderUsers(ctx context.Context) ([]*dbtypes.UserProfile, error)
	History(ctx context.Context, userID string, n int, now time.Time) ([]*dbtypes.HydrationDay, error)
	ClaimReminderSlot(ctx context.Context, userID string, now time.Time, interval time.Duration) (bool, error)
	ClaimSummarySlot(ctx context.Context, userID string, now time.Time, interval time.Duration) (bool, error)
}

// Mailer sends the weekly summary email.
type Mailer interface {
	SendWeekly(ctx context.Context, user *dbtypes.UserProfile, stats summary.WeekStats) error
}

// UserStatus records what the sweep did for one user.  Background sweeps
// accumulate these instead of failing the whole batch.
type UserStatus struct {
	UserID  string `json:"userId"`
	Status  string `json:"status"`
	Channel string `json:"channel,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

type Sweeper struct {
	store         Store
	dispatcher    *notify.Dispatcher
	mailer        Mailer
	recheckPeriod time.Duration

	now func() time.Time
}

func New(store Store, dispatcher *notify.Dispatcher, mailer Mailer, recheckPeriod time.Duration) *Sweeper {
	return &Sweeper{
		store:         store,
		dispatcher:    dispatcher,
		mailer:        mailer,
		recheckPeriod: recheckPeriod,
		now:           time.Now,
	}
}

// Run loops forever, sweeping every recheckPeriod.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.recheckPeriod)
	defer ticker.Stop()

	// Sweep once right away --- ticker doesn't fire until the tick period
	// has elapsed.
	if _, err := s.Sweep(ctx); err != nil {
		slog.ErrorContext(ctx, "Error during sweep pass", slog.Any("err", err))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if _, err := s.Sweep(ctx); err != nil {
			slog.ErrorContext(ctx, "Error during sweep pass", slog.Any("err", err))
		}
	}
}

// Sweep checks every opted-in user in turn.  Per-user failures become
// statuses, not errors; only the user iteration itself can fail the sweep.
func (s *Sweeper) Sweep(ctx context.Context) ([]UserStatus, error) {
	now := s.now()

	slog.InfoContext(ctx, "Starting sweep pass")
	defer func() {
		slog.InfoContext(ctx, "Finished sweep pass")
	}()

	users, err := s.store.ReminderUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("while listing reminder users: %w", err)
	}

	statuses := make([]UserStatus, 0, len(users))
	for _, user := range users {
		status := s.processUser(ctx, user, now)
		statuses = append(statuses, status)
		slog.InfoContext(ctx, "Swept user",
			slog.String("user", user.ID),
			slog.String("status", status.Status))
	}

	return statuses, nil
}

func (s *Sweeper) processUser(ctx context.Context, user *dbtypes.UserProfile, now time.Time) UserStatus {
	status := UserStatus{UserID: user.ID}

	days, err := s.store.History(ctx, user.ID, historyDays, now)
	if err != nil {
		status.Status = "error"
		status.Detail = err.Error()
		return status
	}

	if s.mailer != nil && user.EmailSummaries && user.Email != "" {
		s.maybeSendSummary(ctx, user, days, now)
	}

	if !user.SMSReminders && !user.PushReminders {
		status.Status = "skipped"
		status.Detail = "no reminder channel enabled"
		return status
	}

	p := pattern.Analyze(days)

	goal := user.HydrationGoal
	var intake int64
	today := dbtypes.DayKey(now)
	for _, day := range days {
		if day != nil && day.Date == today {
			intake = day.Total
			if goal == 0 {
				goal = day.Goal
			}
			break
		}
	}

	decision := reminder.Decide(p, now, intake, goal)
	if !decision.Send {
		status.Status = "no-trigger"
		return status
	}

	claimed, err := s.store.ClaimReminderSlot(ctx, user.ID, now, reminder.MinInterval)
	if err != nil {
		status.Status = "error"
		status.Detail = err.Error()
		return status
	}
	if !claimed {
		status.Status = "rate-limited"
		return status
	}

	body := reminder.Compose(p, now, intake, goal, user.DisplayName)
	result, err := s.dispatcher.Dispatch(ctx, user, body, now)
	if err != nil {
		status.Status = "error"
		status.Detail = err.Error()
		return status
	}

	if result.Channel == notify.ChannelNone {
		status.Status = "skipped"
		status.Detail = result.Skipped
		return status
	}

	status.Status = "sent"
	status.Channel = result.Channel
	status.Detail = string(decision.Reason)
	return status
}

func (s *Sweeper) maybeSendSummary(ctx context.Context, user *dbtypes.UserProfile, days []*dbtypes.HydrationDay, now time.Time) {
	claimed, err := s.store.ClaimSummarySlot(ctx, user.ID, now, summaryInterval)
	if err != nil {
		slog.ErrorContext(ctx, "Error claiming summary slot",
			slog.String("user", user.ID),
			slog.Any("err", err))
		return
	}
	if !claimed {
		return
	}

	stats := summary.Compute(user.DisplayName, days, user.DailyStreak)
	if err := s.mailer.SendWeekly(ctx, user, stats); err != nil {
		slog.ErrorContext(ctx, "Error sending weekly summary",
			slog.String("user", user.ID),
			slog.Any("err", err))
	}
}
