// Package notify routes a reminder to the user over SMS or push.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"water4weightloss/dbtypes"
)

// maxSMSBody is the single-segment SMS body limit.
const maxSMSBody = 160

// Channel names reported in dispatch results.
const (
	ChannelSMS  = "sms"
	ChannelPush = "push"
	ChannelNone = "none"
)

// SMSSender delivers a text message and returns the provider's message ID.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (sid string, err error)
}

// PushSender delivers a push notification to a device token.
type PushSender interface {
	SendPush(ctx context.Context, token, title, body string) error
}

// SMSLimiter claims one of the user's daily SMS slots.  Claims are permanent;
// a failed send after a claim still counts against the cap.
type SMSLimiter interface {
	ReserveSMSSlot(ctx context.Context, userID, date string) (count int64, limitReached bool, err error)
}

// Result reports what the dispatcher did for one reminder.
type Result struct {
	Channel      string `json:"channel"`
	MessageSID   string `json:"messageSid,omitempty"`
	LimitReached bool   `json:"limitReached,omitempty"`
	Skipped      string `json:"skipped,omitempty"`
}

type Dispatcher struct {
	sms     SMSSender
	push    PushSender
	limiter SMSLimiter
}

func New(sms SMSSender, push PushSender, limiter SMSLimiter) *Dispatcher {
	return &Dispatcher{
		sms:     sms,
		push:    push,
		limiter: limiter,
	}
}

// Dispatch tries SMS first when the user has opted in and has a phone number
// and a free daily slot.  SMS failures and the daily cap fall back to push;
// when push is unavailable too, the result records why nothing was sent.
// Provider errors are logged and absorbed here, never propagated raw.
func (d *Dispatcher) Dispatch(ctx context.Context, user *dbtypes.UserProfile, body string, now time.Time) (Result, error) {
	if len(body) > maxSMSBody {
		body = body[:maxSMSBody-3] + "..."
	}

	result := Result{Channel: ChannelNone}

	if user.SMSReminders && user.PhoneNumber != "" && d.sms != nil {
		count, limitReached, err := d.limiter.ReserveSMSSlot(ctx, user.ID, dbtypes.DayKey(now))
		if err != nil {
			return result, fmt.Errorf("while reserving SMS slot: %w", err)
		}
		result.LimitReached = limitReached

		if !limitReached {
			sid, err := d.sms.SendSMS(ctx, user.PhoneNumber, body)
			if err == nil {
				result.Channel = ChannelSMS
				result.MessageSID = sid
				slog.InfoContext(ctx, "Sent SMS reminder",
					slog.String("user", user.ID),
					slog.Int64("smsCountToday", count))
				return result, nil
			}
			// Fall back to push rather than retrying.
			slog.ErrorContext(ctx, "SMS send failed, falling back to push",
				slog.String("user", user.ID),
				slog.Any("err", err))
		}
	}

	if user.PushReminders && user.DeviceToken != "" && d.push != nil {
		if err := d.push.SendPush(ctx, user.DeviceToken, "Hydration reminder", body); err != nil {
			slog.ErrorContext(ctx, "Push send failed",
				slog.String("user", user.ID),
				slog.Any("err", err))
			result.Skipped = "all channels failed"
			return result, nil
		}
		result.Channel = ChannelPush
		slog.InfoContext(ctx, "Sent push reminder", slog.String("user", user.ID))
		return result, nil
	}

	if result.Skipped == "" {
		result.Skipped = "no enabled channel"
	}
	return result, nil
}
