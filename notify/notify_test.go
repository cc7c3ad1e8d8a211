package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"water4weightloss/dbtypes"
)

type fakeSMS struct {
	err   error
	sent  []string
	calls int
}

func (f *fakeSMS) SendSMS(ctx context.Context, to, body string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, body)
	return "SM123", nil
}

type fakePush struct {
	err  error
	sent []string
}

func (f *fakePush) SendPush(ctx context.Context, token, title, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, body)
	return nil
}

type fakeLimiter struct {
	counts map[string]int64
	cap    int64
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: map[string]int64{}, cap: 2}
}

func (f *fakeLimiter) ReserveSMSSlot(ctx context.Context, userID, date string) (int64, bool, error) {
	key := userID + "_" + date
	if f.counts[key] >= f.cap {
		return f.counts[key], true, nil
	}
	f.counts[key]++
	return f.counts[key], false, nil
}

func fullUser() *dbtypes.UserProfile {
	return &dbtypes.UserProfile{
		ID:            "u1",
		PhoneNumber:   "+15550001111",
		DeviceToken:   "tok",
		SMSReminders:  true,
		PushReminders: true,
	}
}

var testNow = time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)

func TestDispatchPrefersSMS(t *testing.T) {
	sms := &fakeSMS{}
	push := &fakePush{}
	d := New(sms, push, newFakeLimiter())

	got, err := d.Dispatch(context.Background(), fullUser(), "drink up", testNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := Result{Channel: ChannelSMS, MessageSID: "SM123"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Result diff (-want +got):\n%s", diff)
	}
	if len(push.sent) != 0 {
		t.Errorf("push was used despite SMS success")
	}
}

func TestDispatchCapFallsBackToPush(t *testing.T) {
	sms := &fakeSMS{}
	push := &fakePush{}
	limiter := newFakeLimiter()
	d := New(sms, push, limiter)

	user := fullUser()
	ctx := context.Background()

	// First two reminders go over SMS.
	for i := 0; i < 2; i++ {
		got, err := d.Dispatch(ctx, user, "drink up", testNow)
		if err != nil {
			t.Fatalf("Unexpected error on send %d: %v", i+1, err)
		}
		if got.Channel != ChannelSMS {
			t.Fatalf("send %d: channel %q, want sms", i+1, got.Channel)
		}
	}

	// The third must not produce an SMS.
	got, err := d.Dispatch(ctx, user, "drink up", testNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !got.LimitReached {
		t.Errorf("LimitReached = false, want true")
	}
	if got.Channel != ChannelPush {
		t.Errorf("Channel = %q, want push fallback", got.Channel)
	}
	if sms.calls != 2 {
		t.Errorf("SMS attempted %d times, want exactly 2", sms.calls)
	}
}

func TestDispatchSMSErrorFallsBackToPush(t *testing.T) {
	sms := &fakeSMS{err: errors.New("twilio down")}
	push := &fakePush{}
	d := New(sms, push, newFakeLimiter())

	got, err := d.Dispatch(context.Background(), fullUser(), "drink up", testNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Channel != ChannelPush {
		t.Errorf("Channel = %q, want push", got.Channel)
	}
	if len(push.sent) != 1 {
		t.Errorf("push sent %d messages, want 1", len(push.sent))
	}
}

func TestDispatchNoChannels(t *testing.T) {
	d := New(&fakeSMS{}, &fakePush{}, newFakeLimiter())

	user := &dbtypes.UserProfile{ID: "u1"}
	got, err := d.Dispatch(context.Background(), user, "drink up", testNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Channel != ChannelNone || got.Skipped == "" {
		t.Errorf("got %+v, want none channel with skip reason", got)
	}
}

func TestDispatchSkipsSMSWithoutPhone(t *testing.T) {
	sms := &fakeSMS{}
	push := &fakePush{}
	d := New(sms, push, newFakeLimiter())

	user := fullUser()
	user.PhoneNumber = ""
	got, err := d.Dispatch(context.Background(), user, "drink up", testNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Channel != ChannelPush {
		t.Errorf("Channel = %q, want push", got.Channel)
	}
	if sms.calls != 0 {
		t.Errorf("SMS attempted without a phone number")
	}
}

func TestDispatchTruncatesLongBody(t *testing.T) {
	sms := &fakeSMS{}
	d := New(sms, &fakePush{}, newFakeLimiter())

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := d.Dispatch(context.Background(), fullUser(), string(long), testNow); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(sms.sent) != 1 {
		t.Fatalf("SMS sent %d messages, want 1", len(sms.sent))
	}
	if got := len(sms.sent[0]); got > 160 {
		t.Errorf("SMS body length %d, want <= 160", got)
	}
}
