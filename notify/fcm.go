package notify

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
)

// reminderVibration is the fixed vibration pattern carried on every push.
var reminderVibration = []int{200, 100, 200}

// FCMSender sends web push notifications through Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
}

func NewFCMSender(client *messaging.Client) *FCMSender {
	return &FCMSender{client: client}
}

func (s *FCMSender) SendPush(ctx context.Context, token, title, body string) error {
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title:   title,
				Body:    body,
				Vibrate: reminderVibration,
				Actions: []*messaging.WebpushNotificationAction{
					{Action: "log-water", Title: "Log water"},
					{Action: "snooze", Title: "Snooze"},
				},
			},
		},
	}

	if _, err := s.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("while sending push through FCM: %w", err)
	}

	return nil
}
