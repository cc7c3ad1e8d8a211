// Package summary builds and sends the weekly hydration summary email.
package summary

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"water4weightloss/dbtypes"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// WeekStats summarizes the last week of day documents.
type WeekStats struct {
	Name        string
	TotalML     int64
	DailyAvgML  int64
	GoalHitDays int
	DaysLogged  int
	DailyStreak int64
}

// Compute folds a week of day documents into the email's numbers.  Days
// without logs count toward nothing.
func Compute(name string, days []*dbtypes.HydrationDay, dailyStreak int64) WeekStats {
	stats := WeekStats{Name: name, DailyStreak: dailyStreak}
	if stats.Name == "" {
		stats.Name = "there"
	}

	for _, day := range days {
		if day == nil || len(day.Logs) == 0 {
			continue
		}
		stats.DaysLogged++
		stats.TotalML += day.Total
		if day.Goal > 0 && day.Total >= day.Goal {
			stats.GoalHitDays++
		}
	}

	if stats.DaysLogged > 0 {
		stats.DailyAvgML = stats.TotalML / int64(stats.DaysLogged)
	}

	return stats
}

const emailPlain = `Hi {{.Name}},

Here's your hydration week in review:

* Total logged: {{.TotalML}}ml across {{.DaysLogged}} day(s)
* Daily average: {{.DailyAvgML}}ml
* Goal hit on {{.GoalHitDays}} day(s)
* Current streak: {{.DailyStreak}} day(s)

Keep the bottle close. See you next week!
`

var emailPlainTemplate = template.Must(template.New("summary").Parse(emailPlain))

// Mailer sends summary emails through SendGrid.
type Mailer struct {
	sendgridClient *sendgrid.Client
	fromAddress    string
}

func NewMailer(sendgridClient *sendgrid.Client, fromAddress string) *Mailer {
	return &Mailer{
		sendgridClient: sendgridClient,
		fromAddress:    fromAddress,
	}
}

// SendWeekly sends the summary to the user's email address.
func (m *Mailer) SendWeekly(ctx context.Context, user *dbtypes.UserProfile, stats WeekStats) error {
	if user.Email == "" {
		return fmt.Errorf("user %s has no email address", user.ID)
	}

	message := mail.NewV3Mail()
	message.From = mail.NewEmail("Water4WeightLoss", m.fromAddress)
	message.Subject = "Your weekly hydration summary"

	personalization := mail.NewPersonalization()
	personalization.To = append(personalization.To, mail.NewEmail(user.DisplayName, user.Email))
	message.Personalizations = append(message.Personalizations, personalization)

	textContent := &bytes.Buffer{}
	if err := emailPlainTemplate.Execute(textContent, stats); err != nil {
		return fmt.Errorf("while templating summary email: %w", err)
	}

	message.Content = append(message.Content, mail.NewContent("text/plain", textContent.String()))

	resp, err := m.sendgridClient.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("while sending mail through SendGrid: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2XX response while sending mail through SendGrid: %d %s", resp.StatusCode, resp.Body)
	}

	return nil
}
