// Command reminderd runs the contextual-reminder sweep on a timer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"water4weightloss/dblayer"
	"water4weightloss/healthz"
	"water4weightloss/notify"
	"water4weightloss/summary"
	"water4weightloss/sweeper"

	"cloud.google.com/go/firestore"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	firebase "firebase.google.com/go/v4"
	"github.com/sendgrid/sendgrid-go"
)

var (
	debugListen        = flag.String("debug-listen", "127.0.0.1:8001", "Server address:port for debug endpoint.")
	recheckPeriod      = flag.Duration("recheck-period", 30*time.Minute, "Time between sweeps")
	dataProject        = flag.String("data-project", "", "GCP project that contains the application state.")
	twilioTokenSecret  = flag.String("twilio-token-secret", "", "GCP Secret Manager secret name that contains the Twilio auth token")
	sendgridKeySecret  = flag.String("sendgrid-key-secret", "", "GCP Secret Manager secret name that contains the SendGrid API key")
	summaryFromAddress = flag.String("summary-from", "bot@water4weightloss.com.au", "From address for summary emails.")
)

func main() {
	flag.Parse()

	slog.Info("Starting up")
	slog.Info(
		"Flags",
		slog.String("debug-listen", *debugListen),
		slog.Duration("recheck-period", *recheckPeriod),
		slog.String("data-project", *dataProject),
		slog.String("twilio-token-secret", *twilioTokenSecret),
		slog.String("sendgrid-key-secret", *sendgridKeySecret),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := do(ctx); err != nil {
		slog.ErrorContext(ctx, "Error", slog.Any("err", err))
		os.Exit(255)
	}
}

func do(ctx context.Context) error {
	fstore, err := firestore.NewClient(ctx, *dataProject)
	if err != nil {
		return fmt.Errorf("while creating FireStore client: %w", err)
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: *dataProject})
	if err != nil {
		return fmt.Errorf("while creating Firebase app: %w", err)
	}
	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("while creating FCM client: %w", err)
	}

	db := dblayer.New(fstore)

	smsSender, err := newTwilioSender(ctx)
	if err != nil {
		return fmt.Errorf("while creating Twilio client: %w", err)
	}
	dispatcher := notify.New(smsSender, notify.NewFCMSender(messagingClient), db)

	mailer, err := newMailer(ctx)
	if err != nil {
		return fmt.Errorf("while creating SendGrid client: %w", err)
	}

	sweep := sweeper.New(db, dispatcher, mailer, *recheckPeriod)

	gate := healthz.New()
	debugServeMux := http.NewServeMux()
	debugServeMux.Handle("/healthz", gate.Healthz())
	debugServeMux.Handle("/readyz", gate.Readyz())
	debugServeMux.HandleFunc("/debug/pprof/", pprof.Index)
	debugServeMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	debugServeMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	debugServeMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	debugServeMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	debugServer := &http.Server{
		Addr:    *debugListen,
		Handler: debugServeMux,

		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := debugServer.ListenAndServe(); err != nil {
			slog.ErrorContext(ctx, "Debug server died", slog.Any("err", err))
			os.Exit(255)
		}
	}()

	go func() {
		sweep.Run(ctx)
	}()

	gate.SetReady()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	<-signalCh

	return nil
}

// fetchSecret pulls the latest version of a Secret Manager secret.
func fetchSecret(ctx context.Context, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	secretClient, err := secretmanager.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("while creating Secret Manager client: %w", err)
	}
	defer secretClient.Close()

	resp, err := secretClient.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", *dataProject, name),
	})
	if err != nil {
		return "", fmt.Errorf("while pulling secret: %w", err)
	}

	return string(resp.GetPayload().GetData()), nil
}

func newTwilioSender(ctx context.Context) (notify.SMSSender, error) {
	sid := os.Getenv("TWILIO_ACCOUNT_SID")
	if sid == "" {
		slog.Warn("TWILIO_ACCOUNT_SID is not set; SMS reminders are disabled")
		return nil, nil
	}

	token := os.Getenv("TWILIO_AUTH_TOKEN")
	if *twilioTokenSecret != "" {
		var err error
		token, err = fetchSecret(ctx, *twilioTokenSecret)
		if err != nil {
			return nil, err
		}
	}

	return notify.NewTwilioSender(sid, token, os.Getenv("TWILIO_PHONE_NUMBER")), nil
}

func newMailer(ctx context.Context) (sweeper.Mailer, error) {
	key := os.Getenv("SENDGRID_API_KEY")
	if *sendgridKeySecret != "" {
		var err error
		key, err = fetchSecret(ctx, *sendgridKeySecret)
		if err != nil {
			return nil, err
		}
	}
	if key == "" {
		slog.Warn("No SendGrid API key configured; summary emails are disabled")
		return nil, nil
	}

	return summary.NewMailer(sendgrid.NewSendClient(key), *summaryFromAddress), nil
}
