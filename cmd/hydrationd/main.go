// Command hydrationd serves the Water4WeightLoss JSON API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"water4weightloss/dblayer"
	"water4weightloss/healthz"
	"water4weightloss/httpmetrics"
	"water4weightloss/motivation"
	"water4weightloss/notify"
	"water4weightloss/summary"
	"water4weightloss/sweeper"
	"water4weightloss/webapi"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/golang/glog"
	"github.com/sendgrid/sendgrid-go"
)

var (
	debugListen = flag.String("debug-listen", "127.0.0.1:8001", "Server address:port for debug endpoint.")
	apiListen   = flag.String("api-listen", "127.0.0.1:8000", "Server address:port for API endpoint.")
	dataProject = flag.String("data-project", "", "GCP project that contains the application state.")
	summaryFrom = flag.String("summary-from", "bot@water4weightloss.com.au", "From address for summary emails.")
)

func main() {
	flag.Parse()

	glog.Infof("flags:")
	glog.Infof("debug-listen: %v", *debugListen)
	glog.Infof("api-listen: %v", *apiListen)
	glog.Infof("data-project: %v", *dataProject)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := do(ctx); err != nil {
		glog.Exitf("Error: %v", err)
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
	authClient, err := app.Auth(ctx)
	if err != nil {
		return fmt.Errorf("while creating Firebase Auth client: %w", err)
	}
	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("while creating FCM client: %w", err)
	}

	db := dblayer.New(fstore)

	var smsSender notify.SMSSender
	if sid := os.Getenv("TWILIO_ACCOUNT_SID"); sid != "" {
		smsSender = notify.NewTwilioSender(sid, os.Getenv("TWILIO_AUTH_TOKEN"), os.Getenv("TWILIO_PHONE_NUMBER"))
	} else {
		glog.Warningf("TWILIO_ACCOUNT_SID is not set; SMS reminders are disabled")
	}
	dispatcher := notify.New(smsSender, notify.NewFCMSender(messagingClient), db)

	var mailer sweeper.Mailer
	if key := os.Getenv("SENDGRID_API_KEY"); key != "" {
		mailer = summary.NewMailer(sendgrid.NewSendClient(key), *summaryFrom)
	} else {
		glog.Warningf("SENDGRID_API_KEY is not set; summary emails are disabled")
	}

	motivator, err := motivation.New(ctx, os.Getenv("GEMINI_API_KEY"))
	if err != nil {
		return fmt.Errorf("while creating motivation client: %w", err)
	}

	// The sweeper here only serves the on-demand cron endpoint; the ticker
	// loop lives in reminderd.
	sweep := sweeper.New(db, dispatcher, mailer, time.Hour)

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

	api := webapi.New(db, webapi.NewFirebaseVerifier(authClient), motivator, sweep, os.Getenv("CRON_SECRET"))
	apiServeMux := http.NewServeMux()
	api.Register(apiServeMux)

	metrics := httpmetrics.New(apiServeMux)
	metrics.RegisterMetrics()
	apiServer := &http.Server{
		Addr:    *apiListen,
		Handler: metrics,

		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := debugServer.ListenAndServe(); err != nil {
			glog.Fatalf("Debug server died: %v", err)
		}
	}()

	go func() {
		if err := apiServer.ListenAndServe(); err != nil {
			glog.Fatalf("API server died: %v", err)
		}
	}()

	gate.SetReady()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	<-signalCh

	glog.Flush()

	return nil
}
