// Package webapi serves the JSON API consumed by the web client.
package webapi

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"water4weightloss/dblayer"
	"water4weightloss/dbtypes"
	"water4weightloss/motivation"
	"water4weightloss/streak"
	"water4weightloss/sweeper"

	"github.com/golang/glog"
)

// historyDefaultDays and historyMaxDays bound the /api/history window.
const (
	historyDefaultDays = 7
	historyMaxDays     = 90
)

// Error codes surfaced in the JSON error envelope.
const (
	CodeUnauthenticated    = "unauthenticated"
	CodeInvalidArgument    = "invalid-argument"
	CodeNotFound           = "not-found"
	CodeFailedPrecondition = "failed-precondition"
	CodeInternal           = "internal"
)

// TokenVerifier checks a Firebase ID token and returns the caller's uid.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (uid string, err error)
}

// Store is the slice of the database layer the API needs.
type Store interface {
	LogWater(ctx context.Context, userID string, amount int64, now time.Time) (*dbtypes.HydrationDay, *dbtypes.UserProfile, error)
	Day(ctx context.Context, userID, date string) (*dbtypes.HydrationDay, error)
	History(ctx context.Context, userID string, n int, now time.Time) ([]*dbtypes.HydrationDay, error)
	Profile(ctx context.Context, userID string) (*dbtypes.UserProfile, error)
	UpdateSettings(ctx context.Context, userID string, s *dblayer.Settings) error
}

// SweepRunner runs one reminder sweep on demand.
type SweepRunner interface {
	Sweep(ctx context.Context) ([]sweeper.UserStatus, error)
}

type API struct {
	store      Store
	verifier   TokenVerifier
	motivator  *motivation.Client
	sweeper    SweepRunner
	cronSecret string
}

func New(store Store, verifier TokenVerifier, motivator *motivation.Client, sweepRunner SweepRunner, cronSecret string) *API {
	return &API{
		store:      store,
		verifier:   verifier,
		motivator:  motivator,
		sweeper:    sweepRunner,
		cronSecret: cronSecret,
	}
}

func (a *API) Register(m *http.ServeMux) {
	m.HandleFunc("/api/log-water", a.logWaterHandler)
	m.HandleFunc("/api/day", a.dayHandler)
	m.HandleFunc("/api/history", a.historyHandler)
	m.HandleFunc("/api/settings", a.settingsHandler)
	m.HandleFunc("/api/streak", a.streakHandler)
	m.HandleFunc("/api/motivation", a.motivationHandler)
	m.HandleFunc("/api/cron/reminders", a.cronRemindersHandler)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	content := bytes.Buffer{}
	if err := json.NewEncoder(&content).Encode(payload); err != nil {
		glog.Errorf("Error while encoding response: %v", err)
		http.Error(w, "Internal Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := io.Copy(w, &content); err != nil {
		// It's too late to write an error to the HTTP response.
		glog.Errorf("Error while writing output: %v", err)
		return
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// writeStoreError maps database-layer sentinels onto the error envelope.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dblayer.ErrInvalidAmount), errors.Is(err, dblayer.ErrInvalidGoal):
		writeError(w, http.StatusBadRequest, CodeInvalidArgument, err.Error())
	case errors.Is(err, dblayer.ErrProfileNotFound), errors.Is(err, dblayer.ErrDayNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
	default:
		glog.Errorf("Internal error: %v", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// authUID resolves the calling user from the bearer ID token.  An empty uid
// with a written response means the caller was rejected.
func (a *API) authUID(w http.ResponseWriter, r *http.Request) string {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "missing bearer token")
		return ""
	}

	uid, err := a.verifier.Verify(r.Context(), token)
	if err != nil {
		glog.Errorf("Error while verifying ID token: %v", err)
		writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "invalid ID token")
		return ""
	}

	return uid
}

type logWaterRequest struct {
	Amount int64 `json:"amount"`
}

type logWaterResponse struct {
	Success       bool                  `json:"success"`
	Day           *dbtypes.HydrationDay `json:"day"`
	DailyStreak   int64                 `json:"dailyStreak"`
	LongestStreak int64                 `json:"longestStreak"`
}

func (a *API) logWaterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, CodeInvalidArgument, "POST only")
		return
	}

	ctx := r.Context()
	uid := a.authUID(w, r)
	if uid == "" {
		return
	}

	req := logWaterRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidArgument, "malformed request body")
		return
	}

	day, profile, err := a.store.LogWater(ctx, uid, req.Amount, time.Now())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, logWaterResponse{
		Success:       true,
		Day:           day,
		DailyStreak:   profile.DailyStreak,
		LongestStreak: profile.LongestStreak,
	})
}

func (a *API) dayHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, CodeInvalidArgument, "GET only")
		return
	}

	ctx := r.Context()
	uid := a.authUID(w, r)
	if uid == "" {
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = dbtypes.DayKey(time.Now())
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidArgument, fmt.Sprintf("could not parse date %q", date))
		return
	}

	day, err := a.store.Day(ctx, uid, date)
	if errors.Is(err, dblayer.ErrDayNotFound) {
		// A day without logs is an empty day, not an error.
		day = &dbtypes.HydrationDay{UserID: uid, Date: date}
	} else if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, day)
}

func (a *API) historyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, CodeInvalidArgument, "GET only")
		return
	}

	ctx := r.Context()
	uid := a.authUID(w, r)
	if uid == "" {
		return
	}

	days := historyDefaultDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > historyMaxDays {
			writeError(w, http.StatusBadRequest, CodeInvalidArgument, fmt.Sprintf("days must be 1-%d", historyMaxDays))
			return
		}
		days = parsed
	}

	history, err := a.store.History(ctx, uid, days, time.Now())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if history == nil {
		history = []*dbtypes.HydrationDay{}
	}

	writeJSON(w, http.StatusOK, history)
}

func (a *API) settingsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := a.authUID(w, r)
	if uid == "" {
		return
	}

	switch r.Method {
	case http.MethodGet:
		profile, err := a.store.Profile(ctx, uid)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dblayer.Settings{
			HydrationGoal:  profile.HydrationGoal,
			MotivationTone: profile.MotivationTone,
			PhoneNumber:    profile.PhoneNumber,
			DeviceToken:    profile.DeviceToken,
			SMSReminders:   profile.SMSReminders,
			PushReminders:  profile.PushReminders,
			EmailSummaries: profile.EmailSummaries,
			ReminderTimes:  profile.ReminderTimes,
		})
	case http.MethodPost:
		settings := dblayer.Settings{}
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidArgument, "malformed request body")
			return
		}
		if err := a.store.UpdateSettings(ctx, uid, &settings); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, CodeInvalidArgument, "GET or POST only")
	}
}

type streakResponse struct {
	DailyStreak   int64          `json:"dailyStreak"`
	LongestStreak int64          `json:"longestStreak"`
	LastLogDate   string         `json:"lastLogDate"`
	Badges        []streak.Badge `json:"badges"`
}

func (a *API) streakHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, CodeInvalidArgument, "GET only")
		return
	}

	ctx := r.Context()
	uid := a.authUID(w, r)
	if uid == "" {
		return
	}

	resp := streakResponse{Badges: []streak.Badge{}}

	profile, err := a.store.Profile(ctx, uid)
	if err != nil && !errors.Is(err, dblayer.ErrProfileNotFound) {
		// A user who has never logged has no profile yet; that's a zero
		// streak, not an error.
		writeStoreError(w, err)
		return
	}
	if profile != nil {
		resp.DailyStreak = profile.DailyStreak
		resp.LongestStreak = profile.LongestStreak
		resp.LastLogDate = profile.LastLogDate
		if badges := streak.Badges(profile.LongestStreak); badges != nil {
			resp.Badges = badges
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) motivationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, CodeInvalidArgument, "POST only")
		return
	}

	ctx := r.Context()
	uid := a.authUID(w, r)
	if uid == "" {
		return
	}

	req := motivation.Request{}

	profile, err := a.store.Profile(ctx, uid)
	if err != nil && !errors.Is(err, dblayer.ErrProfileNotFound) {
		writeStoreError(w, err)
		return
	}
	if profile != nil {
		req.Name = profile.DisplayName
		req.Tone = profile.MotivationTone
		req.Goal = profile.HydrationGoal
		req.Streak = profile.DailyStreak
	}

	day, err := a.store.Day(ctx, uid, dbtypes.DayKey(time.Now()))
	if err != nil && !errors.Is(err, dblayer.ErrDayNotFound) {
		writeStoreError(w, err)
		return
	}
	if day != nil {
		req.Intake = day.Total
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": a.motivator.Message(ctx, req)})
}

type cronResponse struct {
	Success  bool                 `json:"success"`
	Statuses []sweeper.UserStatus `json:"statuses"`
}

// cronRemindersHandler runs a reminder sweep on demand.  It is protected by
// the shared cron secret, not by user authentication.
func (a *API) cronRemindersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, CodeInvalidArgument, "POST only")
		return
	}

	if a.cronSecret == "" {
		writeError(w, http.StatusPreconditionFailed, CodeFailedPrecondition, "cron endpoint is not configured")
		return
	}

	token := bearerToken(r)
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.cronSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "bad cron secret")
		return
	}

	statuses, err := a.sweeper.Sweep(r.Context())
	if err != nil {
		glog.Errorf("Error while running reminder sweep: %v", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "sweep failed")
		return
	}
	if statuses == nil {
		statuses = []sweeper.UserStatus{}
	}

	writeJSON(w, http.StatusOK, cronResponse{Success: true, Statuses: statuses})
}
