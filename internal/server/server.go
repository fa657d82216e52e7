// Package server exposes the update coordinator over HTTP for `updatekit serve`.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	apperrors "updatekit/internal/errors"
	"updatekit/internal/history"
	"updatekit/internal/update"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes int64 = 1 << 20

// shutdownTimeout bounds graceful shutdown in Run.
const shutdownTimeout = 5 * time.Second

// Service is the coordinator surface the HTTP layer drives.
// *update.Coordinator satisfies it.
type Service interface {
	Snapshot() update.State
	FeedURL() string
	CheckForUpdates()
	CheckForUpdatesInBackground()
	CheckForFeedForUpdate()
	ResetUpdateCycle()
	ResetUpdateCycleAfterShortDelay()
	SetUpdateCheckInterval(interval time.Duration)
	SetAutomaticallyChecksForUpdates(enabled bool)
	SetAutomaticallyDownloadsUpdates(enabled bool)
}

// HistoryReader serves /history. *history.Store satisfies it.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Config wires the HTTP surface. History is optional.
type Config struct {
	Service Service
	History HistoryReader
	Log     zerolog.Logger
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	update.State
	FeedURL string `json:"feed_url"`
}

// Preferences is the body of GET and PUT /preferences. PUT applies only the
// fields that are present.
type Preferences struct {
	CheckIntervalSeconds *float64 `json:"check_interval_seconds,omitempty"`
	AutoCheck            *bool    `json:"auto_check,omitempty"`
	AutoDownload         *bool    `json:"auto_download,omitempty"`
}

// ErrorResponse is the JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type acceptedResponse struct {
	Status string `json:"status"`
	Action string `json:"action"`
}

type routes struct {
	svc     Service
	history HistoryReader
	log     zerolog.Logger
}

// NewMux builds the router.
func NewMux(cfg Config) http.Handler {
	rt := &routes{svc: cfg.Service, history: cfg.History, log: cfg.Log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(cfg.Log))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/status", rt.status)

	r.Group(func(r chi.Router) {
		r.Use(rt.requireFeed)
		r.Post("/check", rt.accept("check", cfg.Service.CheckForUpdates))
		r.Post("/check/background", rt.accept("check_background", cfg.Service.CheckForUpdatesInBackground))
		r.Post("/feed", rt.accept("feed", cfg.Service.CheckForFeedForUpdate))
	})
	r.Post("/reset", rt.reset)

	r.Get("/preferences", rt.getPreferences)
	r.Put("/preferences", rt.putPreferences)

	r.Get("/history", rt.listHistory)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// New returns an http.Server for addr serving NewMux(cfg).
func New(addr string, cfg Config) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewMux(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run serves until ctx is done, then shuts the server down gracefully.
func Run(ctx context.Context, srv *http.Server, log zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
		return err
	}
	return nil
}

func (rt *routes) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		State:   rt.svc.Snapshot(),
		FeedURL: rt.svc.FeedURL(),
	})
}

// requireFeed rejects check requests up front when no feed URL is configured.
// The coordinator would only log the failure.
func (rt *routes) requireFeed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rt.svc.FeedURL() == "" {
			writeError(w, http.StatusConflict, apperrors.CodeConfigurationMissing, update.ErrFeedURLMissing.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rt *routes) accept(action string, run func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run()
		writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", Action: action})
	}
}

func (rt *routes) reset(w http.ResponseWriter, r *http.Request) {
	switch delay := r.URL.Query().Get("delay"); delay {
	case "":
		rt.svc.ResetUpdateCycle()
		writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", Action: "reset"})
	case "short":
		rt.svc.ResetUpdateCycleAfterShortDelay()
		writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", Action: "reset_after_short_delay"})
	default:
		writeError(w, http.StatusBadRequest, apperrors.CodeInvalidArgument, "delay must be empty or \"short\"")
	}
}

func (rt *routes) currentPreferences() Preferences {
	s := rt.svc.Snapshot()
	seconds := s.CheckInterval.Seconds()
	return Preferences{
		CheckIntervalSeconds: &seconds,
		AutoCheck:            &s.AutoCheck,
		AutoDownload:         &s.AutoDownload,
	}
}

func (rt *routes) getPreferences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.currentPreferences())
}

func (rt *routes) putPreferences(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeError(w, http.StatusUnsupportedMediaType, apperrors.CodeInvalidArgument, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var prefs Preferences
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, apperrors.CodeInvalidArgument, "invalid JSON body")
		return
	}

	// No range checks: zero and negative intervals are stored as given.
	if prefs.CheckIntervalSeconds != nil {
		rt.svc.SetUpdateCheckInterval(update.IntervalFromSeconds(*prefs.CheckIntervalSeconds))
	}
	if prefs.AutoCheck != nil {
		rt.svc.SetAutomaticallyChecksForUpdates(*prefs.AutoCheck)
	}
	if prefs.AutoDownload != nil {
		rt.svc.SetAutomaticallyDownloadsUpdates(*prefs.AutoDownload)
	}
	rt.log.Info().
		Bool("interval", prefs.CheckIntervalSeconds != nil).
		Bool("auto_check", prefs.AutoCheck != nil).
		Bool("auto_download", prefs.AutoDownload != nil).
		Msg("preferences updated over http")

	writeJSON(w, http.StatusOK, rt.echoPreferences(prefs))
}

// echoPreferences merges the request into the current values. The snapshot
// may not reflect the writes yet, since it is republished on the loop.
func (rt *routes) echoPreferences(applied Preferences) Preferences {
	out := rt.currentPreferences()
	if applied.CheckIntervalSeconds != nil {
		out.CheckIntervalSeconds = applied.CheckIntervalSeconds
	}
	if applied.AutoCheck != nil {
		out.AutoCheck = applied.AutoCheck
	}
	if applied.AutoDownload != nil {
		out.AutoDownload = applied.AutoDownload
	}
	return out
}

func (rt *routes) listHistory(w http.ResponseWriter, r *http.Request) {
	if rt.history == nil {
		writeError(w, http.StatusServiceUnavailable, apperrors.CodeHistoryFailed, "history is disabled")
		return
	}

	limit := history.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, apperrors.CodeInvalidArgument, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := rt.history.Recent(r.Context(), limit)
	if err != nil {
		rt.log.Error().Err(err).Msg("failed to read history")
		writeError(w, http.StatusInternalServerError, apperrors.CodeOf(err), "failed to read history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a consistent JSON error payload.
func writeError(w http.ResponseWriter, status int, code apperrors.Code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: string(code)})
}
