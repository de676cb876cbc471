// Package server exposes metrics, health and the on-demand sync trigger
// over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/evanofslack/ddns-sync/internal/config"
	"github.com/evanofslack/ddns-sync/internal/metrics"
	"github.com/evanofslack/ddns-sync/internal/reconcile"
	"github.com/evanofslack/ddns-sync/internal/runlock"
	"github.com/evanofslack/ddns-sync/internal/runner"
)

type Syncer interface {
	Run(ctx context.Context, trigger string) (reconcile.SyncReport, error)
	Recent(ctx context.Context, limit int) ([]reconcile.SyncReport, error)
	Domains() []config.Domain
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func Handler(syncer Syncer, metrics *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/sync", handleSync(syncer))
	mux.HandleFunc("GET /api/logs", handleLogs(syncer))
	mux.HandleFunc("GET /api/domains", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: syncer.Domains()})
	})
	return mux
}

func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func handleSync(syncer Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// A client hanging up must not abort a sync halfway through.
		ctx := context.WithoutCancel(r.Context())
		report, err := syncer.Run(ctx, runner.TriggerManual)
		switch {
		case errors.Is(err, runner.ErrNoDomains):
			writeJSON(w, http.StatusBadRequest, envelope{Error: err.Error()})
		case errors.Is(err, runlock.ErrRunInProgress):
			writeJSON(w, http.StatusConflict, envelope{Error: err.Error()})
		case err != nil:
			slog.Error("Manual sync failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, envelope{Error: err.Error()})
		default:
			writeJSON(w, http.StatusOK, envelope{Success: true, Data: report})
		}
	}
}

func handleLogs(syncer Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, envelope{Error: "limit must be a non-negative integer"})
				return
			}
			limit = n
		}

		reports, err := syncer.Recent(r.Context(), limit)
		if err != nil {
			slog.Error("Failed to read sync log", "error", err)
			writeJSON(w, http.StatusInternalServerError, envelope{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: reports})
	}
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("fail write response", "error", err)
	}
}
