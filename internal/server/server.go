package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"osutrack-bot/internal/config"
	"osutrack-bot/internal/jobs"
	"osutrack-bot/internal/util"
)

// StatusSource reports sync progress.
type StatusSource interface {
	Status(ctx context.Context) (jobs.Status, error)
}

// Scheduled lists the jobs still on the schedule.
type Scheduled interface {
	Scheduled() []string
}

func New(cfg config.Config, status StatusSource, sched Scheduled, logger *zap.Logger) *http.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ts": util.NowISO()})
	})

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		st, err := status.Status(r.Context())
		if err != nil {
			logger.Error("status", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		body := map[string]any{
			"ok":              true,
			"lastUpdated":     st.LastUpdated,
			"activeCategory":  st.ActiveCategory,
			"collectedScores": st.CollectedScores,
		}
		if sched != nil {
			body["scheduled"] = sched.Scheduled()
		}
		writeJSON(w, http.StatusOK, body)
	})

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
