package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/web3-frozen/energy-monitor/internal/analytics"
)

// AnalyticsGetter serves cached or fresh analytics.
type AnalyticsGetter interface {
	Get(ctx context.Context, contractID string, opts analytics.Options) (*analytics.Result, error)
}

// Streamer attaches a websocket client to a contract's live updates.
type Streamer interface {
	Serve(w http.ResponseWriter, r *http.Request, contractID string)
}

type energyResponse struct {
	Status    string `json:"status"`
	Data      any    `json:"data"`
	FromCache bool   `json:"fromCache"`
}

func Energy(svc AnalyticsGetter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID := strings.TrimSpace(chi.URLParam(r, "contractId"))
		if contractID == "" {
			http.Error(w, `{"status":"error","error":"contractId required"}`, http.StatusBadRequest)
			return
		}

		q := r.URL.Query()
		opts := analytics.Options{
			Refresh: q.Get("refresh") == "true",
			Address: strings.TrimSpace(q.Get("address")),
		}

		res, err := svc.Get(r.Context(), contractID, opts)
		if err != nil {
			logger.Error("energy analytics failed", "contract", contractID, "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"status":"error","error":"Failed to fetch energy analytics"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(energyResponse{Status: "success", Data: res.Data, FromCache: res.FromCache})
	}
}

func Stream(s Streamer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID := strings.TrimSpace(chi.URLParam(r, "contractId"))
		if contractID == "" {
			http.Error(w, `{"status":"error","error":"contractId required"}`, http.StatusBadRequest)
			return
		}
		s.Serve(w, r, contractID)
	}
}
