package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/web3-frozen/energy-monitor/internal/monitor"
	"github.com/web3-frozen/energy-monitor/internal/store"
)

// BatchRunner runs the contract batch and reports when it last ran.
type BatchRunner interface {
	RunOnce(ctx context.Context) monitor.BatchResult
	LastRun(ctx context.Context) (time.Time, bool, error)
}

// RunLister lists recorded batch runs.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
}

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// RunCron processes every monitored contract now and returns the batch result.
// The batch runs to completion even if the caller goes away.
func RunCron(p BatchRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := p.RunOnce(context.WithoutCancel(r.Context()))
		w.Header().Set("Content-Type", "application/json")
		if !res.Success {
			w.WriteHeader(http.StatusInternalServerError)
		}
		_ = json.NewEncoder(w).Encode(res)
	}
}

func LastRun(p BatchRunner) http.HandlerFunc {
	type response struct {
		LastRun *int64 `json:"lastRun"`
		Ran     bool   `json:"ran"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		t, ok, err := p.LastRun(r.Context())
		if err != nil {
			http.Error(w, `{"error":"failed to read last run"}`, http.StatusInternalServerError)
			return
		}
		resp := response{Ran: ok}
		if ok {
			ms := t.UnixMilli()
			resp.LastRun = &ms
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Runs lists recorded batch runs. A nil lister yields an empty list.
func Runs(l RunLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRunsLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
				return
			}
			limit = min(n, maxRunsLimit)
		}

		runs := []store.Run{}
		if l != nil {
			got, err := l.ListRuns(r.Context(), limit)
			if err != nil {
				http.Error(w, `{"error":"failed to list runs"}`, http.StatusInternalServerError)
				return
			}
			if got != nil {
				runs = got
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(runs)
	}
}
