package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/web3-frozen/energy-monitor/internal/energy"
)

func TestFetchLogsPaginates(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/v1/contracts/SP1.hold-to-earn/logs" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "secret" {
			t.Errorf("x-api-key = %q, want secret", got)
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		var results []map[string]any
		for i := offset; i < offset+2 && i < 3; i++ {
			results = append(results, map[string]any{
				"sender":     fmt.Sprintf("SP%d", i),
				"energy":     "1.5",
				"integral":   10,
				"block_time": 1000 + i,
				"tx_id":      fmt.Sprintf("0x%d", i),
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"total": 3, "results": results})
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, WithAPIKey("secret"), WithPaging(2, 10))
	logs, err := c.FetchLogs(context.Background(), "SP1.hold-to-earn")
	if err != nil {
		t.Fatalf("FetchLogs error: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("len(logs) = %d, want 3", len(logs))
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if logs[0].Energy == nil || *logs[0].Energy != 1.5 {
		t.Errorf("energy = %v, want 1.5", logs[0].Energy)
	}
	if logs[2].Integral != 10 {
		t.Errorf("integral = %v, want 10", logs[2].Integral)
	}
	if logs[2].Time() != 1002 {
		t.Errorf("block_time = %d, want 1002", logs[2].Time())
	}
}

func TestFetchLogsStopsAtMaxPages(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"results":[{"sender":"a","energy":1},{"sender":"b","energy":2}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, WithPaging(2, 3))
	logs, err := c.FetchLogs(context.Background(), "c")
	if err != nil {
		t.Fatalf("FetchLogs error: %v", err)
	}
	if calls != 3 || len(logs) != 6 {
		t.Errorf("calls = %d, logs = %d; want 3, 6", calls, len(logs))
	}
}

func TestFetchLogsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	if _, err := c.FetchLogs(context.Background(), "c"); err == nil {
		t.Error("expected error for 502, got nil")
	}
}

func TestFetchLogsKeepsValidSiblingsOfMalformedEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[
			{"sender":"SP1","energy":100,"block_time":1000},
			{"sender":"SP1","energy":"200","block_time":"1600"},
			{"sender":"SP2","energy":"n/a","block_time":1700},
			{"sender":42,"energy":5},
			"garbage"
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, WithHTTPClient(srv.Client()))
	logs, err := c.FetchLogs(context.Background(), "c")
	if err != nil {
		t.Fatalf("FetchLogs error: %v", err)
	}
	if len(logs) != 5 {
		t.Fatalf("len(logs) = %d, want 5", len(logs))
	}

	now := time.Unix(2000, 0)
	kept, dropped := energy.Validate(logs, now)
	if len(kept) != 2 || dropped != 3 {
		t.Fatalf("kept = %d, dropped = %d; want 2, 3", len(kept), dropped)
	}
	a := energy.Compute(kept, now)
	if a.Stats.TotalEnergyHarvested != 300 {
		t.Errorf("total = %v, want 300", a.Stats.TotalEnergyHarvested)
	}
	if kept[1].Time() != 1600 {
		t.Errorf("string block_time = %d, want 1600", kept[1].Time())
	}
}

func TestRawEntryToEntry(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantEnergy bool
		wantTime   int64
	}{
		{"numeric energy", `{"sender":"a","energy":12}`, true, 0},
		{"null energy", `{"sender":"a","energy":null}`, false, 0},
		{"missing energy", `{"sender":"a"}`, false, 0},
		{"empty string energy", `{"sender":"a","energy":""}`, false, 0},
		{"iso time fills block_time", `{"sender":"a","energy":"3","block_time_iso":"2024-01-01T00:00:00Z"}`, true, 1704067200},
		{"unparsable energy", `{"sender":"a","energy":"lots"}`, false, 0},
		{"float block_time", `{"sender":"a","energy":1,"block_time":1700.0}`, true, 1700},
		{"bad block_time", `{"sender":"a","energy":1,"block_time":"soon"}`, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r rawEntry
			if err := json.Unmarshal([]byte(tt.raw), &r); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			e := r.toEntry()
			if (e.Energy != nil) != tt.wantEnergy {
				t.Errorf("energy present = %v, want %v", e.Energy != nil, tt.wantEnergy)
			}
			if e.Time() != tt.wantTime {
				t.Errorf("time = %d, want %d", e.Time(), tt.wantTime)
			}
		})
	}
}
