package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ── HTTP request metrics (RED method) ──────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "energy_monitor",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "energy_monitor",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "energy_monitor",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being processed.",
	})
)

// ── Upstream indexer metrics ───────────────────────────────────────────

var (
	IndexerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "energy_monitor",
		Subsystem: "indexer",
		Name:      "requests_total",
		Help:      "Total number of upstream indexer page requests.",
	}, []string{"status"})

	IndexerFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "energy_monitor",
		Subsystem: "indexer",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of a full log fetch per contract in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"contract"})
)

// ── Analytics pipeline metrics ─────────────────────────────────────────

var (
	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "energy_monitor",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Analytics cache lookups by result (hit, miss, invalid, error).",
	}, []string{"result"})

	CacheWriteErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "energy_monitor",
		Subsystem: "cache",
		Name:      "write_errors_total",
		Help:      "Failed writes to the key-value store by kind.",
	}, []string{"kind"})

	LogsDiscardedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "energy_monitor",
		Subsystem: "pipeline",
		Name:      "logs_discarded_total",
		Help:      "Log entries dropped by validation.",
	}, []string{"contract"})

	FallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "energy_monitor",
		Subsystem: "pipeline",
		Name:      "fallbacks_total",
		Help:      "Responses served from the zero or mock fallback.",
	}, []string{"contract", "reason"})
)

// ── Batch processor metrics ────────────────────────────────────────────

var (
	BatchRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "energy_monitor",
		Subsystem: "batch",
		Name:      "runs_total",
		Help:      "Total number of batch runs.",
	})

	BatchContractResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "energy_monitor",
		Subsystem: "batch",
		Name:      "contract_results_total",
		Help:      "Per-contract batch outcomes.",
	}, []string{"contract", "status"})

	BatchLastRun = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "energy_monitor",
		Subsystem: "batch",
		Name:      "last_run_timestamp",
		Help:      "Unix timestamp of the last completed batch.",
	})
)

// ── Business metrics ───────────────────────────────────────────────────

var (
	EnergyRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "energy_monitor",
		Subsystem: "business",
		Name:      "energy_per_minute",
		Help:      "Latest overall energy rate per contract.",
	}, []string{"contract"})

	UniqueUsers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "energy_monitor",
		Subsystem: "business",
		Name:      "unique_users",
		Help:      "Latest unique harvester count per contract.",
	}, []string{"contract"})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "energy_monitor",
		Subsystem: "stream",
		Name:      "clients",
		Help:      "Number of connected websocket clients.",
	})
)
