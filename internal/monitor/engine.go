package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/web3-frozen/energy-monitor/internal/energy"
	"github.com/web3-frozen/energy-monitor/internal/kv"
	"github.com/web3-frozen/energy-monitor/internal/metrics"
	"github.com/web3-frozen/energy-monitor/internal/store"
)

const (
	defaultInterval    = 5 * time.Minute
	defaultParallelism = 4
	snapshotRetention  = 365 * 24 * time.Hour
	cleanupEvery       = 24 * time.Hour
)

// Refresher recomputes analytics for one contract.
type Refresher interface {
	Refresh(ctx context.Context, contractID string) (*energy.Analytics, error)
}

// ContractLister returns the monitored contracts.
type ContractLister interface {
	List(ctx context.Context) ([]string, error)
}

// KV is the key-value surface used for the last-run marker.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Ledger durably records batch runs.
type Ledger interface {
	RecordRun(ctx context.Context, run store.Run) (int64, error)
	CleanupSnapshots(ctx context.Context, maxAge time.Duration) (int64, error)
}

// ContractResult is the outcome for one contract in a batch.
type ContractResult struct {
	ContractID  string  `json:"contractId"`
	Success     bool    `json:"success"`
	Error       string  `json:"error,omitempty"`
	EnergyRate  float64 `json:"energyRate"`
	UniqueUsers int     `json:"uniqueUsers"`
	DurationMs  int64   `json:"durationMs"`
}

// BatchResult summarises one pass over all monitored contracts. Success is
// false only when the contract list itself could not be loaded.
type BatchResult struct {
	Success   bool             `json:"success"`
	RunID     int64            `json:"runId,omitempty"`
	Timestamp int64            `json:"timestamp"`
	Error     string           `json:"error,omitempty"`
	Results   []ContractResult `json:"results"`
}

// Processor refreshes every monitored contract in parallel.
type Processor struct {
	refresher   Refresher
	contracts   ContractLister
	kv          KV
	ledger      Ledger
	logger      *slog.Logger
	interval    time.Duration
	parallelism int
	now         func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

func WithLedger(l Ledger) Option { return func(p *Processor) { p.ledger = l } }

func WithInterval(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithParallelism(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.parallelism = n
		}
	}
}

func WithClock(now func() time.Time) Option { return func(p *Processor) { p.now = now } }

func NewProcessor(r Refresher, contracts ContractLister, kvs KV, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		refresher:   r,
		contracts:   contracts,
		kv:          kvs,
		logger:      logger.With("component", "processor"),
		interval:    defaultInterval,
		parallelism: defaultParallelism,
		now:         time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Interval returns how often Run processes the batch.
func (p *Processor) Interval() time.Duration { return p.interval }

// Run processes the batch immediately and then on every tick until ctx is
// cancelled.
func (p *Processor) Run(ctx context.Context) {
	p.RunOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	cleanup := time.NewTicker(cleanupEvery)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		case <-cleanup.C:
			p.cleanup(ctx)
		}
	}
}

// RunOnce refreshes all monitored contracts. A failing contract is recorded
// in its result and never aborts the others. The last-run marker is written
// whatever the outcome.
func (p *Processor) RunOnce(ctx context.Context) BatchResult {
	started := p.now()
	metrics.BatchRunsTotal.Inc()

	ids, err := p.contracts.List(ctx)
	if err != nil {
		p.logger.Error("load monitored contracts failed", "error", err)
		res := BatchResult{Timestamp: started.UnixMilli(), Error: err.Error(), Results: []ContractResult{}}
		p.markLastRun(ctx, started)
		return res
	}

	results := make([]ContractResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			results[i] = p.processContract(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	finished := p.now()
	res := BatchResult{Success: true, Timestamp: finished.UnixMilli(), Results: results}
	p.markLastRun(ctx, finished)

	failures := 0
	for _, r := range results {
		if !r.Success {
			failures++
		}
	}
	p.logger.Info("energy batch complete", "contracts", len(ids), "failures", failures,
		"duration", finished.Sub(started).String())

	if p.ledger != nil {
		id, err := p.ledger.RecordRun(ctx, toRun(started, finished, results, failures))
		if err != nil {
			p.logger.Error("record batch run failed", "error", err)
		} else {
			res.RunID = id
		}
	}
	return res
}

func (p *Processor) processContract(ctx context.Context, id string) ContractResult {
	start := time.Now()
	a, err := p.refresher.Refresh(ctx, id)
	r := ContractResult{ContractID: id, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		metrics.BatchContractResults.WithLabelValues(id, "failure").Inc()
		p.logger.Error("energy refresh failed", "contract", id, "error", err)
		r.Error = err.Error()
		return r
	}
	metrics.BatchContractResults.WithLabelValues(id, "success").Inc()
	r.Success = true
	r.EnergyRate = a.Rates.OverallEnergyPerMinute
	r.UniqueUsers = a.Stats.UniqueUsers
	return r
}

func (p *Processor) markLastRun(ctx context.Context, t time.Time) {
	metrics.BatchLastRun.Set(float64(t.Unix()))
	if err := p.kv.Set(ctx, kv.KeyCronLastRun, []byte(strconv.FormatInt(t.UnixMilli(), 10))); err != nil {
		metrics.CacheWriteErrorsTotal.WithLabelValues("last_run").Inc()
		p.logger.Error("write last run failed", "error", err)
	}
}

// LastRun returns when the last batch finished. ok is false if no batch has
// run yet.
func (p *Processor) LastRun(ctx context.Context) (t time.Time, ok bool, err error) {
	raw, err := p.kv.Get(ctx, kv.KeyCronLastRun)
	if errors.Is(err, kv.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last run: %w", err)
	}
	return time.UnixMilli(ms), true, nil
}

func (p *Processor) cleanup(ctx context.Context) {
	if p.ledger == nil {
		return
	}
	n, err := p.ledger.CleanupSnapshots(ctx, snapshotRetention)
	if err != nil {
		p.logger.Error("snapshot archive cleanup failed", "error", err)
		return
	}
	p.logger.Info("snapshot archive cleaned up", "deleted", n)
}

func toRun(started, finished time.Time, results []ContractResult, failures int) store.Run {
	run := store.Run{
		StartedAt:  started,
		FinishedAt: finished,
		Contracts:  len(results),
		Failures:   failures,
		Results:    make([]store.RunResult, 0, len(results)),
	}
	for _, r := range results {
		run.Results = append(run.Results, store.RunResult{
			ContractID:  r.ContractID,
			Success:     r.Success,
			Error:       r.Error,
			EnergyRate:  r.EnergyRate,
			UniqueUsers: r.UniqueUsers,
			DurationMs:  r.DurationMs,
		})
	}
	return run
}
