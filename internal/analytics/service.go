package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/web3-frozen/energy-monitor/internal/energy"
	"github.com/web3-frozen/energy-monitor/internal/kv"
	"github.com/web3-frozen/energy-monitor/internal/metrics"
)

// Fetcher supplies raw hold-to-earn logs for a contract.
type Fetcher interface {
	FetchLogs(ctx context.Context, contractID string) ([]energy.LogEntry, error)
}

// Cache is the key-value surface used for analytics entries.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// History stores rolling rate snapshots per contract.
type History interface {
	Append(ctx context.Context, contractID string, snap energy.RateSnapshot) error
	List(ctx context.Context, contractID string) ([]energy.RateSnapshot, error)
}

// Archiver keeps a durable copy of rate snapshots and serves the long
// windows the rolling history cannot cover.
type Archiver interface {
	ArchiveSnapshot(ctx context.Context, contractID string, snap energy.RateSnapshot) error
	ListSnapshots(ctx context.Context, contractID string, since time.Time) ([]energy.RateSnapshot, error)
}

// Publisher is notified of every freshly computed result.
type Publisher interface {
	Publish(contractID string, a *energy.Analytics)
}

// Options controls a single Get.
type Options struct {
	Refresh bool
	Address string
}

// Result is what Get serves.
type Result struct {
	Data      *energy.Analytics
	FromCache bool
}

// Service computes and caches energy analytics.
type Service struct {
	fetcher    Fetcher
	cache      Cache
	history    History
	archiver   Archiver
	publisher  Publisher
	production bool
	logger     *slog.Logger
	now        func() time.Time
	rng        energy.Source
}

// Option configures a Service.
type Option func(*Service)

func WithArchiver(a Archiver) Option { return func(s *Service) { s.archiver = a } }

func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithRand overrides the jitter source used for placeholder history.
func WithRand(r energy.Source) Option { return func(s *Service) { s.rng = r } }

func NewService(f Fetcher, c Cache, h History, production bool, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		fetcher:    f,
		cache:      c,
		history:    h,
		production: production,
		logger:     logger.With("component", "analytics"),
		now:        time.Now,
		rng:        globalRand{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get serves analytics for contractID from cache when possible. Upstream
// failures degrade to an all-zero result (mock data outside production) and
// are never returned as errors; only a cancelled context is.
func (s *Service) Get(ctx context.Context, contractID string, opts Options) (*Result, error) {
	res := &Result{}
	if !opts.Refresh {
		if a, ok := s.cached(ctx, contractID); ok {
			res.Data, res.FromCache = a, true
		}
	}

	if res.Data == nil {
		a, err := s.Refresh(ctx, contractID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("energy analytics fetch failed, serving fallback", "contract", contractID, "error", err)
			a = s.fallback(contractID, s.now(), "fetch_error")
		}
		res.Data = a
	}

	if opts.Address != "" {
		u := res.Data.ForUser(opts.Address)
		res.Data.User = &u
	}
	return res, nil
}

// Refresh runs the full pipeline for contractID, writes the cache entry and
// appends a rate snapshot. Unlike Get it reports upstream errors.
func (s *Service) Refresh(ctx context.Context, contractID string) (*energy.Analytics, error) {
	raw, err := s.fetcher.FetchLogs(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("fetch logs for %s: %w", contractID, err)
	}

	now := s.now()
	logs, dropped := energy.Validate(raw, now)
	if dropped > 0 {
		metrics.LogsDiscardedTotal.WithLabelValues(contractID).Add(float64(dropped))
		s.logger.Info("discarded invalid energy logs", "contract", contractID, "discarded", dropped, "kept", len(logs))
	}
	if len(logs) == 0 {
		return s.fallback(contractID, now, "no_logs"), nil
	}

	a := energy.Compute(logs, now)
	snaps := s.recordSnapshot(ctx, contractID, a, now)
	a.Rates.RateHistoryTimeframes = s.timeframes(ctx, contractID, a, snaps, now)

	s.store(ctx, contractID, a, now)

	metrics.EnergyRate.WithLabelValues(contractID).Set(a.Rates.OverallEnergyPerMinute)
	metrics.UniqueUsers.WithLabelValues(contractID).Set(float64(a.Stats.UniqueUsers))
	if s.publisher != nil {
		s.publisher.Publish(contractID, a)
	}
	return a, nil
}

func (s *Service) cached(ctx context.Context, contractID string) (*energy.Analytics, bool) {
	raw, err := s.cache.Get(ctx, kv.AnalyticsKey(contractID))
	if errors.Is(err, kv.ErrNotFound) {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		s.logger.Error("energy cache read failed", "contract", contractID, "error", err)
		return nil, false
	}

	entry, err := energy.DecodeCacheEntry(raw)
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("invalid").Inc()
		s.logger.Warn("discarding invalid energy cache entry", "contract", contractID, "error", err)
		return nil, false
	}
	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()

	a := entry.Data
	snaps, err := s.history.List(ctx, contractID)
	if err != nil {
		s.logger.Warn("rate history read failed, keeping cached timeframes", "contract", contractID, "error", err)
		return a, true
	}
	a.Rates.RateHistoryTimeframes = s.timeframes(ctx, contractID, a, snaps, s.now())
	return a, true
}

func (s *Service) timeframes(ctx context.Context, contractID string, a *energy.Analytics, snaps []energy.RateSnapshot, now time.Time) energy.Timeframes {
	tf := energy.BuildTimeframes(snaps, now, a.Rates.OverallEnergyPerMinute, a.Rates.OverallIntegralPerMinute, s.rng)
	if s.archiver == nil {
		return tf
	}
	archived, err := s.archiver.ListSnapshots(ctx, contractID, now.Add(-energy.MonthlyWindow.Span))
	if err != nil {
		s.logger.Warn("snapshot archive read failed", "contract", contractID, "error", err)
		return tf
	}
	return energy.ExtendTimeframes(tf, archived, now)
}

// recordSnapshot appends the current rates when they are nonzero and returns
// the stored history, oldest first.
func (s *Service) recordSnapshot(ctx context.Context, contractID string, a *energy.Analytics, now time.Time) []energy.RateSnapshot {
	if a.Rates.OverallEnergyPerMinute != 0 {
		snap := energy.SnapshotOf(a, now)
		if err := s.history.Append(ctx, contractID, snap); err != nil {
			metrics.CacheWriteErrorsTotal.WithLabelValues("history").Inc()
			s.logger.Error("rate snapshot append failed", "contract", contractID, "error", err)
		}
		if s.archiver != nil {
			if err := s.archiver.ArchiveSnapshot(ctx, contractID, snap); err != nil {
				s.logger.Error("rate snapshot archive failed", "contract", contractID, "error", err)
			}
		}
	}

	snaps, err := s.history.List(ctx, contractID)
	if err != nil {
		s.logger.Warn("rate history read failed", "contract", contractID, "error", err)
		return nil
	}
	return snaps
}

func (s *Service) store(ctx context.Context, contractID string, a *energy.Analytics, now time.Time) {
	b, err := energy.EncodeCacheEntry(a, now)
	if err != nil {
		s.logger.Error("encode energy cache entry failed", "contract", contractID, "error", err)
		return
	}
	if err := s.cache.SetEx(ctx, kv.AnalyticsKey(contractID), b, kv.AnalyticsTTL); err != nil {
		metrics.CacheWriteErrorsTotal.WithLabelValues("analytics").Inc()
		s.logger.Error("energy cache write failed", "contract", contractID, "error", err)
	}
}

func (s *Service) fallback(contractID string, now time.Time, reason string) *energy.Analytics {
	metrics.FallbacksTotal.WithLabelValues(contractID, reason).Inc()
	if s.production {
		return energy.Empty(now)
	}
	return energy.Mock(contractID, now, s.rng)
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
