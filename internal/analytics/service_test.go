package analytics

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/web3-frozen/energy-monitor/internal/energy"
	"github.com/web3-frozen/energy-monitor/internal/kv"
)

type fakeFetcher struct {
	mu    sync.Mutex
	logs  map[string][]energy.LogEntry
	err   map[string]error
	calls int
}

func (f *fakeFetcher) FetchLogs(_ context.Context, contractID string) ([]energy.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.err[contractID]; err != nil {
		return nil, err
	}
	return f.logs[contractID], nil
}

type fakePublisher struct {
	published []string
}

func (p *fakePublisher) Publish(contractID string, _ *energy.Analytics) {
	p.published = append(p.published, contractID)
}

type fakeArchiver struct {
	mu       sync.Mutex
	archived map[string][]energy.RateSnapshot
	since    time.Time
}

func (a *fakeArchiver) ArchiveSnapshot(_ context.Context, contractID string, snap energy.RateSnapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.archived == nil {
		a.archived = map[string][]energy.RateSnapshot{}
	}
	a.archived[contractID] = append(a.archived[contractID], snap)
	return nil
}

func (a *fakeArchiver) ListSnapshots(_ context.Context, contractID string, since time.Time) ([]energy.RateSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.since = since
	var out []energy.RateSnapshot
	for _, s := range a.archived[contractID] {
		if s.Timestamp > since.UnixMilli() {
			out = append(out, s)
		}
	}
	return out, nil
}

func fp(v float64) *float64 { return &v }
func ip(v int64) *int64 { return &v }

var testNow = time.Unix(1_700_000_000, 0)

func twoLogs() []energy.LogEntry {
	return []energy.LogEntry{
		{Sender: "SP1", Energy: fp(100), Integral: 5, BlockTime: ip(0)},
		{Sender: "SP1", Energy: fp(200), Integral: 5, BlockTime: ip(600)},
	}
}

func setup(t *testing.T, f *fakeFetcher, production bool, opts ...Option) (*Service, *kv.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	store, err := kv.New("redis://"+mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		mr.Close()
	})

	opts = append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithRand(rand.New(rand.NewSource(1))),
	}, opts...)
	svc := NewService(f, store, kv.NewHistoryStore(store, slog.Default()), production, slog.Default(), opts...)
	return svc, store, mr
}

func TestGetMissThenHit(t *testing.T) {
	f := &fakeFetcher{logs: map[string][]energy.LogEntry{"c1": twoLogs()}}
	pub := &fakePublisher{}
	svc, _, mr := setup(t, f, true, WithPublisher(pub))
	ctx := context.Background()

	first, err := svc.Get(ctx, "c1", Options{})
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, 300.0, first.Data.Stats.TotalEnergyHarvested)
	assert.InDelta(t, 30, first.Data.Rates.OverallEnergyPerMinute, 1e-9)
	assert.Equal(t, []string{"c1"}, pub.published)

	second, err := svc.Get(ctx, "c1", Options{})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, first.Data.Stats, second.Data.Stats)
	assert.Equal(t, first.Data.Rates.OverallEnergyPerMinute, second.Data.Rates.OverallEnergyPerMinute)
	assert.Equal(t, first.Data.Rates.TopUserRates, second.Data.Rates.TopUserRates)

	assert.Equal(t, kv.AnalyticsTTL, mr.TTL(kv.AnalyticsKey("c1")))
}

func TestGetIdempotentWithoutRefresh(t *testing.T) {
	f := &fakeFetcher{logs: map[string][]energy.LogEntry{"c1": twoLogs()}}
	svc, _, _ := setup(t, f, true)
	ctx := context.Background()

	_, err := svc.Get(ctx, "c1", Options{})
	require.NoError(t, err)

	a, err := svc.Get(ctx, "c1", Options{})
	require.NoError(t, err)
	b, err := svc.Get(ctx, "c1", Options{})
	require.NoError(t, err)

	assert.Equal(t, a.Data.Stats, b.Data.Stats)
	ra, rb := a.Data.Rates, b.Data.Rates
	ra.RateHistoryTimeframes, rb.RateHistoryTimeframes = energy.Timeframes{}, energy.Timeframes{}
	assert.Equal(t, ra, rb)
}

func TestGetRefreshBypassesCache(t *testing.T) {
	f := &fakeFetcher{logs: map[string][]energy.LogEntry{"c1": twoLogs()}}
	svc, _, _ := setup(t, f, true)
	ctx := context.Background()

	_, err := svc.Get(ctx, "c1", Options{})
	require.NoError(t, err)
	res, err := svc.Get(ctx, "c1", Options{Refresh: true})
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, 2, f.calls)
}

func TestGetRecomputesAfterExpiry(t *testing.T) {
	f := &fakeFetcher{logs: map[string][]energy.LogEntry{"c1": twoLogs()}}
	svc, _, mr := setup(t, f, true)
	ctx := context.Background()

	_, err := svc.Get(ctx, "c1", Options{})
	require.NoError(t, err)
	mr.FastForward(kv.AnalyticsTTL + time.Second)

	res, err := svc.Get(ctx, "c1", Options{})
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, 2, f.calls)
}

func TestGetAppendsSnapshots(t *testing.T) {
	f := &fakeFetcher{logs: map[string][]energy.LogEntry{"c1": twoLogs()}}
	svc, store, _ := setup(t, f, true)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Get(ctx, "c1", Options{Refresh: true})
		require.NoError(t, err)
	}
	snaps, err := kv.NewHistoryStore(store, slog.Default()).List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.InDelta(t, 30, snaps[0].EnergyRate, 1e-9)
	assert.Equal(t, 1, snaps[0].UniqueUsers)

	res, err := svc.Get(ctx, "c1", Options{})
	require.NoError(t, err)
	assert.Len(t, res.Data.Rates.RateHistoryTimeframes.Daily, 3)
	assert.False(t, res.Data.Rates.RateHistoryTimeframes.Daily[0].Synthetic)
}

func TestGetUsesArchiveForLongWindows(t *testing.T) {
	f := &fakeFetcher{logs: map[string][]energy.LogEntry{"c1": twoLogs()}}
	arch := &fakeArchiver{archived: map[string][]energy.RateSnapshot{"c1": {
		{Timestamp: testNow.Add(-20 * 24 * time.Hour).UnixMilli(), EnergyRate: 10},
		{Timestamp: testNow.Add(-10 * 24 * time.Hour).UnixMilli(), EnergyRate: 20},
		{Timestamp: testNow.Add(-3 * 24 * time.Hour).UnixMilli(), EnergyRate: 25},
	}}}
	svc, _, _ := setup(t, f, true, WithArchiver(arch))
	ctx := context.Background()

	res, err := svc.Get(ctx, "c1", Options{})
	require.NoError(t, err)
	tf := res.Data.Rates.RateHistoryTimeframes

	assert.Equal(t, testNow.Add(-30*24*time.Hour), arch.since)
	// Three seeded snapshots plus the one archived by this refresh.
	require.Len(t, tf.Monthly, 4)
	assert.InDelta(t, 10, tf.Monthly[0].EnergyRate, 1e-9)
	require.Len(t, tf.Weekly, 2)
	assert.InDelta(t, 25, tf.Weekly[0].EnergyRate, 1e-9)
	assert.InDelta(t, 30, tf.Weekly[1].EnergyRate, 1e-9)
	for _, p := range tf.Monthly {
		assert.False(t, p.Synthetic)
	}

	// Served from cache, the long windows still come from the archive.
	res, err = svc.Get(ctx, "c1", Options{})
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Len(t, res.Data.Rates.RateHistoryTimeframes.Monthly, 4)
}

func TestGetZeroRateSkipsSnapshot(t *testing.T) {
	f := &fakeFetcher{logs: map[string][]energy.LogEntry{"c1": {
		{Sender: "SP1", Energy: fp(0), BlockTime: ip(1)},
	}}}
	svc, store, _ := setup(t, f, true)
	ctx := context.Background()

	res, err := svc.Get(ctx, "c1", Options{})
	require.NoError(t, err)
	assert.Zero(t, res.Data.Rates.OverallEnergyPerMinute)

	snaps, err := kv.NewHistoryStore(store, slog.Default()).List(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestGetNoLogsProduction(t *testing.T) {
	f := &fakeFetcher{}
	svc, store, _ := setup(t, f, true)
	ctx := context.Background()

	res, err := svc.Get(ctx, "c1", Options{})
	require.NoError(t, err)
	d := res.Data
	assert.Equal(t, energy.Stats{LastUpdated: testNow.UnixMilli()}, d.Stats)
	assert.Zero(t, d.Rates.OverallEnergyPerMinute)
	assert.Zero(t, d.Rates.OverallIntegralPerMinute)
	assert.Equal(t, energy.EmptyTimeframes(), d.Rates.RateHistoryTimeframes)

	_, err = store.Get(ctx, kv.AnalyticsKey("c1"))
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestGetFetchErrorFallback(t *testing.T) {
	boom := errors.New("indexer down")

	t.Run("production serves zeros", func(t *testing.T) {
		f := &fakeFetcher{err: map[string]error{"c1": boom}}
		svc, _, _ := setup(t, f, true)
		res, err := svc.Get(context.Background(), "c1", Options{})
		require.NoError(t, err)
		assert.Zero(t, res.Data.Stats.TotalEnergyHarvested)
		assert.Empty(t, res.Data.Logs)
	})

	t.Run("development serves mock data", func(t *testing.T) {
		f := &fakeFetcher{err: map[string]error{"c1": boom}}
		svc, _, _ := setup(t, f, false)
		res, err := svc.Get(context.Background(), "c1", Options{})
		require.NoError(t, err)
		assert.Greater(t, res.Data.Stats.TotalEnergyHarvested, 0.0)
	})
}

func TestRefreshReportsFetchError(t *testing.T) {
	f := &fakeFetcher{err: map[string]error{"c1": errors.New("indexer down")}}
	svc, _, _ := setup(t, f, true)
	_, err := svc.Refresh(context.Background(), "c1")
	assert.Error(t, err)
}

func TestGetInvalidCacheEntryRecomputes(t *testing.T) {
	f := &fakeFetcher{logs: map[string][]energy.LogEntry{"c1": twoLogs()}}
	svc, _, mr := setup(t, f, true)
	require.NoError(t, mr.Set(kv.AnalyticsKey("c1"), `{"version":99,"data":{}}`))

	res, err := svc.Get(context.Background(), "c1", Options{})
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, 1, f.calls)
}

func TestGetAddress(t *testing.T) {
	f := &fakeFetcher{logs: map[string][]energy.LogEntry{"c1": twoLogs()}}
	svc, _, _ := setup(t, f, true)
	ctx := context.Background()

	res, err := svc.Get(ctx, "c1", Options{Address: "SP1"})
	require.NoError(t, err)
	require.NotNil(t, res.Data.User)
	assert.Equal(t, 2, res.Data.User.HarvestCount)

	res, err = svc.Get(ctx, "c1", Options{Address: "SPUNKNOWN"})
	require.NoError(t, err)
	require.NotNil(t, res.Data.User)
	assert.Equal(t, "SPUNKNOWN", res.Data.User.Address)
	assert.Zero(t, res.Data.User.HarvestCount)
}

func TestGetSurvivesCacheOutage(t *testing.T) {
	f := &fakeFetcher{logs: map[string][]energy.LogEntry{"c1": twoLogs()}}
	svc, _, mr := setup(t, f, true)
	mr.Close()

	res, err := svc.Get(context.Background(), "c1", Options{})
	require.NoError(t, err)
	assert.Equal(t, 300.0, res.Data.Stats.TotalEnergyHarvested)
}
