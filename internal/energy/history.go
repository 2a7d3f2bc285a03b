package energy

import "time"

// MaxSnapshots caps a contract's stored rate history.
const MaxSnapshots = 100

// Window is a rate-history chart window.
type Window struct {
	Span   time.Duration
	Step   time.Duration
	Points int
}

var (
	DailyWindow   = Window{Span: 24 * time.Hour, Step: time.Hour, Points: 24}
	WeeklyWindow  = Window{Span: 7 * 24 * time.Hour, Step: 24 * time.Hour, Points: 7}
	MonthlyWindow = Window{Span: 30 * 24 * time.Hour, Step: 24 * time.Hour, Points: 30}
)

// Source yields values in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// BuildTimeframes turns stored snapshots (oldest first) into chart buckets.
//
// With fewer than two snapshots there is no measured trend. If the current
// energy rate is nonzero the buckets are filled with placeholder points
// jittered ±10% around the current rates and flagged Synthetic; otherwise
// they stay empty.
func BuildTimeframes(snaps []RateSnapshot, now time.Time, energyRate, integralRate float64, rng Source) Timeframes {
	if len(snaps) < 2 {
		if energyRate == 0 || rng == nil {
			return EmptyTimeframes()
		}
		return Timeframes{
			Daily:   synthetic(DailyWindow, now, energyRate, integralRate, rng),
			Weekly:  synthetic(WeeklyWindow, now, energyRate, integralRate, rng),
			Monthly: synthetic(MonthlyWindow, now, energyRate, integralRate, rng),
		}
	}
	return Timeframes{
		Daily:   measured(DailyWindow, snaps, now),
		Weekly:  measured(WeeklyWindow, snaps, now),
		Monthly: measured(MonthlyWindow, snaps, now),
	}
}

func measured(w Window, snaps []RateSnapshot, now time.Time) []HistoryPoint {
	since := now.Add(-w.Span).UnixMilli()
	out := []HistoryPoint{}
	for _, s := range snaps {
		if s.Timestamp < since {
			continue
		}
		out = append(out, HistoryPoint{
			Timestamp:    s.Timestamp,
			EnergyRate:   s.EnergyRate,
			IntegralRate: s.IntegralRate,
		})
	}
	return out
}

func synthetic(w Window, now time.Time, energyRate, integralRate float64, rng Source) []HistoryPoint {
	out := make([]HistoryPoint, 0, w.Points)
	for i := 0; i < w.Points; i++ {
		ts := now.Add(-time.Duration(w.Points-1-i) * w.Step)
		out = append(out, HistoryPoint{
			Timestamp:    ts.UnixMilli(),
			EnergyRate:   energyRate * jitter(rng),
			IntegralRate: integralRate * jitter(rng),
			Synthetic:    true,
		})
	}
	return out
}

func jitter(rng Source) float64 {
	return 0.9 + 0.2*rng.Float64()
}

// ExtendTimeframes rebuilds the weekly and monthly buckets from archived
// snapshots (oldest first), averaged per window step. The rolling history
// holds at most MaxSnapshots entries, so the archive is the only source that
// can span these windows. With fewer than two archived snapshots tf is
// returned unchanged.
func ExtendTimeframes(tf Timeframes, archived []RateSnapshot, now time.Time) Timeframes {
	if len(archived) < 2 {
		return tf
	}
	tf.Weekly = bucketed(WeeklyWindow, archived, now)
	tf.Monthly = bucketed(MonthlyWindow, archived, now)
	return tf
}

// bucketed averages snapshots into w.Step wide buckets ending at now. Each
// point carries the timestamp of the newest snapshot in its bucket; empty
// buckets are skipped.
func bucketed(w Window, snaps []RateSnapshot, now time.Time) []HistoryPoint {
	since := now.Add(-w.Span).UnixMilli()
	step := w.Step.Milliseconds()

	type acc struct {
		last           int64
		energy, integr float64
		n              int
	}
	buckets := make([]acc, w.Points)
	for _, s := range snaps {
		if s.Timestamp < since || s.Timestamp > now.UnixMilli() {
			continue
		}
		i := int((s.Timestamp - since) / step)
		if i >= w.Points {
			i = w.Points - 1
		}
		b := &buckets[i]
		b.energy += s.EnergyRate
		b.integr += s.IntegralRate
		b.n++
		if s.Timestamp > b.last {
			b.last = s.Timestamp
		}
	}

	out := []HistoryPoint{}
	for _, b := range buckets {
		if b.n == 0 {
			continue
		}
		out = append(out, HistoryPoint{
			Timestamp:    b.last,
			EnergyRate:   b.energy / float64(b.n),
			IntegralRate: b.integr / float64(b.n),
		})
	}
	return out
}
