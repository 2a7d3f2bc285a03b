package energy

import (
	"math"
	"sort"
)

// EstimateRate returns a per-minute rate for the quantity picked by value.
//
// Entries are ordered by block_time, missing times first. With at least two
// entries whose first and last both carry a block_time, the elapsed time is
// the span between them, clamped to one second. Otherwise a nonzero total is
// spread over FallbackWindowMinutes. This is a display heuristic.
func EstimateRate(logs []LogEntry, value func(LogEntry) float64) float64 {
	var total float64
	for _, l := range logs {
		total += value(l)
	}
	if total == 0 {
		return 0
	}

	if len(logs) >= 2 {
		sorted := make([]LogEntry, len(logs))
		copy(sorted, logs)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time() < sorted[j].Time() })

		first, last := sorted[0], sorted[len(sorted)-1]
		if first.BlockTime != nil && last.BlockTime != nil {
			seconds := math.Max(1, float64(*last.BlockTime-*first.BlockTime))
			return total / (seconds / 60)
		}
	}
	return total / FallbackWindowMinutes
}

// EnergyOf picks the energy amount of an entry.
func EnergyOf(l LogEntry) float64 { return l.EnergyValue() }

// IntegralOf picks the integral amount of an entry.
func IntegralOf(l LogEntry) float64 { return l.Integral }
