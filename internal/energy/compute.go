package energy

import (
	"sort"
	"time"
)

// Compute derives stats, per-user stats and rates from validated logs.
// Rate history is left empty; callers fill it from stored snapshots.
func Compute(logs []LogEntry, now time.Time) *Analytics {
	a := Empty(now)
	if len(logs) == 0 {
		return a
	}
	a.Logs = logs

	t := Aggregate(logs)
	a.Stats.TotalEnergyHarvested = t.Energy
	a.Stats.TotalIntegralCalculated = t.Integral
	a.Stats.UniqueUsers = len(t.Users)
	a.Stats.TotalHarvests = t.Count
	a.Stats.AverageEnergyPerHarvest = t.Energy / float64(t.Count)
	a.Stats.AverageIntegralPerHarvest = t.Integral / float64(t.Count)
	a.Stats.AverageEnergyPerUser = t.Energy / float64(len(t.Users))

	for addr, u := range t.Users {
		a.UserStats[addr] = UserStats{
			Address:                 addr,
			TotalEnergyHarvested:    u.Energy,
			TotalIntegralCalculated: u.Integral,
			HarvestCount:            u.Count,
			AverageEnergyPerHarvest: u.Energy / float64(u.Count),
			LastHarvestTimestamp:    u.LastHarvest,
			EstimatedEnergyRate:     EstimateRate(u.Logs, EnergyOf),
			EstimatedIntegralRate:   EstimateRate(u.Logs, IntegralOf),
		}
	}

	a.Rates.OverallEnergyPerMinute = EstimateRate(logs, EnergyOf)
	a.Rates.OverallIntegralPerMinute = EstimateRate(logs, IntegralOf)
	a.Rates.RecentEnergyPerMinute = recentRate(logs, now)
	a.Rates.TopUserRates = leaderboard(a.UserStats, TopUsers)
	return a
}

func recentRate(logs []LogEntry, now time.Time) float64 {
	since := now.Add(-RecentWindowMinutes * time.Minute).Unix()
	var sum float64
	for _, l := range logs {
		if l.BlockTime != nil && *l.BlockTime >= since {
			sum += l.EnergyValue()
		}
	}
	return sum / RecentWindowMinutes
}

func leaderboard(users map[string]UserStats, n int) []UserRate {
	rows := make([]UserRate, 0, len(users))
	for _, u := range users {
		rows = append(rows, UserRate{
			Address:         u.Address,
			EnergyPerMinute: u.EstimatedEnergyRate,
			TotalEnergy:     u.TotalEnergyHarvested,
			HarvestCount:    u.HarvestCount,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EnergyPerMinute != rows[j].EnergyPerMinute {
			return rows[i].EnergyPerMinute > rows[j].EnergyPerMinute
		}
		return rows[i].Address < rows[j].Address
	})
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}
