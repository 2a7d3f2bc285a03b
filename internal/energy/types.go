package energy

import "time"

const (
	// FallbackWindowMinutes is the assumed accumulation window for log sets
	// whose time span cannot be measured.
	FallbackWindowMinutes = 1440

	// RecentWindowMinutes is the divisor for the last-hour rate.
	RecentWindowMinutes = 60

	// MaxFutureSkew is how far past wall-clock a block_time may be before the
	// entry is considered implausible.
	MaxFutureSkew = 24 * time.Hour

	// TopUsers is the size of the rate leaderboard.
	TopUsers = 10
)

// LogEntry is one on-chain hold-to-earn event.
type LogEntry struct {
	Sender       string   `json:"sender"`
	Energy       *float64 `json:"energy"`
	Integral     float64  `json:"integral"`
	BlockTime    *int64   `json:"block_time,omitempty"`
	BlockTimeISO string   `json:"block_time_iso,omitempty"`
	BlockHeight  *int64   `json:"block_height,omitempty"`
	TxID         string   `json:"tx_id"`
}

// EnergyValue returns the energy amount, treating a missing value as zero.
func (e LogEntry) EnergyValue() float64 {
	if e.Energy == nil {
		return 0
	}
	return *e.Energy
}

// Time returns the block time, or 0 when the entry carries none.
func (e LogEntry) Time() int64 {
	if e.BlockTime == nil {
		return 0
	}
	return *e.BlockTime
}

// Stats holds contract-wide totals.
type Stats struct {
	TotalEnergyHarvested      float64 `json:"totalEnergyHarvested"`
	TotalIntegralCalculated   float64 `json:"totalIntegralCalculated"`
	UniqueUsers               int     `json:"uniqueUsers"`
	TotalHarvests             int     `json:"totalHarvests"`
	AverageEnergyPerHarvest   float64 `json:"averageEnergyPerHarvest"`
	AverageIntegralPerHarvest float64 `json:"averageIntegralPerHarvest"`
	AverageEnergyPerUser      float64 `json:"averageEnergyPerUser"`
	LastUpdated               int64   `json:"lastUpdated"`
}

// UserStats holds per-sender totals and estimated rates.
type UserStats struct {
	Address                 string  `json:"address"`
	TotalEnergyHarvested    float64 `json:"totalEnergyHarvested"`
	TotalIntegralCalculated float64 `json:"totalIntegralCalculated"`
	HarvestCount            int     `json:"harvestCount"`
	AverageEnergyPerHarvest float64 `json:"averageEnergyPerHarvest"`
	LastHarvestTimestamp    int64   `json:"lastHarvestTimestamp"`
	EstimatedEnergyRate     float64 `json:"estimatedEnergyRate"`
	EstimatedIntegralRate   float64 `json:"estimatedIntegralRate"`
}

// UserRate is one leaderboard row.
type UserRate struct {
	Address         string  `json:"address"`
	EnergyPerMinute float64 `json:"energyPerMinute"`
	TotalEnergy     float64 `json:"totalEnergy"`
	HarvestCount    int     `json:"harvestCount"`
}

// HistoryPoint is one point of a rate trend chart.
type HistoryPoint struct {
	Timestamp    int64   `json:"timestamp"`
	EnergyRate   float64 `json:"energyRate"`
	IntegralRate float64 `json:"integralRate"`
	Synthetic    bool    `json:"synthetic,omitempty"`
}

// Timeframes groups history points by chart window.
type Timeframes struct {
	Daily   []HistoryPoint `json:"daily"`
	Weekly  []HistoryPoint `json:"weekly"`
	Monthly []HistoryPoint `json:"monthly"`
}

// Rates holds contract-wide rate estimates.
type Rates struct {
	OverallEnergyPerMinute   float64    `json:"overallEnergyPerMinute"`
	OverallIntegralPerMinute float64    `json:"overallIntegralPerMinute"`
	RecentEnergyPerMinute    float64    `json:"recentEnergyPerMinute"`
	TopUserRates             []UserRate `json:"topUserRates"`
	RateHistoryTimeframes    Timeframes `json:"rateHistoryTimeframes"`
}

// Analytics is the cacheable aggregate served for one contract.
type Analytics struct {
	Logs      []LogEntry           `json:"logs"`
	Stats     Stats                `json:"stats"`
	Rates     Rates                `json:"rates"`
	UserStats map[string]UserStats `json:"userStats"`
	User      *UserStats           `json:"user,omitempty"`
}

// RateSnapshot is one entry of a contract's rolling rate history.
type RateSnapshot struct {
	Timestamp            int64   `json:"timestamp"`
	EnergyRate           float64 `json:"energyRate"`
	IntegralRate         float64 `json:"integralRate"`
	TotalEnergyHarvested float64 `json:"totalEnergyHarvested"`
	UniqueUsers          int     `json:"uniqueUsers"`
}

// SnapshotOf captures the current global rates of a.
func SnapshotOf(a *Analytics, now time.Time) RateSnapshot {
	return RateSnapshot{
		Timestamp:            now.UnixMilli(),
		EnergyRate:           a.Rates.OverallEnergyPerMinute,
		IntegralRate:         a.Rates.OverallIntegralPerMinute,
		TotalEnergyHarvested: a.Stats.TotalEnergyHarvested,
		UniqueUsers:          a.Stats.UniqueUsers,
	}
}

// Empty returns an all-zero analytics object with non-nil collections.
func Empty(now time.Time) *Analytics {
	return &Analytics{
		Logs:      []LogEntry{},
		Stats:     Stats{LastUpdated: now.UnixMilli()},
		UserStats: map[string]UserStats{},
		Rates: Rates{
			TopUserRates:          []UserRate{},
			RateHistoryTimeframes: EmptyTimeframes(),
		},
	}
}

// EmptyTimeframes returns timeframes with empty, non-nil arrays.
func EmptyTimeframes() Timeframes {
	return Timeframes{
		Daily:   []HistoryPoint{},
		Weekly:  []HistoryPoint{},
		Monthly: []HistoryPoint{},
	}
}

// ForUser returns the stats for address, or zero stats when it never harvested.
func (a *Analytics) ForUser(address string) UserStats {
	if us, ok := a.UserStats[address]; ok {
		return us
	}
	return UserStats{Address: address}
}
