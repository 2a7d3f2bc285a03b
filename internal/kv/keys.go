package kv

import "time"

const (
	AnalyticsTTL = 5 * time.Minute
	HistoryTTL   = 30 * 24 * time.Hour

	KeyCronLastRun        = "energy:cron:last_run"
	KeyMonitoredContracts = "energy:monitored_contracts"
	analyticsKeyPrefix    = "energy:analytics:"
	historyKeyPrefix      = "energy:history:"
)

// AnalyticsKey is where the cached analytics for a contract live.
func AnalyticsKey(contractID string) string { return analyticsKeyPrefix + contractID }

// HistoryKey is where the rolling rate snapshots for a contract live.
func HistoryKey(contractID string) string { return historyKeyPrefix + contractID }
