package energy

import (
	"fmt"
	"time"
)

// Mock builds plausible analytics for local development when no real logs are
// available. It must never be served in production.
func Mock(contractID string, now time.Time, rng Source) *Analytics {
	const users = 5
	var logs []LogEntry
	for u := 0; u < users; u++ {
		sender := fmt.Sprintf("SP%04dMOCK%s", u+1, shortID(contractID))
		for h := 0; h < 3; h++ {
			bt := now.Add(-time.Duration(u*3+h) * 2 * time.Hour).Unix()
			energy := 1000 + 4000*rng.Float64()
			logs = append(logs, LogEntry{
				Sender:       sender,
				Energy:       &energy,
				Integral:     energy * (50 + 50*rng.Float64()),
				BlockTime:    &bt,
				BlockTimeISO: time.Unix(bt, 0).UTC().Format(time.RFC3339),
				TxID:         fmt.Sprintf("0xmock%02d%02d", u, h),
			})
		}
	}
	a := Compute(logs, now)
	a.Rates.RateHistoryTimeframes = BuildTimeframes(nil, now,
		a.Rates.OverallEnergyPerMinute, a.Rates.OverallIntegralPerMinute, rng)
	return a
}

func shortID(id string) string {
	if len(id) > 6 {
		return id[len(id)-6:]
	}
	return id
}
