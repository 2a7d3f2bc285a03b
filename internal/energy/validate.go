package energy

import "time"

// Validate drops entries without a sender, without an energy amount, or with a
// block_time more than MaxFutureSkew ahead of now. It returns the kept entries
// and how many were discarded.
func Validate(logs []LogEntry, now time.Time) ([]LogEntry, int) {
	limit := now.Add(MaxFutureSkew).Unix()
	kept := make([]LogEntry, 0, len(logs))
	for _, l := range logs {
		if l.Sender == "" || l.Energy == nil {
			continue
		}
		if l.BlockTime != nil && *l.BlockTime > limit {
			continue
		}
		kept = append(kept, l)
	}
	return kept, len(logs) - len(kept)
}
