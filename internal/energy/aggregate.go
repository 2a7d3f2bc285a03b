package energy

// Totals is the result of a pure reduction over validated logs.
type Totals struct {
	Energy   float64
	Integral float64
	Count    int
	Users    map[string]*UserTotals
}

// UserTotals accumulates one sender's entries.
type UserTotals struct {
	Energy        float64
	Integral      float64
	Count         int
	LastHarvest   int64
	Logs          []LogEntry
	lastHarvestAt int
}

// Aggregate sums energy and integral globally and per sender. A sender's last
// harvest is its entry with the greatest block_time; equal times resolve to the
// entry that appears later in logs.
func Aggregate(logs []LogEntry) Totals {
	t := Totals{Users: make(map[string]*UserTotals)}
	for i, l := range logs {
		e := l.EnergyValue()
		t.Energy += e
		t.Integral += l.Integral
		t.Count++

		u, ok := t.Users[l.Sender]
		if !ok {
			u = &UserTotals{lastHarvestAt: -1}
			t.Users[l.Sender] = u
		}
		u.Energy += e
		u.Integral += l.Integral
		u.Count++
		u.Logs = append(u.Logs, l)
		if u.lastHarvestAt < 0 || l.Time() >= u.LastHarvest {
			u.LastHarvest = l.Time()
			u.lastHarvestAt = i
		}
	}
	return t
}
