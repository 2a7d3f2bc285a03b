package energy

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// CacheVersion is the schema version written by EncodeCacheEntry.
const CacheVersion = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported cache schema version")
	ErrInvalidEntry       = errors.New("invalid cache entry")
)

// CacheEntry is the stored form of an Analytics object.
type CacheEntry struct {
	Version  int        `json:"version"`
	StoredAt int64      `json:"storedAt"`
	Data     *Analytics `json:"data"`
}

// EncodeCacheEntry wraps a in a versioned envelope.
func EncodeCacheEntry(a *Analytics, now time.Time) ([]byte, error) {
	return json.Marshal(CacheEntry{Version: CacheVersion, StoredAt: now.UnixMilli(), Data: a})
}

// DecodeCacheEntry parses and validates a stored envelope. Entries written by
// another schema version or with unusable numbers are rejected.
func DecodeCacheEntry(raw []byte) (*CacheEntry, error) {
	var e CacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if e.Version != CacheVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, e.Version)
	}
	if e.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrInvalidEntry)
	}
	s, r := e.Data.Stats, e.Data.Rates
	for name, v := range map[string]float64{
		"totalEnergyHarvested":     s.TotalEnergyHarvested,
		"totalIntegralCalculated":  s.TotalIntegralCalculated,
		"overallEnergyPerMinute":   r.OverallEnergyPerMinute,
		"overallIntegralPerMinute": r.OverallIntegralPerMinute,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s is not finite", ErrInvalidEntry, name)
		}
	}
	if s.UniqueUsers < 0 || s.TotalHarvests < 0 {
		return nil, fmt.Errorf("%w: negative counts", ErrInvalidEntry)
	}
	if e.Data.Logs == nil {
		e.Data.Logs = []LogEntry{}
	}
	if e.Data.UserStats == nil {
		e.Data.UserStats = map[string]UserStats{}
	}
	if e.Data.Rates.TopUserRates == nil {
		e.Data.Rates.TopUserRates = []UserRate{}
	}
	return &e, nil
}

// DecodeSnapshot parses one stored history member.
func DecodeSnapshot(raw []byte) (RateSnapshot, error) {
	var s RateSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if s.Timestamp <= 0 || math.IsNaN(s.EnergyRate) || math.IsInf(s.EnergyRate, 0) {
		return s, fmt.Errorf("%w: bad snapshot", ErrInvalidEntry)
	}
	return s, nil
}
