package kv

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/web3-frozen/energy-monitor/internal/energy"
)

// HistoryStore keeps each contract's rolling rate snapshots.
type HistoryStore struct {
	store  *Store
	logger *slog.Logger
}

func NewHistoryStore(s *Store, logger *slog.Logger) *HistoryStore {
	return &HistoryStore{store: s, logger: logger}
}

// Append records snap and evicts the oldest entries beyond energy.MaxSnapshots.
func (h *HistoryStore) Append(ctx context.Context, contractID string, snap energy.RateSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return h.store.PushCapped(ctx, HistoryKey(contractID), b, energy.MaxSnapshots, HistoryTTL)
}

// List returns the stored snapshots, oldest first. Members that fail to
// decode are skipped.
func (h *HistoryStore) List(ctx context.Context, contractID string) ([]energy.RateSnapshot, error) {
	raw, err := h.store.Range(ctx, HistoryKey(contractID))
	if err != nil {
		return nil, err
	}
	out := make([]energy.RateSnapshot, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		s, err := energy.DecodeSnapshot(raw[i])
		if err != nil {
			h.logger.Warn("skipping malformed rate snapshot", "contract", contractID, "error", err)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
