package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Registry is the monitored-contract list, stored as a JSON array under
// KeyMonitoredContracts.
type Registry struct {
	store    *Store
	defaults []string
}

// NewRegistry returns a Registry that falls back to defaults while nothing is
// stored. A stored empty list means no contracts are monitored.
func NewRegistry(s *Store, defaults []string) *Registry {
	return &Registry{store: s, defaults: normalize(defaults)}
}

// List returns the monitored contracts.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	raw, err := r.store.Get(ctx, KeyMonitoredContracts)
	if errors.Is(err, ErrNotFound) {
		return r.fallback(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read monitored contracts: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode monitored contracts: %w", err)
	}
	return normalize(ids), nil
}

// Reset drops the stored list so List reports the defaults again.
func (r *Registry) Reset(ctx context.Context) ([]string, error) {
	if err := r.store.Del(ctx, KeyMonitoredContracts); err != nil {
		return nil, fmt.Errorf("reset monitored contracts: %w", err)
	}
	return r.fallback(), nil
}

// Set replaces the monitored contracts.
func (r *Registry) Set(ctx context.Context, ids []string) ([]string, error) {
	ids = normalize(ids)
	b, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	if err := r.store.Set(ctx, KeyMonitoredContracts, b); err != nil {
		return nil, fmt.Errorf("write monitored contracts: %w", err)
	}
	return ids, nil
}

// Add appends id if it is not already monitored.
func (r *Registry) Add(ctx context.Context, id string) ([]string, error) {
	ids, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return r.Set(ctx, append(ids, id))
}

// Remove drops id from the monitored contracts.
func (r *Registry) Remove(ctx context.Context, id string) ([]string, error) {
	ids, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	out := ids[:0]
	for _, c := range ids {
		if c != id {
			out = append(out, c)
		}
	}
	return r.Set(ctx, out)
}

func (r *Registry) fallback() []string {
	out := make([]string, len(r.defaults))
	copy(out, r.defaults)
	return out
}

func normalize(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
