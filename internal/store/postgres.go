package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/web3-frozen/energy-monitor/internal/energy"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// --- Runs ---

// Run is one completed batch over the monitored contracts.
type Run struct {
	ID         int64       `json:"id"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Contracts  int         `json:"contracts"`
	Failures   int         `json:"failures"`
	Results    []RunResult `json:"results"`
}

// RunResult is the outcome for a single contract within a Run.
type RunResult struct {
	ContractID  string  `json:"contract_id"`
	Success     bool    `json:"success"`
	Error       string  `json:"error,omitempty"`
	EnergyRate  float64 `json:"energy_rate"`
	UniqueUsers int     `json:"unique_users"`
	DurationMs  int64   `json:"duration_ms"`
}

// RecordRun stores a run and its per-contract results in one transaction and
// returns the new run id.
func (s *Store) RecordRun(ctx context.Context, run Run) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO energy_runs (started_at, finished_at, contracts, failures)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		run.StartedAt, run.FinishedAt, run.Contracts, run.Failures).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	for _, r := range run.Results {
		_, err := tx.Exec(ctx, `
			INSERT INTO energy_run_results (run_id, contract_id, success, error, energy_rate, unique_users, duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, r.ContractID, r.Success, r.Error, r.EnergyRate, r.UniqueUsers, r.DurationMs)
		if err != nil {
			return 0, fmt.Errorf("insert run result: %w", err)
		}
	}
	return id, tx.Commit(ctx)
}

// ListRuns returns the most recent runs, newest first, with their results.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, started_at, finished_at, contracts, failures
		FROM energy_runs ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	index := make(map[int64]int)
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Contracts, &r.Failures); err != nil {
			return nil, err
		}
		r.Results = []RunResult{}
		index[r.ID] = len(runs)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return runs, nil
	}

	ids := make([]int64, 0, len(runs))
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	resRows, err := s.pool.Query(ctx, `
		SELECT run_id, contract_id, success, error, energy_rate, unique_users, duration_ms
		FROM energy_run_results WHERE run_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer resRows.Close()

	for resRows.Next() {
		var runID int64
		var r RunResult
		if err := resRows.Scan(&runID, &r.ContractID, &r.Success, &r.Error, &r.EnergyRate, &r.UniqueUsers, &r.DurationMs); err != nil {
			return nil, err
		}
		if i, ok := index[runID]; ok {
			runs[i].Results = append(runs[i].Results, r)
		}
	}
	return runs, resRows.Err()
}

// --- Snapshot archive ---

// ArchiveSnapshot keeps a permanent copy of a rate snapshot.
func (s *Store) ArchiveSnapshot(ctx context.Context, contractID string, snap energy.RateSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO energy_rate_snapshots (contract_id, taken_at, energy_rate, integral_rate, total_energy, unique_users)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		contractID, time.UnixMilli(snap.Timestamp), snap.EnergyRate, snap.IntegralRate,
		snap.TotalEnergyHarvested, snap.UniqueUsers)
	return err
}

// ListSnapshots returns archived snapshots for a contract taken after since,
// oldest first.
func (s *Store) ListSnapshots(ctx context.Context, contractID string, since time.Time) ([]energy.RateSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT taken_at, energy_rate, integral_rate, total_energy, unique_users
		FROM energy_rate_snapshots
		WHERE contract_id = $1 AND taken_at > $2
		ORDER BY taken_at`, contractID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []energy.RateSnapshot
	for rows.Next() {
		var taken time.Time
		var snap energy.RateSnapshot
		if err := rows.Scan(&taken, &snap.EnergyRate, &snap.IntegralRate, &snap.TotalEnergyHarvested, &snap.UniqueUsers); err != nil {
			return nil, err
		}
		snap.Timestamp = taken.UnixMilli()
		out = append(out, snap)
	}
	return out, rows.Err()
}

// CleanupSnapshots deletes archived snapshots older than maxAge.
func (s *Store) CleanupSnapshots(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM energy_rate_snapshots WHERE taken_at < $1`, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
