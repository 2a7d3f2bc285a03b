package store

import "context"

const migrationSQL = `
CREATE TABLE IF NOT EXISTS energy_runs (
    id BIGSERIAL PRIMARY KEY,
    started_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    contracts INT NOT NULL DEFAULT 0,
    failures INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS energy_run_results (
    id BIGSERIAL PRIMARY KEY,
    run_id BIGINT NOT NULL REFERENCES energy_runs(id) ON DELETE CASCADE,
    contract_id TEXT NOT NULL,
    success BOOLEAN NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    energy_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    unique_users INT NOT NULL DEFAULT 0,
    duration_ms BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS energy_run_results_run_id_idx ON energy_run_results(run_id);

CREATE TABLE IF NOT EXISTS energy_rate_snapshots (
    id BIGSERIAL PRIMARY KEY,
    contract_id TEXT NOT NULL,
    taken_at TIMESTAMPTZ NOT NULL,
    energy_rate DOUBLE PRECISION NOT NULL,
    integral_rate DOUBLE PRECISION NOT NULL,
    total_energy DOUBLE PRECISION NOT NULL,
    unique_users INT NOT NULL
);

CREATE INDEX IF NOT EXISTS energy_rate_snapshots_contract_taken_idx
    ON energy_rate_snapshots(contract_id, taken_at);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migrationSQL)
	return err
}
