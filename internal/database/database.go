package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the job and audit tables if needed. Having the
// migration in code keeps the service self-contained so docker-compose can
// bootstrap everything.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS contract_analyses (
	job_id TEXT PRIMARY KEY,
	file_name TEXT NOT NULL,
	file_type TEXT NOT NULL,
	file_size_bytes BIGINT NOT NULL,
	object_key TEXT NOT NULL,
	extracted_text TEXT,
	status TEXT NOT NULL,
	summary JSONB,
	risk_clauses JSONB,
	error_message TEXT,
	ip_address TEXT,
	user_email TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_contract_analyses_status ON contract_analyses(status);
CREATE INDEX IF NOT EXISTS idx_contract_analyses_created_at ON contract_analyses(created_at);
CREATE TABLE IF NOT EXISTS generated_contracts (
	job_id TEXT PRIMARY KEY,
	template_type TEXT NOT NULL,
	input_data JSONB NOT NULL,
	generated_text TEXT,
	status TEXT NOT NULL,
	error_message TEXT,
	ip_address TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_generated_contracts_status ON generated_contracts(status);
CREATE INDEX IF NOT EXISTS idx_generated_contracts_created_at ON generated_contracts(created_at);
CREATE TABLE IF NOT EXISTS usage_events (
	id BIGSERIAL PRIMARY KEY,
	event_type TEXT NOT NULL,
	job_id TEXT,
	ip_address TEXT,
	user_email TEXT,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_events_job_id ON usage_events(job_id);`
	_, err := pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
