package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables owned by this service. The corpus tables
// are populated by the ingestion pipeline and only read here, so their DDL
// lives with that pipeline.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/evaluator startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS response_cache (
	cache_key TEXT PRIMARY KEY,
	answer TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	article_count INTEGER NOT NULL DEFAULT 0,
	hierarchy_count INTEGER NOT NULL DEFAULT 0,
	section_count INTEGER NOT NULL DEFAULT 0,
	embedding_model TEXT,
	hit_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS query_history (
	id BIGSERIAL PRIMARY KEY,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	strategy TEXT NOT NULL DEFAULT '',
	model_id TEXT NOT NULL DEFAULT '',
	latency_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS test_cases (
	id TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	expected_keywords JSONB NOT NULL DEFAULT '[]'::jsonb,
	reference_answer TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	difficulty TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS validation_runs (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL DEFAULT '',
	model_id TEXT NOT NULL,
	status TEXT NOT NULL,
	total_tests INTEGER NOT NULL DEFAULT 0,
	passed_tests INTEGER NOT NULL DEFAULT 0,
	overall_accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
	mean_latency_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS validation_results (
	run_id TEXT NOT NULL REFERENCES validation_runs(id),
	test_case_id TEXT NOT NULL,
	answer TEXT NOT NULL DEFAULT '',
	is_correct BOOLEAN NOT NULL DEFAULT FALSE,
	score DOUBLE PRECISION NOT NULL DEFAULT 0,
	latency_ms BIGINT NOT NULL DEFAULT 0,
	error_kind TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, test_case_id)
);

CREATE INDEX IF NOT EXISTS idx_response_cache_created_at ON response_cache(created_at);
CREATE INDEX IF NOT EXISTS idx_query_history_created_at ON query_history(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_validation_runs_request ON validation_runs(request_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
