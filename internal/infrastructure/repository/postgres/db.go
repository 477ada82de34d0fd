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
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaLockID = int64(2026101401)

// EnsureSchema creates the ledger and result tables.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across harvester/worker/api startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS processing_ledger (
	key TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	extracted_fields JSONB NOT NULL DEFAULT '{}'::jsonb,
	artifact_ref TEXT,
	error_message TEXT,
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS harvest_results (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	address TEXT NOT NULL,
	normalized_key TEXT NOT NULL,
	status TEXT NOT NULL,
	fh_number TEXT,
	approved_at TEXT,
	expiration_date TEXT,
	building_address TEXT,
	program TEXT,
	designation TEXT,
	error_message TEXT,
	failed_step TEXT,
	artifact_ref TEXT,
	artifact_size_bytes INTEGER NOT NULL DEFAULT 0,
	artifact_pages INTEGER NOT NULL DEFAULT 0,
	upload_link TEXT,
	processed_at TIMESTAMPTZ NOT NULL,
	artifact_created_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_processing_ledger_status ON processing_ledger(status);
CREATE INDEX IF NOT EXISTS idx_harvest_results_run_id ON harvest_results(run_id);
CREATE INDEX IF NOT EXISTS idx_harvest_results_key ON harvest_results(normalized_key, processed_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
