// Package db stores run records in PostgreSQL.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

var (
	ErrRunNotFound   = errors.New("run not found")
	ErrAssetNotFound = errors.New("asset not found")
)

type DB struct {
	*sql.DB
}

// New opens a connection pool and checks it with a ping.
func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              UUID PRIMARY KEY,
	topic           TEXT NOT NULL DEFAULT '',
	brief           TEXT,
	style           TEXT NOT NULL DEFAULT '',
	tone            TEXT NOT NULL DEFAULT '',
	platform        TEXT NOT NULL DEFAULT '',
	burn_captions   BOOLEAN NOT NULL DEFAULT FALSE,
	status          TEXT NOT NULL,
	run_dir         TEXT,
	storage_prefix  TEXT,
	error_message   TEXT,
	summary         JSONB,
	started_at      TIMESTAMPTZ,
	finished_at     TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS runs_status_created_idx ON runs (status, created_at DESC);

CREATE TABLE IF NOT EXISTS run_assets (
	id              UUID PRIMARY KEY,
	run_id          UUID NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
	type            TEXT NOT NULL,
	storage_bucket  TEXT NOT NULL,
	storage_path    TEXT NOT NULL,
	content_type    TEXT,
	byte_size       BIGINT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS run_assets_run_idx ON run_assets (run_id);
`

// Migrate creates the tables if they do not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
