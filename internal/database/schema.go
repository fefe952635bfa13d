package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema holds the DDL for all leakscan tables. Statements are idempotent so
// EnsureSchema can run at every startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS credentials (
		id          BIGSERIAL PRIMARY KEY,
		url         TEXT NOT NULL,
		username    TEXT NOT NULL,
		password    TEXT NOT NULL,
		domain      TEXT NOT NULL DEFAULT 'other',
		is_admin    BOOLEAN NOT NULL DEFAULT FALSE,
		first_seen  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		seen_count  INTEGER NOT NULL DEFAULT 1,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT credentials_triple_unique UNIQUE (url, username, password)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_credentials_domain ON credentials (domain)`,
	`CREATE INDEX IF NOT EXISTS idx_credentials_last_seen ON credentials (last_seen DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_credentials_is_admin ON credentials (is_admin) WHERE is_admin`,

	`CREATE TABLE IF NOT EXISTS scan_jobs (
		id               UUID PRIMARY KEY,
		job_type         TEXT NOT NULL,
		name             TEXT NOT NULL DEFAULT '',
		query            TEXT NOT NULL DEFAULT '',
		time_filter      TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL DEFAULT 'queued',
		queue_message_id TEXT NOT NULL DEFAULT '',
		cancel_requested BOOLEAN NOT NULL DEFAULT FALSE,
		pause_requested  BOOLEAN NOT NULL DEFAULT FALSE,
		total_raw        INTEGER NOT NULL DEFAULT 0,
		total_parsed     INTEGER NOT NULL DEFAULT 0,
		total_new        INTEGER NOT NULL DEFAULT 0,
		total_duplicates INTEGER NOT NULL DEFAULT 0,
		file_path        TEXT,
		started_at       TIMESTAMPTZ,
		completed_at     TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		error_message    TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scan_jobs_status ON scan_jobs (status)`,
	`CREATE INDEX IF NOT EXISTS idx_scan_jobs_created_at ON scan_jobs (created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS job_credentials (
		job_id        UUID NOT NULL REFERENCES scan_jobs (id) ON DELETE CASCADE,
		credential_id BIGINT NOT NULL REFERENCES credentials (id) ON DELETE CASCADE,
		is_new        BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (job_id, credential_id)
	)`,

	`CREATE TABLE IF NOT EXISTS scan_schedules (
		id          UUID PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		job_type    TEXT NOT NULL,
		query       TEXT NOT NULL,
		time_filter TEXT NOT NULL DEFAULT '',
		cron_expr   TEXT NOT NULL,
		enabled     BOOLEAN NOT NULL DEFAULT TRUE,
		last_run_at TIMESTAMPTZ,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scan_schedules_enabled ON scan_schedules (enabled)`,
}

// EnsureSchema creates the leakscan tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
