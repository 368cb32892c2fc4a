package db

import (
	"database/sql"
	"fmt"
)

// migrations is an ordered list of SQL migration statements.
// Each entry is applied once in order. New migrations are appended at the end.
var migrations = []string{
	// Migration 0: run log
	`CREATE TABLE IF NOT EXISTS runs (
		id                   TEXT PRIMARY KEY,
		created_at           TEXT NOT NULL,
		user_id              TEXT NOT NULL,
		config_json          TEXT NOT NULL DEFAULT '{}',
		query                TEXT NOT NULL,
		augmented_query      TEXT,
		route                TEXT,
		ood                  INTEGER NOT NULL DEFAULT 0,
		plan_json            TEXT,
		tool_calls_json      TEXT,
		response             TEXT,
		eval_json            TEXT,
		latencies_json       TEXT,
		memory_injected_json TEXT
	)`,

	// Migration 1: memory items
	`CREATE TABLE IF NOT EXISTS memory_items (
		id           TEXT PRIMARY KEY,
		scope        TEXT NOT NULL,
		kind         TEXT NOT NULL,
		text         TEXT NOT NULL,
		meta_json    TEXT NOT NULL DEFAULT '{}',
		dedupe_key   TEXT NOT NULL,
		created_at   TEXT NOT NULL,
		last_used_at TEXT,
		use_count    INTEGER NOT NULL DEFAULT 0,
		importance   REAL NOT NULL DEFAULT 0.5,
		quality      REAL NOT NULL DEFAULT 0.5,
		expires_at   TEXT
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_memory_dedupe ON memory_items(scope, kind, dedupe_key)`,
	`CREATE INDEX IF NOT EXISTS idx_memory_scope_kind ON memory_items(scope, kind)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC)`,

	// Migration 5: full-text index over memory items
	`CREATE VIRTUAL TABLE IF NOT EXISTS memory_fts USING fts5(
		id UNINDEXED,
		text,
		kind,
		scope,
		tokenize='unicode61'
	)`,

	// Migration 6: tool-result cache
	`CREATE TABLE IF NOT EXISTS tool_cache (
		signature   TEXT PRIMARY KEY,
		created_at  TEXT NOT NULL,
		tool        TEXT NOT NULL,
		args_json   TEXT NOT NULL,
		result_json TEXT NOT NULL
	)`,
}

// applyMigrations runs any migrations that have not yet been applied.
func applyMigrations(conn *sql.DB) error {
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for i, stmt := range migrations {
		var count int
		row := conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, i)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", i, err)
		}
		if count > 0 {
			continue
		}

		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}

		if _, err := conn.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, i); err != nil {
			return fmt.Errorf("record migration %d: %w", i, err)
		}
	}

	return nil
}
