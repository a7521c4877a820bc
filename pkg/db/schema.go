// Package db keeps a local SQLite history of importer runs, ledger commits
// and small key/value metadata such as the last chosen destination file.
package db

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// migrations are applied in order; the file's PRAGMA user_version is the
// number already applied. Append only.
var migrations = []string{
	// 1: one row per /collect/run call
	`CREATE TABLE IF NOT EXISTS collect_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		importer TEXT NOT NULL,
		mode TEXT NOT NULL,                -- 'transactions' or 'balance'
		start_date TEXT,                   -- YYYY-MM-DD, NULL in balance mode
		end_date TEXT,
		returncode INTEGER NOT NULL,
		errors TEXT NOT NULL DEFAULT '[]', -- JSON array of messages
		run_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_collect_runs_importer
		ON collect_runs(importer, run_at);`,

	// 2: one row per ledger write
	`CREATE TABLE IF NOT EXISTS commits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		destination_file TEXT NOT NULL,
		snapshot_path TEXT,                -- copy of the file before the write
		check_passed INTEGER NOT NULL,
		check_errors INTEGER NOT NULL DEFAULT 0,
		forced INTEGER NOT NULL DEFAULT 0,
		committed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`,

	// 3
	`CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`,
}

// SchemaVersion is the version a fully migrated database reports.
var SchemaVersion = len(migrations)

func migrate(conn *Connection) error {
	current, err := conn.Version()
	if err != nil {
		return err
	}
	if current > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this build (%d)", current, len(migrations))
	}

	for v := current; v < len(migrations); v++ {
		stmt := migrations[v]
		err := conn.WithTx(func(tx *sql.Tx) error {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
			_, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1))
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		slog.Debug("applied history migration", "version", v+1)
	}
	return nil
}
