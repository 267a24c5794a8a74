// Package storage persists download history and subscription rules in a
// single SQLite database file.
package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle shared by the history and subscription stores
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database file and applies the schema
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc's driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent terminal-job persists and poll commits.
	db.SetMaxOpenConns(1)

	s := &DB{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle
func (s *DB) Close() error {
	return s.db.Close()
}

// History returns the history store backed by this database
func (s *DB) History() *HistoryStore {
	return &HistoryStore{db: s.db}
}

// Subscriptions returns the subscription store backed by this database
func (s *DB) Subscriptions() *SubscriptionStore {
	return &SubscriptionStore{db: s.db}
}

func (s *DB) ensureSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS history (
	job_id          TEXT PRIMARY KEY,
	url             TEXT NOT NULL,
	kind            TEXT NOT NULL,
	state           TEXT NOT NULL,
	title           TEXT NOT NULL DEFAULT '',
	thumbnail       TEXT NOT NULL DEFAULT '',
	channel         TEXT NOT NULL DEFAULT '',
	duration        TEXT NOT NULL DEFAULT '',
	tags            TEXT NOT NULL DEFAULT '[]',
	format_selector TEXT NOT NULL DEFAULT '',
	command_line    TEXT NOT NULL DEFAULT '',
	output_dir      TEXT NOT NULL DEFAULT '',
	output_path     TEXT NOT NULL DEFAULT '',
	subscription_id TEXT NOT NULL DEFAULT '',
	error           TEXT NOT NULL DEFAULT '',
	log_tail        TEXT NOT NULL DEFAULT '[]',
	created_at      INTEGER NOT NULL,
	finished_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_finished_at ON history (finished_at DESC);

CREATE TABLE IF NOT EXISTS subscriptions (
	id                   TEXT PRIMARY KEY,
	feed_url             TEXT NOT NULL,
	title                TEXT NOT NULL DEFAULT '',
	keywords             TEXT NOT NULL DEFAULT '[]',
	tags                 TEXT NOT NULL DEFAULT '[]',
	only_download_latest INTEGER NOT NULL DEFAULT 0,
	download_directory   TEXT NOT NULL DEFAULT '',
	naming_template      TEXT NOT NULL DEFAULT '',
	enabled              INTEGER NOT NULL DEFAULT 1,
	last_seen_entry_ids  TEXT NOT NULL DEFAULT '[]',
	last_checked_at      INTEGER NOT NULL DEFAULT 0,
	last_error           TEXT NOT NULL DEFAULT '',
	created_at           INTEGER NOT NULL,
	updated_at           INTEGER NOT NULL
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
