package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row for the requested tenant-scoped key
// does not exist.
var ErrNotFound = errors.New("store: not found")

// timestampLayout is fixed-width so lexicographic ordering on the column
// matches chronological ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Store is the tenant-scoped persistence layer: cached responses, training
// examples, message log, notification settings/records and session status.
// All writes are per-row upserts keyed by tenant plus the entity's natural
// key, so callers never need cross-row transactions.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			tenant_id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			telegram_chat_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS cached_responses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			query_text TEXT NOT NULL,
			response_text TEXT NOT NULL,
			usage_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE(tenant_id, query_text)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_usage ON cached_responses(tenant_id, usage_count)`,
		`CREATE TABLE IF NOT EXISTS training_examples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			intent TEXT NOT NULL,
			examples TEXT NOT NULL,
			responses TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE(tenant_id, intent)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			direction TEXT NOT NULL,
			peer TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_tenant ON messages(tenant_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS session_status (
			tenant_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS notification_settings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			notification_type TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			channels TEXT NOT NULL DEFAULT '[]',
			schedule TEXT,
			UNIQUE(tenant_id, notification_type)
		)`,
		`CREATE TABLE IF NOT EXISTS notification_log (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			notification_type TEXT NOT NULL,
			message TEXT NOT NULL,
			channels_used TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifylog_tenant ON notification_log(tenant_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS notification_jobs (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			notification_type TEXT NOT NULL,
			message TEXT NOT NULL,
			cron_expr TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			last_run_at TEXT,
			last_status TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS catalog_items (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price_cents INTEGER NOT NULL DEFAULT 0,
			available INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_tenant ON catalog_items(tenant_id)`,
		`CREATE TABLE IF NOT EXISTS business_hours (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			weekday TEXT NOT NULL,
			open_time TEXT NOT NULL,
			close_time TEXT NOT NULL,
			UNIQUE(tenant_id, weekday)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
