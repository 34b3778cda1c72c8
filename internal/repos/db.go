package repos

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Open creates a sqlite connection pool for the given URL.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS device_sessions (
		id TEXT PRIMARY KEY,
		device_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		device_type TEXT NOT NULL DEFAULT '',
		device_name TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		last_heartbeat DATETIME NOT NULL,
		current_context TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL,
		UNIQUE(user_id, device_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_device_sessions_user
		ON device_sessions(user_id, is_active, last_heartbeat);`,
	`CREATE TABLE IF NOT EXISTS sync_queue (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		from_device_id TEXT NOT NULL,
		to_device_id TEXT,
		sync_type TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'pending',
		priority INTEGER NOT NULL DEFAULT 0,
		seq INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		synced_at DATETIME
	);`,
	`CREATE INDEX IF NOT EXISTS idx_sync_queue_user_status
		ON sync_queue(user_id, status, priority, created_at);`,
	`CREATE TABLE IF NOT EXISTS device_preferences (
		user_id TEXT PRIMARY KEY,
		preferences TEXT NOT NULL DEFAULT '{}',
		updated_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		doc TEXT NOT NULL DEFAULT '{}',
		updated_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		doc TEXT NOT NULL DEFAULT '{}',
		updated_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		severity TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		evidence TEXT NOT NULL DEFAULT '{}',
		method TEXT NOT NULL DEFAULT '',
		fingerprint TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_findings_user_fp
		ON findings(user_id, fingerprint, created_at);`,
	`CREATE TABLE IF NOT EXISTS sync_leases (
		user_id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		acquired_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);`,
}

// InitSchema creates all engine tables if they do not exist. The serve
// command also applies migrations/*.sql on top for operational changes.
func InitSchema(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
