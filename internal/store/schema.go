// Package store provides the SQLite-backed record store for notes and account data.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	title             TEXT NOT NULL DEFAULT '',
	content           TEXT NOT NULL DEFAULT '',
	tags              TEXT NOT NULL DEFAULT '[]',
	is_favorite       BOOLEAN NOT NULL DEFAULT 0,
	is_archived       BOOLEAN NOT NULL DEFAULT 0,
	is_deleted        BOOLEAN NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL,
	embedded_checksum TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_notes_user_created ON notes(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS vector_outbox (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	note_id         TEXT NOT NULL,
	user_id         TEXT NOT NULL DEFAULT '',
	op              TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	attempts        INTEGER NOT NULL DEFAULT 0,
	last_error      TEXT NOT NULL DEFAULT '',
	next_attempt_at DATETIME NOT NULL,
	created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outbox_claim ON vector_outbox(status, next_attempt_at);

CREATE TABLE IF NOT EXISTS search_logs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id       TEXT NOT NULL,
	query         TEXT NOT NULL,
	results_count INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_search_logs_user_created ON search_logs(user_id, created_at);

CREATE TABLE IF NOT EXISTS user_preferences (
	user_id             TEXT PRIMARY KEY,
	dark_mode           BOOLEAN NOT NULL DEFAULT 1,
	sidebar_collapsed   BOOLEAN NOT NULL DEFAULT 0,
	email_notifications BOOLEAN NOT NULL DEFAULT 1,
	updated_at          DATETIME
);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	title      TEXT NOT NULL,
	message    TEXT NOT NULL,
	type       TEXT NOT NULL DEFAULT 'info',
	is_read    BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at DESC);
`

// DB wraps a sqlx.DB with record-store operations.
type DB struct {
	conn *sqlx.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	conn, err := sqlx.Open("sqlite3", dsn+sep+"_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate&_loc=UTC")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Tx exposes record-store operations bound to one transaction.
type Tx struct {
	q Querier
}

// RunInTx runs fn within a transaction. If fn returns an error the
// transaction is rolled back; otherwise it is committed.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	if err := fn(ctx, &Tx{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("store: rollback: %w (original error: %v)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}
