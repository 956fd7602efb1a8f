package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PgVector is an Index backed by a PostgreSQL table with the pgvector extension.
type PgVector struct {
	db    *sqlx.DB
	table string
	dim   int
}

// NewPgVector connects to PostgreSQL and creates the embedding table when missing.
func NewPgVector(ctx context.Context, dsn, table string, dim int) (*PgVector, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("vector: connect postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)

	p := &PgVector{db: db, table: pq.QuoteIdentifier(table), dim: dim}
	if err := p.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *PgVector) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			title      TEXT NOT NULL DEFAULT '',
			text       TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT '',
			embedding  vector(%d) NOT NULL
		)`, p.table, p.dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (user_id)`,
			pq.QuoteIdentifier("idx_"+unquote(p.table)+"_user"), p.table),
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("vector: migrate pgvector: %w", err)
		}
	}
	return nil
}

// Upsert writes entries with INSERT ... ON CONFLICT in one transaction.
func (p *PgVector) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vector: begin: %w", err)
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, title, text, created_at, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			user_id    = EXCLUDED.user_id,
			title      = EXCLUDED.title,
			text       = EXCLUDED.text,
			created_at = EXCLUDED.created_at,
			embedding  = EXCLUDED.embedding`, p.table)
	for _, e := range entries {
		if len(e.Vector) != p.dim {
			return fmt.Errorf("vector: dim mismatch for %s: got %d, want %d", e.ID, len(e.Vector), p.dim)
		}
		if _, err := tx.ExecContext(ctx, stmt,
			e.ID, e.UserID, e.Title, e.Text, formatTime(e.CreatedAt), pgvector.NewVector(e.Vector)); err != nil {
			return fmt.Errorf("vector: pgvector upsert %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("vector: commit: %w", err)
	}
	return nil
}

// Delete removes rows by id.
func (p *PgVector) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := p.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, p.table), pq.Array(ids)); err != nil {
		return fmt.Errorf("vector: pgvector delete: %w", err)
	}
	return nil
}

// Query orders userID rows by cosine distance to vec.
func (p *PgVector) Query(ctx context.Context, vec []float32, userID string, topK int) ([]Match, error) {
	out := []Match{}
	if topK <= 0 {
		return out, nil
	}
	// <=> is cosine distance, so similarity is 1 - distance.
	query := fmt.Sprintf(`
		SELECT id, user_id, title, text, created_at, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE user_id = $2
		ORDER BY embedding <=> $1
		LIMIT $3`, p.table)

	rows, err := p.db.QueryxContext(ctx, query, pgvector.NewVector(vec), userID, topK)
	if err != nil {
		return nil, fmt.Errorf("vector: pgvector search: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.UserID, &m.Title, &m.Text, &m.CreatedAt, &m.Score); err != nil {
			return nil, fmt.Errorf("vector: scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close closes the database pool.
func (p *PgVector) Close() error {
	return p.db.Close()
}

func unquote(ident string) string {
	if len(ident) >= 2 && ident[0] == '"' && ident[len(ident)-1] == '"' {
		return ident[1 : len(ident)-1]
	}
	return ident
}
