package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/starford/neuralos/internal/apperr"
	"github.com/starford/neuralos/internal/models"
)

const noteColumns = `id, user_id, title, content, tags, is_favorite, is_archived, is_deleted, created_at, updated_at, embedded_checksum`

// Flag columns that can be toggled atomically.
const (
	FlagFavorite = "is_favorite"
	FlagArchived = "is_archived"
)

// CountFilter narrows a note count. Deleted notes are never counted.
type CountFilter struct {
	Favorite bool
	Archived bool
}

// InsertNote stores a new note.
func (t *Tx) InsertNote(ctx context.Context, n *models.Note) error {
	return insertNote(ctx, t.q, n)
}

// GetNote returns the note with id owned by userID.
func (t *Tx) GetNote(ctx context.Context, id, userID string) (*models.Note, error) {
	return getNote(ctx, t.q, id, userID)
}

// UpdateNote applies p to the note and refreshes updated_at.
func (t *Tx) UpdateNote(ctx context.Context, id, userID string, p models.NotePatch, now time.Time) error {
	return updateNote(ctx, t.q, id, userID, p, now)
}

// DeleteNote physically removes a note. It reports whether a row was removed.
func (t *Tx) DeleteNote(ctx context.Context, id, userID string) (bool, error) {
	res, err := t.q.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("store: delete note: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// TrashedIDs returns the ids of all soft-deleted notes of userID.
func (t *Tx) TrashedIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := t.q.SelectContext(ctx, &ids,
		`SELECT id FROM notes WHERE user_id = ? AND is_deleted = 1 ORDER BY created_at`, userID); err != nil {
		return nil, fmt.Errorf("store: trashed ids: %w", err)
	}
	return ids, nil
}

// DeleteNotes physically removes the given notes of userID.
func (t *Tx) DeleteNotes(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM notes WHERE user_id = ? AND id IN (?)`, userID, ids)
	if err != nil {
		return fmt.Errorf("store: build bulk delete: %w", err)
	}
	if _, err := t.q.ExecContext(ctx, t.q.Rebind(query), args...); err != nil {
		return fmt.Errorf("store: bulk delete: %w", err)
	}
	return nil
}

// GetNote returns the note with id owned by userID, or apperr.ErrNotFound.
func (db *DB) GetNote(ctx context.Context, id, userID string) (*models.Note, error) {
	return getNote(ctx, db.conn, id, userID)
}

// GetNoteByID returns a note regardless of owner. A missing note yields (nil, nil).
func (db *DB) GetNoteByID(ctx context.Context, id string) (*models.Note, error) {
	var n models.Note
	err := db.conn.GetContext(ctx, &n, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get note by id: %w", err)
	}
	return &n, nil
}

// ListNotes returns notes for q.UserID matching the filter, newest first.
func (db *DB) ListNotes(ctx context.Context, q models.ListQuery) ([]models.Note, error) {
	where := []string{"user_id = ?"}
	args := []any{q.UserID}

	switch q.FilterType {
	case models.FilterAll:
		where = append(where, "is_deleted = 0", "is_archived = 0")
	case models.FilterFavorites:
		where = append(where, "is_favorite = 1", "is_deleted = 0")
	case models.FilterArchived:
		where = append(where, "is_archived = 1", "is_deleted = 0")
	case models.FilterTrash:
		where = append(where, "is_deleted = 1")
	}

	if q.Search != "" {
		like := "%" + escapeLike(q.Search) + "%"
		where = append(where, `(title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\')`)
		args = append(args, like, like)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	query := `SELECT ` + noteColumns + ` FROM notes WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`

	notes := []models.Note{}
	if err := db.conn.SelectContext(ctx, &notes, query, args...); err != nil {
		return nil, fmt.Errorf("store: list notes: %w", err)
	}
	return notes, nil
}

// SetDeleted flips the soft-delete flag. It reports whether a row matched.
func (db *DB) SetDeleted(ctx context.Context, id, userID string, deleted bool, now time.Time) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE notes SET is_deleted = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		deleted, now, id, userID)
	if err != nil {
		return false, fmt.Errorf("store: set deleted: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ToggleFlag negates a boolean column in a single statement and returns the new value.
func (db *DB) ToggleFlag(ctx context.Context, id, userID, column string, now time.Time) (bool, error) {
	if column != FlagFavorite && column != FlagArchived {
		return false, fmt.Errorf("store: toggle %q: %w", column, apperr.ErrInvalid)
	}
	var v bool
	err := db.conn.QueryRowxContext(ctx,
		`UPDATE notes SET `+column+` = NOT `+column+`, updated_at = ?
		 WHERE id = ? AND user_id = ?
		 RETURNING `+column, now, id, userID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, apperr.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("store: toggle %s: %w", column, err)
	}
	return v, nil
}

// CountNotes counts the non-deleted notes of userID matching f.
func (db *DB) CountNotes(ctx context.Context, userID string, f CountFilter) (int, error) {
	query := `SELECT count(*) FROM notes WHERE user_id = ? AND is_deleted = 0`
	if f.Favorite {
		query += ` AND is_favorite = 1`
	}
	if f.Archived {
		query += ` AND is_archived = 1`
	}
	var n int
	if err := db.conn.GetContext(ctx, &n, query, userID); err != nil {
		return 0, fmt.Errorf("store: count notes: %w", err)
	}
	return n, nil
}

// RecentCreatedAt returns the creation times of the newest notes of userID.
func (db *DB) RecentCreatedAt(ctx context.Context, userID string, limit int) ([]time.Time, error) {
	var out []time.Time
	if err := db.conn.SelectContext(ctx, &out,
		`SELECT created_at FROM notes WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit); err != nil {
		return nil, fmt.Errorf("store: recent created_at: %w", err)
	}
	return out, nil
}

// NoteRefs returns (id, user_id) pairs of every note, optionally for one user.
func (t *Tx) NoteRefs(ctx context.Context, userID string) ([]NoteRef, error) {
	query := `SELECT id, user_id FROM notes`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at`
	var out []NoteRef
	if err := t.q.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("store: note refs: %w", err)
	}
	return out, nil
}

// ResetEmbeddedChecksums forgets what was indexed so every note is embedded
// again. An empty userID resets all notes.
func (t *Tx) ResetEmbeddedChecksums(ctx context.Context, userID string) error {
	query := `UPDATE notes SET embedded_checksum = ''`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	if _, err := t.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store: reset checksums: %w", err)
	}
	return nil
}

// SetEmbeddedChecksum records sum as the indexed checksum of n, but only
// while the stored row still holds n's title and content. It reports whether
// the row matched.
func (db *DB) SetEmbeddedChecksum(ctx context.Context, n *models.Note, sum string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE notes SET embedded_checksum = ? WHERE id = ? AND title = ? AND content = ?`,
		sum, n.ID, n.Title, n.Content)
	if err != nil {
		return false, fmt.Errorf("store: set embedded checksum: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

// NoteRef identifies a note and its owner.
type NoteRef struct {
	ID     string `db:"id"`
	UserID string `db:"user_id"`
}

func insertNote(ctx context.Context, q Querier, n *models.Note) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO notes (`+noteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Content, n.Tags,
		n.IsFavorite, n.IsArchived, n.IsDeleted,
		n.CreatedAt, n.UpdatedAt, n.EmbeddedChecksum)
	if err != nil {
		return fmt.Errorf("store: insert note: %w", err)
	}
	return nil
}

func getNote(ctx context.Context, q Querier, id, userID string) (*models.Note, error) {
	var n models.Note
	err := q.GetContext(ctx, &n,
		`SELECT `+noteColumns+` FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get note: %w", err)
	}
	return &n, nil
}

func updateNote(ctx context.Context, q Querier, id, userID string, p models.NotePatch, now time.Time) error {
	sets := []string{"updated_at = ?"}
	args := []any{now}
	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *p.Content)
	}
	if p.Tags != nil {
		sets = append(sets, "tags = ?")
		args = append(args, models.Tags(*p.Tags))
	}
	if p.IsFavorite != nil {
		sets = append(sets, "is_favorite = ?")
		args = append(args, *p.IsFavorite)
	}
	if p.IsArchived != nil {
		sets = append(sets, "is_archived = ?")
		args = append(args, *p.IsArchived)
	}
	if p.IsDeleted != nil {
		sets = append(sets, "is_deleted = ?")
		args = append(args, *p.IsDeleted)
	}
	args = append(args, id, userID)

	res, err := q.ExecContext(ctx,
		`UPDATE notes SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("store: update note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
