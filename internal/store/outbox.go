package store

import (
	"context"
	"fmt"
	"time"
)

// Outbox operations.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// Outbox statuses.
const (
	StatusPending = "pending"
	StatusDead    = "dead"
)

// OutboxEvent is a pending vector index mutation recorded alongside a note change.
type OutboxEvent struct {
	ID            int64     `db:"id"`
	NoteID        string    `db:"note_id"`
	UserID        string    `db:"user_id"`
	Op            string    `db:"op"`
	Status        string    `db:"status"`
	Attempts      int       `db:"attempts"`
	LastError     string    `db:"last_error"`
	NextAttemptAt time.Time `db:"next_attempt_at"`
	CreatedAt     time.Time `db:"created_at"`
}

// Enqueue records a vector index mutation in the current transaction.
func (t *Tx) Enqueue(ctx context.Context, noteID, userID, op string, now time.Time) (OutboxEvent, error) {
	ev := OutboxEvent{
		NoteID:        noteID,
		UserID:        userID,
		Op:            op,
		Status:        StatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO vector_outbox (note_id, user_id, op, status, next_attempt_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.NoteID, ev.UserID, ev.Op, ev.Status, ev.NextAttemptAt, ev.CreatedAt)
	if err != nil {
		return OutboxEvent{}, fmt.Errorf("store: enqueue %s %s: %w", op, noteID, err)
	}
	ev.ID, err = res.LastInsertId()
	if err != nil {
		return OutboxEvent{}, fmt.Errorf("store: enqueue id: %w", err)
	}
	return ev, nil
}

// ClaimOutbox returns up to limit pending events that are due at now and
// were created no later than createdBefore, oldest first.
func (db *DB) ClaimOutbox(ctx context.Context, now, createdBefore time.Time, limit int) ([]OutboxEvent, error) {
	var out []OutboxEvent
	err := db.conn.SelectContext(ctx, &out, `
		SELECT id, note_id, user_id, op, status, attempts, last_error, next_attempt_at, created_at
		FROM vector_outbox
		WHERE status = ? AND next_attempt_at <= ? AND created_at <= ?
		ORDER BY id
		LIMIT ?`, StatusPending, now, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("store: claim outbox: %w", err)
	}
	return out, nil
}

// CompleteOutbox removes a delivered event.
func (db *DB) CompleteOutbox(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM vector_outbox WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: complete outbox %d: %w", id, err)
	}
	return nil
}

// FailOutbox records a failed delivery. The event is rescheduled at next,
// or marked dead once its attempts reach maxAttempts.
func (db *DB) FailOutbox(ctx context.Context, id int64, cause error, next time.Time, maxAttempts int) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := db.conn.ExecContext(ctx, `
		UPDATE vector_outbox
		SET attempts = attempts + 1,
		    last_error = ?,
		    next_attempt_at = ?,
		    status = CASE WHEN attempts + 1 >= ? THEN ? ELSE status END
		WHERE id = ?`, msg, next, maxAttempts, StatusDead, id)
	if err != nil {
		return fmt.Errorf("store: fail outbox %d: %w", id, err)
	}
	return nil
}

// OutboxEvent returns one event by id.
func (db *DB) OutboxEvent(ctx context.Context, id int64) (OutboxEvent, error) {
	var ev OutboxEvent
	err := db.conn.GetContext(ctx, &ev, `
		SELECT id, note_id, user_id, op, status, attempts, last_error, next_attempt_at, created_at
		FROM vector_outbox WHERE id = ?`, id)
	if err != nil {
		return OutboxEvent{}, fmt.Errorf("store: outbox event %d: %w", id, err)
	}
	return ev, nil
}

// OutboxCounts returns the number of events per status.
func (db *DB) OutboxCounts(ctx context.Context) (map[string]int, error) {
	rows, err := db.conn.QueryxContext(ctx, `SELECT status, count(*) FROM vector_outbox GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("store: outbox counts: %w", err)
	}
	defer rows.Close()

	out := map[string]int{StatusPending: 0, StatusDead: 0}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("store: scan outbox count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}
