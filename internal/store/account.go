package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/neuralos/internal/apperr"
	"github.com/starford/neuralos/internal/models"
)

// InsertSearchLog appends one search log entry.
func (db *DB) InsertSearchLog(ctx context.Context, l models.SearchLog) error {
	_, err := db.conn.NamedExecContext(ctx, `
		INSERT INTO search_logs (user_id, query, results_count, created_at)
		VALUES (:user_id, :query, :results_count, :created_at)`, l)
	if err != nil {
		return fmt.Errorf("store: insert search log: %w", err)
	}
	return nil
}

// CountSearchesSince counts searches of userID at or after since.
func (db *DB) CountSearchesSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	if err := db.conn.GetContext(ctx, &n,
		`SELECT count(*) FROM search_logs WHERE user_id = ? AND created_at >= ?`, userID, since); err != nil {
		return 0, fmt.Errorf("store: count searches: %w", err)
	}
	return n, nil
}

// GetPreferences returns the stored preferences of userID, or apperr.ErrNotFound.
func (db *DB) GetPreferences(ctx context.Context, userID string) (*models.Preferences, error) {
	var p models.Preferences
	err := db.conn.GetContext(ctx, &p, `
		SELECT user_id, dark_mode, sidebar_collapsed, email_notifications, updated_at
		FROM user_preferences WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get preferences: %w", err)
	}
	return &p, nil
}

// UpsertPreferences creates or replaces the preferences row of p.UserID.
func (db *DB) UpsertPreferences(ctx context.Context, p models.Preferences) error {
	_, err := db.conn.NamedExecContext(ctx, `
		INSERT INTO user_preferences (user_id, dark_mode, sidebar_collapsed, email_notifications, updated_at)
		VALUES (:user_id, :dark_mode, :sidebar_collapsed, :email_notifications, :updated_at)
		ON CONFLICT(user_id) DO UPDATE SET
			dark_mode           = excluded.dark_mode,
			sidebar_collapsed   = excluded.sidebar_collapsed,
			email_notifications = excluded.email_notifications,
			updated_at          = excluded.updated_at`, p)
	if err != nil {
		return fmt.Errorf("store: upsert preferences: %w", err)
	}
	return nil
}

// ListNotifications returns notifications of userID, newest first.
func (db *DB) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := `SELECT id, user_id, title, message, type, is_read, created_at FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC LIMIT ?`

	out := []models.Notification{}
	if err := db.conn.SelectContext(ctx, &out, query, userID, limit); err != nil {
		return nil, fmt.Errorf("store: list notifications: %w", err)
	}
	return out, nil
}

// InsertNotification stores a new notification.
func (db *DB) InsertNotification(ctx context.Context, n models.Notification) error {
	_, err := db.conn.NamedExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, message, type, is_read, created_at)
		VALUES (:id, :user_id, :title, :message, :type, :is_read, :created_at)`, n)
	if err != nil {
		return fmt.Errorf("store: insert notification: %w", err)
	}
	return nil
}

// MarkNotificationRead sets the read flag of one notification of userID.
// Unknown ids are ignored.
func (db *DB) MarkNotificationRead(ctx context.Context, id, userID string) error {
	if _, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("store: mark notification read: %w", err)
	}
	return nil
}

// MarkAllNotificationsRead sets the read flag of every notification of userID.
func (db *DB) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	if _, err := db.conn.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID); err != nil {
		return fmt.Errorf("store: mark all notifications read: %w", err)
	}
	return nil
}
