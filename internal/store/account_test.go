package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/neuralos/internal/apperr"
	"github.com/starford/neuralos/internal/models"
)

func TestSearchLogCounts(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	for i, at := range []time.Time{t0.Add(-10 * 24 * time.Hour), t0.Add(-2 * 24 * time.Hour), t0} {
		require.NoError(t, db.InsertSearchLog(ctx, models.SearchLog{
			UserID: "u1", Query: "q", ResultsCount: i, CreatedAt: at,
		}))
	}
	require.NoError(t, db.InsertSearchLog(ctx, models.SearchLog{UserID: "u2", Query: "q", CreatedAt: t0}))

	week, err := db.CountSearchesSince(ctx, "u1", t0.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, week)
}

func TestPreferences_UpsertReplaces(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.GetPreferences(ctx, "u1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	at := t0
	require.NoError(t, db.UpsertPreferences(ctx, models.Preferences{UserID: "u1", DarkMode: false, UpdatedAt: &at}))
	later := t0.Add(time.Hour)
	require.NoError(t, db.UpsertPreferences(ctx, models.Preferences{UserID: "u1", SidebarCollapsed: true, UpdatedAt: &later}))

	got, err := db.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.DarkMode)
	assert.True(t, got.SidebarCollapsed)
	assert.False(t, got.EmailNotifications)
	require.NotNil(t, got.UpdatedAt)
	assert.True(t, got.UpdatedAt.Equal(later))
}

func TestNotifications(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	for i, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, db.InsertNotification(ctx, models.Notification{
			ID: id, UserID: "u1", Title: id, Message: "m", Type: models.NotificationInfo,
			CreatedAt: t0.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, db.InsertNotification(ctx, models.Notification{
		ID: "x", UserID: "u2", Title: "x", Message: "m", Type: models.NotificationInfo, CreatedAt: t0,
	}))

	list, err := db.ListNotifications(ctx, "u1", false, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n3", list[0].ID)

	require.NoError(t, db.MarkNotificationRead(ctx, "n3", "u1"))
	require.NoError(t, db.MarkNotificationRead(ctx, "x", "u1"))
	require.NoError(t, db.MarkNotificationRead(ctx, "unknown", "u1"))

	unread, err := db.ListNotifications(ctx, "u1", true, 20)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	require.NoError(t, db.MarkAllNotificationsRead(ctx, "u1"))
	unread, err = db.ListNotifications(ctx, "u1", true, 20)
	require.NoError(t, err)
	assert.Empty(t, unread)

	other, err := db.ListNotifications(ctx, "u2", true, 20)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}
