package preference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/neuralos/internal/models"
	"github.com/starford/neuralos/internal/testutil"
)

type downStore struct{}

func (downStore) GetPreferences(context.Context, string) (*models.Preferences, error) {
	return nil, errors.New("down")
}

func (downStore) UpsertPreferences(context.Context, models.Preferences) error {
	return errors.New("down")
}

func TestGet_DefaultsWhenMissing(t *testing.T) {
	svc := NewService(testutil.TestDB(t), nil)
	got := svc.Get(context.Background(), "u1")
	assert.Equal(t, models.DefaultPreferences(), got)
	assert.True(t, got.DarkMode)
	assert.False(t, got.SidebarCollapsed)
	assert.True(t, got.EmailNotifications)
}

func TestUpdateThenGet(t *testing.T) {
	svc := NewService(testutil.TestDB(t), nil)
	ctx := context.Background()

	saved, err := svc.Update(ctx, "u1", models.Preferences{DarkMode: false, SidebarCollapsed: true, EmailNotifications: false})
	require.NoError(t, err)
	assert.Equal(t, "u1", saved.UserID)
	require.NotNil(t, saved.UpdatedAt)

	got := svc.Get(ctx, "u1")
	assert.False(t, got.DarkMode)
	assert.True(t, got.SidebarCollapsed)
	assert.False(t, got.EmailNotifications)
	assert.Equal(t, "u1", got.UserID)
}

func TestStoreOutage(t *testing.T) {
	svc := NewService(downStore{}, nil)
	assert.Equal(t, models.DefaultPreferences(), svc.Get(context.Background(), "u1"))
	_, err := svc.Update(context.Background(), "u1", models.Preferences{})
	assert.Error(t, err)
}
