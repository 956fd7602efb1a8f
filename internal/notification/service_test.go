package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/neuralos/internal/apperr"
	"github.com/starford/neuralos/internal/models"
	"github.com/starford/neuralos/internal/testutil"
)

type recorder struct{ got []models.Notification }

func (r *recorder) NotificationCreated(n models.Notification) { r.got = append(r.got, n) }

type downStore struct{ Store }

func (downStore) ListNotifications(context.Context, string, bool, int) ([]models.Notification, error) {
	return nil, errors.New("down")
}

func TestCreateAndList(t *testing.T) {
	rec := &recorder{}
	svc := NewService(testutil.TestDB(t), rec, nil)
	svc.now = testutil.Clock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateInput{UserID: "u1", Title: "Saved", Message: "note saved"})
	require.NoError(t, err)
	assert.Equal(t, models.NotificationInfo, first.Type)
	assert.False(t, first.IsRead)
	assert.NotEmpty(t, first.ID)

	second, err := svc.Create(ctx, CreateInput{UserID: "u1", Title: "Oops", Message: "m", Type: models.NotificationWarning})
	require.NoError(t, err)

	list := svc.List(ctx, "u1", false, 0)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Len(t, rec.got, 2)

	require.NoError(t, svc.MarkRead(ctx, second.ID, "u1"))
	unread := svc.List(ctx, "u1", true, 0)
	require.Len(t, unread, 1)
	assert.Equal(t, first.ID, unread[0].ID)

	require.NoError(t, svc.MarkAllRead(ctx, "u1"))
	assert.Empty(t, svc.List(ctx, "u1", true, 0))
}

func TestCreate_RequiresUser(t *testing.T) {
	svc := NewService(testutil.TestDB(t), nil, nil)
	_, err := svc.Create(context.Background(), CreateInput{Title: "t"})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestList_ErrorYieldsEmpty(t *testing.T) {
	svc := NewService(downStore{}, nil, nil)
	got := svc.List(context.Background(), "u1", false, 0)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
