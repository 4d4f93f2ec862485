package usecase

import (
	"context"
	"testing"
	"time"

	"lendmark/internal/domain/notification"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifications_ReadFlow(t *testing.T) {
	owner, stranger := uuid.New(), uuid.New()
	repo := &memNotifications{}
	now := time.Now().UTC()
	a := notification.OfferAccepted(owner, uuid.New(), 1_000, now)
	b := notification.PaymentReceived(owner, uuid.New(), 100, 900, now)
	require.NoError(t, repo.CreateTx(context.Background(), nil, a))
	require.NoError(t, repo.CreateTx(context.Background(), nil, b))

	uc := NewNotificationUsecase(repo, zerolog.Nop())

	n, err := uc.UnreadCount(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	err = uc.MarkRead(context.Background(), stranger, a.ID)
	assert.ErrorIs(t, err, ErrNotificationNotFound)

	require.NoError(t, uc.MarkRead(context.Background(), owner, a.ID))
	unread, err := uc.List(context.Background(), owner, true, 0, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, b.ID, unread[0].ID)

	changed, err := uc.MarkAllRead(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	n, err = uc.UnreadCount(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
