package usecase

import (
	"context"
	"errors"

	"lendmark/internal/domain/notification"
	"lendmark/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type NotificationUsecase interface {
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]notification.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

type Notifications struct {
	repo   repository.NotificationRepository
	logger zerolog.Logger
}

func NewNotificationUsecase(repo repository.NotificationRepository, logger zerolog.Logger) *Notifications {
	return &Notifications{repo: repo, logger: logger}
}

func (u *Notifications) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]notification.Notification, error) {
	limit, offset = normalizePage(limit, offset, defaultOfferPageSize, maxOfferPageSize)
	items, err := u.repo.ListByUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		u.logger.Error().Err(err).Str("user_id", userID.String()).Msg("list notifications failed")
		return nil, ErrInternal
	}
	return items, nil
}

func (u *Notifications) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := u.repo.CountUnread(ctx, userID)
	if err != nil {
		u.logger.Error().Err(err).Str("user_id", userID.String()).Msg("count unread notifications failed")
		return 0, ErrInternal
	}
	return n, nil
}

// MarkRead reports ErrNotificationNotFound for notifications owned by
// someone else as well, so ids cannot be probed.
func (u *Notifications) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	if err := u.repo.MarkRead(ctx, userID, id); err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			return ErrNotificationNotFound
		}
		u.logger.Error().Err(err).Str("notification_id", id.String()).Msg("mark notification read failed")
		return ErrInternal
	}
	return nil
}

func (u *Notifications) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := u.repo.MarkAllRead(ctx, userID)
	if err != nil {
		u.logger.Error().Err(err).Str("user_id", userID.String()).Msg("mark all notifications read failed")
		return 0, ErrInternal
	}
	return n, nil
}
