package repository

import (
	"context"
	"fmt"
	"time"

	"lendmark/internal/database"
	"lendmark/internal/domain/notification"

	"github.com/google/uuid"
)

type NotificationRepository interface {
	CreateTx(ctx context.Context, q database.Querier, n notification.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]notification.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	// ExistsSince runs on q so a caller holding the offer row lock sees
	// notifications committed by whoever held it before.
	ExistsSince(ctx context.Context, q database.Querier, offerID uuid.UUID, kind notification.Kind, since time.Time) (bool, error)
}

type PostgresNotificationRepository struct {
	db database.DB
}

func NewPostgresNotificationRepository(db database.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) CreateTx(ctx context.Context, q database.Querier, n notification.Notification) error {
	_, err := q.Exec(ctx,
		`INSERT INTO notifications (id, user_id, kind, title, body, offer_id, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.UserID, string(n.Kind), n.Title, n.Body, n.OfferID, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]notification.Notification, error) {
	limit, offset = clampPage(limit, offset, 20, 100)

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, kind, title, body, offer_id, is_read, created_at
		 FROM notifications
		 WHERE user_id = $1 AND ($2 = false OR is_read = false)
		 ORDER BY created_at DESC, id
		 LIMIT $3 OFFSET $4`,
		userID, unreadOnly, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]notification.Notification, 0)
	for rows.Next() {
		var n notification.Notification
		var kind string
		if err := rows.Scan(&n.ID, &n.UserID, &kind, &n.Title, &n.Body, &n.OfferID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Kind = notification.Kind(kind)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresNotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	row := r.db.QueryRow(ctx, `SELECT COUNT(1) FROM notifications WHERE user_id = $1 AND is_read = false`, userID)
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	affected, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return err
	}
	if affected == 0 {
		return notification.ErrNotFound
	}
	return nil
}

func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return r.db.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE user_id = $1 AND is_read = false`,
		userID,
	)
}

func (r *PostgresNotificationRepository) ExistsSince(ctx context.Context, q database.Querier, offerID uuid.UUID, kind notification.Kind, since time.Time) (bool, error) {
	if q == nil {
		q = r.db
	}
	var exists bool
	row := q.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM notifications
			WHERE offer_id = $1 AND kind = $2 AND created_at >= $3
		 )`,
		offerID, string(kind), since.UTC(),
	)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
