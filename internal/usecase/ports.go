package usecase

import (
	"context"
	"time"

	"lendmark/internal/domain/notification"

	"github.com/google/uuid"
)

// NotificationPublisher pushes already-committed notifications to live
// subscribers. Delivery is best effort.
type NotificationPublisher interface {
	Publish(n notification.Notification)
}

type noopPublisher struct{}

func (noopPublisher) Publish(notification.Notification) {}

// Cache is the subset of the Redis cache the usecases depend on.
type Cache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error

	// Counter reads an integer set by Incr; a missing key reads as 0.
	Counter(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
}

type noopCache struct{}

func (noopCache) GetJSON(context.Context, string, any) (bool, error)        { return false, nil }
func (noopCache) SetJSON(context.Context, string, any, time.Duration) error { return nil }
func (noopCache) Delete(context.Context, ...string) error                   { return nil }
func (noopCache) DeleteByPattern(context.Context, string) error             { return nil }
func (noopCache) Counter(context.Context, string) (int64, error)            { return 0, nil }
func (noopCache) Incr(context.Context, string) (int64, error)               { return 0, nil }

// SessionStore tracks outstanding refresh tokens by jti. When it is not
// enabled, refresh tokens are accepted statelessly until they expire.
type SessionStore interface {
	Enabled() bool
	Remember(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) error
	Consume(ctx context.Context, jti string, userID uuid.UUID) (bool, error)
	Revoke(ctx context.Context, jti string) error
}

type noopSessions struct{}

func (noopSessions) Enabled() bool { return false }
func (noopSessions) Remember(context.Context, string, uuid.UUID, time.Time) error {
	return nil
}
func (noopSessions) Consume(context.Context, string, uuid.UUID) (bool, error) { return true, nil }
func (noopSessions) Revoke(context.Context, string) error                     { return nil }
