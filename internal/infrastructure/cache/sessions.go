package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const refreshKeyPrefix = "auth:refresh:"

// RefreshSessions tracks outstanding refresh tokens by jti. A token is valid
// for rotation only while its key exists, and rotation consumes it.
type RefreshSessions struct {
	redis *Redis
}

func NewRefreshSessions(r *Redis) *RefreshSessions {
	return &RefreshSessions{redis: r}
}

func (s *RefreshSessions) Enabled() bool {
	return s != nil && s.redis.Enabled()
}

func (s *RefreshSessions) Remember(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.redis.SetString(ctx, refreshKeyPrefix+jti, userID.String(), ttl)
}

// Consume reports whether jti was outstanding for userID, removing it either
// way.
func (s *RefreshSessions) Consume(ctx context.Context, jti string, userID uuid.UUID) (bool, error) {
	v, ok, err := s.redis.GetDel(ctx, refreshKeyPrefix+jti)
	if err != nil || !ok {
		return false, err
	}
	return v == userID.String(), nil
}

func (s *RefreshSessions) Revoke(ctx context.Context, jti string) error {
	return s.redis.Delete(ctx, refreshKeyPrefix+jti)
}
