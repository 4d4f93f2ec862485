package usecase

import (
	"context"
	"time"

	"lendmark/internal/domain/user"
	ucuser "lendmark/internal/usecase/user"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type UserUsecase interface {
	GetMe(ctx context.Context, userID uuid.UUID) (user.User, error)
	UpdateMe(ctx context.Context, userID uuid.UUID, in ucuser.UpdateMeInput) (user.User, error)
	Summary(ctx context.Context, userID uuid.UUID) (ucuser.Summary, error)
}

type User struct {
	svc      *ucuser.Service
	cache    Cache
	cacheTTL time.Duration
	logger   zerolog.Logger
}

type UserOption func(*User)

// WithUserCache caches ledger summaries. Offer and payment writes delete the
// affected users' entries, so ttl only bounds memory.
func WithUserCache(c Cache, ttl time.Duration) UserOption {
	return func(u *User) {
		if c != nil {
			u.cache = c
		}
		u.cacheTTL = ttl
	}
}

func NewUserUsecase(users user.Repository, logger zerolog.Logger, opts ...UserOption) *User {
	u := &User{
		svc:    ucuser.NewService(users),
		cache:  noopCache{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *User) GetMe(ctx context.Context, userID uuid.UUID) (user.User, error) {
	return u.svc.GetMe(ctx, userID)
}

func (u *User) UpdateMe(ctx context.Context, userID uuid.UUID, in ucuser.UpdateMeInput) (user.User, error) {
	return u.svc.UpdateMe(ctx, userID, in)
}

func (u *User) Summary(ctx context.Context, userID uuid.UUID) (ucuser.Summary, error) {
	key := SummaryCacheKey(userID)

	var cached ucuser.Summary
	hit, err := u.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		u.logger.Warn().Err(err).Str("key", key).Msg("summary cache read failed")
	}
	if hit {
		return cached, nil
	}

	s, err := u.svc.Summary(ctx, userID)
	if err != nil {
		return ucuser.Summary{}, err
	}
	if err := u.cache.SetJSON(ctx, key, s, u.cacheTTL); err != nil {
		u.logger.Warn().Err(err).Str("key", key).Msg("summary cache write failed")
	}
	return s, nil
}
