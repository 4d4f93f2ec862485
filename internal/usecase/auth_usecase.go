package usecase

import (
	"context"
	"errors"

	"lendmark/internal/domain/user"
	"lendmark/internal/pkg/jwt"
	ucauth "lendmark/internal/usecase/auth"

	"github.com/rs/zerolog"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrRefreshTokenRevoked = errors.New("refresh token revoked")
	ErrInternal            = errors.New("internal error")
)

// Session is a signed-in user with a fresh token pair.
type Session struct {
	User   user.User
	Tokens jwt.Pair
}

type AuthUsecase interface {
	Register(ctx context.Context, in ucauth.RegisterInput) (Session, error)
	Login(ctx context.Context, in ucauth.LoginInput) (Session, error)
	// Refresh rotates a refresh token: the presented token is consumed and a
	// new pair is issued. Presenting a consumed token fails.
	Refresh(ctx context.Context, refreshToken string) (jwt.Pair, error)
	Logout(ctx context.Context, refreshToken string) error
}

type Auth struct {
	authSvc  *ucauth.Service
	users    user.Repository
	jwt      jwt.Service
	sessions SessionStore
	logger   zerolog.Logger
}

type AuthOption func(*Auth)

func WithSessionStore(s SessionStore) AuthOption {
	return func(a *Auth) {
		if s != nil {
			a.sessions = s
		}
	}
}

func NewAuthUsecase(authSvc *ucauth.Service, users user.Repository, jwtSvc jwt.Service, logger zerolog.Logger, opts ...AuthOption) *Auth {
	a := &Auth{
		authSvc:  authSvc,
		users:    users,
		jwt:      jwtSvc,
		sessions: noopSessions{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (u *Auth) Register(ctx context.Context, in ucauth.RegisterInput) (Session, error) {
	usr, err := u.authSvc.Register(ctx, in)
	if err != nil {
		return Session{}, err
	}
	return u.open(ctx, usr)
}

func (u *Auth) Login(ctx context.Context, in ucauth.LoginInput) (Session, error) {
	usr, err := u.authSvc.Login(ctx, in)
	if err != nil {
		return Session{}, err
	}
	return u.open(ctx, usr)
}

func (u *Auth) Refresh(ctx context.Context, refreshToken string) (jwt.Pair, error) {
	claims, err := u.parseRefresh(refreshToken)
	if err != nil {
		return jwt.Pair{}, err
	}

	if u.sessions.Enabled() {
		ok, err := u.sessions.Consume(ctx, claims.ID, claims.UserID)
		if err != nil {
			u.logger.Error().Err(err).Str("user_id", claims.UserID.String()).Msg("consume refresh session failed")
			return jwt.Pair{}, ErrInternal
		}
		if !ok {
			u.logger.Warn().Str("user_id", claims.UserID.String()).Msg("refresh token reuse rejected")
			return jwt.Pair{}, ErrRefreshTokenRevoked
		}
	}

	usr, err := u.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return jwt.Pair{}, ErrUnauthorized
		}
		return jwt.Pair{}, ErrInternal
	}

	s, err := u.open(ctx, usr)
	if err != nil {
		return jwt.Pair{}, err
	}
	return s.Tokens, nil
}

// Logout revokes the refresh token. Expired tokens are already unusable, so
// they log out successfully.
func (u *Auth) Logout(ctx context.Context, refreshToken string) error {
	claims, err := u.parseRefresh(refreshToken)
	if errors.Is(err, ErrRefreshTokenExpired) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := u.sessions.Revoke(ctx, claims.ID); err != nil {
		u.logger.Error().Err(err).Str("user_id", claims.UserID.String()).Msg("revoke refresh session failed")
		return ErrInternal
	}
	return nil
}

func (u *Auth) parseRefresh(token string) (jwt.Claims, error) {
	if token == "" {
		return jwt.Claims{}, ErrUnauthorized
	}
	claims, err := u.jwt.ParseRefresh(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return jwt.Claims{}, ErrRefreshTokenExpired
		}
		return jwt.Claims{}, ErrInvalidRefreshToken
	}
	return claims, nil
}

func (u *Auth) open(ctx context.Context, usr user.User) (Session, error) {
	pair, err := u.jwt.IssuePair(usr.ID, usr.Email)
	if err != nil {
		return Session{}, ErrInternal
	}
	if u.sessions.Enabled() {
		if err := u.sessions.Remember(ctx, pair.RefreshID, usr.ID, pair.RefreshExpiresAt); err != nil {
			u.logger.Error().Err(err).Str("user_id", usr.ID.String()).Msg("store refresh session failed")
			return Session{}, ErrInternal
		}
	}
	return Session{User: usr, Tokens: pair}, nil
}
