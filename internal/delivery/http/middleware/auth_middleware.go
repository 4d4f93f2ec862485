package middleware

import (
	"errors"
	"strings"

	"lendmark/internal/pkg/jwt"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const (
	CtxUserIDKey = "user_id"
	CtxEmailKey  = "email"
)

const bearerRealm = "lendmark"

type AuthMiddleware struct {
	jwt jwt.Service
}

func NewAuthMiddleware(jwtSvc jwt.Service) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwtSvc}
}

// Middleware admits requests carrying a valid access token. Rejections set
// a WWW-Authenticate challenge as described in RFC 6750.
func (m *AuthMiddleware) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, ok := BearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return challenge(c, "", "Unauthorized", nil)
		}

		claims, err := m.Authenticate(token)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return challenge(c, "invalid_token", "Token expired", err)
		case err != nil:
			return challenge(c, "invalid_token", "Invalid token", err)
		}

		c.Locals(CtxUserIDKey, claims.UserID)
		c.Locals(CtxEmailKey, claims.Email)
		return c.Next()
	}
}

// Authenticate accepts access tokens only. The websocket handshake uses it
// as well.
func (m *AuthMiddleware) Authenticate(token string) (jwt.Claims, error) {
	return m.jwt.ParseAccess(token)
}

func challenge(c fiber.Ctx, code, msg string, cause error) error {
	v := `Bearer realm="` + bearerRealm + `"`
	if code != "" {
		v += `, error="` + code + `", error_description="` + strings.ToLower(msg) + `"`
	}
	c.Set(fiber.HeaderWWWAuthenticate, v)
	return NewAppError(fiber.StatusUnauthorized, msg, nil, cause)
}

func UserID(c fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(CtxUserIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

func Email(c fiber.Ctx) string {
	email, _ := c.Locals(CtxEmailKey).(string)
	return email
}

// BearerToken extracts the credentials from an "Authorization: Bearer"
// header value. The scheme is case-insensitive.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
