package ws

import (
	"net/http"
	"net/url"
	"strings"

	"lendmark/internal/pkg/jwt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Authenticator resolves an access token to its claims.
type Authenticator interface {
	Authenticate(token string) (jwt.Claims, error)
}

type Handler struct {
	hub      *Hub
	auth     Authenticator
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

type HandlerOption func(*Handler)

// WithAllowedOrigins restricts the handshake to the given origins, compared
// by scheme and host. An empty list admits any origin.
func WithAllowedOrigins(origins []string) HandlerOption {
	allowed := map[string]bool{}
	for _, o := range origins {
		if key, ok := originKey(o); ok {
			allowed[key] = true
		}
	}
	return func(h *Handler) {
		if len(allowed) == 0 {
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			key, ok := originKey(r.Header.Get("Origin"))
			return ok && allowed[key]
		}
	}
}

func NewHandler(hub *Hub, auth Authenticator, logger zerolog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		hub:    hub,
		auth:   auth,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleNotificationsWS reads the access token from ?token= since browsers
// cannot set headers on a websocket handshake. Other clients may send a
// bearer Authorization header instead.
func (h *Handler) HandleNotificationsWS(c fiber.Ctx) error {
	if h == nil || h.hub == nil || h.auth == nil {
		return fiber.ErrServiceUnavailable
	}

	token := handshakeToken(c)
	if token == "" {
		return fiber.ErrUnauthorized
	}
	claims, err := h.auth.Authenticate(token)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	upgrade := adaptor.HTTPHandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn().Err(err).Str("origin", r.Header.Get("Origin")).Msg("ws upgrade failed")
			return
		}

		client := NewClient(h.hub, conn, claims.UserID)
		h.hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	})
	return upgrade(c)
}

func handshakeToken(c fiber.Ctx) string {
	if tok := strings.TrimSpace(c.Query("token")); tok != "" {
		return tok
	}
	scheme, tok, ok := strings.Cut(strings.TrimSpace(c.Get(fiber.HeaderAuthorization)), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

func originKey(origin string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}
