package v1

import (
	"lendmark/internal/delivery/http/handler"

	"github.com/gofiber/fiber/v3"
)

// Handlers bundles everything mounted under /api/v1.
type Handlers struct {
	Auth          *handler.AuthHandler
	User          *handler.UserHandler
	Offer         *handler.OfferHandler
	Payment       *handler.PaymentHandler
	Notification  *handler.NotificationHandler
	RequireAuth   fiber.Handler
	AuthRateLimit fiber.Handler
}

func Register(r fiber.Router, h Handlers) {
	if r == nil {
		return
	}

	RegisterAuth(r, h)
	RegisterUsers(r.Group("/users", guard(h.RequireAuth)), h.User)
	RegisterOffers(r.Group("/offers", guard(h.RequireAuth)), h.Offer, h.Payment)
	RegisterPayments(r.Group("/payments", guard(h.RequireAuth)), h.Payment)
	RegisterNotifications(r.Group("/notifications", guard(h.RequireAuth)), h.Notification)
}

func RegisterAuth(r fiber.Router, h Handlers) {
	if h.Auth == nil {
		return
	}
	if h.AuthRateLimit != nil {
		h.Auth.RegisterRoutes(r.Group("/auth", h.AuthRateLimit))
		return
	}
	h.Auth.RegisterRoutes(r.Group("/auth"))
}

// guard falls back to rejecting every request when no auth middleware is
// configured, so protected groups can never be mounted open.
func guard(mw fiber.Handler) fiber.Handler {
	if mw != nil {
		return mw
	}
	return func(c fiber.Ctx) error {
		return fiber.ErrUnauthorized
	}
}
