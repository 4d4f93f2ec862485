package v1

import (
	"lendmark/internal/delivery/http/handler"

	"github.com/gofiber/fiber/v3"
)

func RegisterOffers(r fiber.Router, offerHandler *handler.OfferHandler, paymentHandler *handler.PaymentHandler) {
	if r == nil {
		return
	}
	if offerHandler != nil {
		offerHandler.RegisterRoutes(r)
	}
	if paymentHandler != nil {
		paymentHandler.RegisterOfferRoutes(r)
	}
}

func RegisterPayments(r fiber.Router, paymentHandler *handler.PaymentHandler) {
	if r == nil || paymentHandler == nil {
		return
	}
	paymentHandler.RegisterRoutes(r)
}

func RegisterNotifications(r fiber.Router, notificationHandler *handler.NotificationHandler) {
	if r == nil || notificationHandler == nil {
		return
	}
	notificationHandler.RegisterRoutes(r)
}

func RegisterUsers(r fiber.Router, userHandler *handler.UserHandler) {
	if r == nil || userHandler == nil {
		return
	}
	userHandler.RegisterRoutes(r)
}
