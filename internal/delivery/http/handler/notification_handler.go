package handler

import (
	"errors"
	"strconv"

	"lendmark/internal/delivery/http/dto"
	"lendmark/internal/delivery/http/middleware"
	"lendmark/internal/pkg/response"
	"lendmark/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type NotificationHandler struct {
	uc usecase.NotificationUsecase
}

func NewNotificationHandler(uc usecase.NotificationUsecase) *NotificationHandler {
	return &NotificationHandler{uc: uc}
}

func (h *NotificationHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	r.Get("/", h.List)
	r.Get("/unread-count", h.UnreadCount)
	r.Post("/read-all", h.MarkAllRead)
	r.Patch("/:id/read", h.MarkRead)
}

func (h *NotificationHandler) List(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	limit, offset, err := parsePage(c, 20, 50)
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	unreadOnly := false
	if raw := c.Query("unread"); raw != "" {
		unreadOnly, err = strconv.ParseBool(raw)
		if err != nil {
			return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
		}
	}

	items, err := h.uc.List(c.Context(), userID, unreadOnly, limit, offset)
	if err != nil {
		return mapNotificationUsecaseError(err)
	}
	return response.Page(c, dto.NewNotificationListResponse(items), limit, offset, len(items))
}

func (h *NotificationHandler) UnreadCount(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	n, err := h.uc.UnreadCount(c.Context(), userID)
	if err != nil {
		return mapNotificationUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, map[string]int{"unread": n})
}

func (h *NotificationHandler) MarkRead(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.uc.MarkRead(c.Context(), userID, id); err != nil {
		return mapNotificationUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, nil)
}

func (h *NotificationHandler) MarkAllRead(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	n, err := h.uc.MarkAllRead(c.Context(), userID)
	if err != nil {
		return mapNotificationUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, map[string]int64{"updated": n})
}

func mapNotificationUsecaseError(err error) error {
	if errors.Is(err, usecase.ErrNotificationNotFound) {
		return middleware.NewAppError(fiber.StatusNotFound, "Notification not found", nil, err)
	}
	return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
}
