package handler

import (
	"lendmark/internal/delivery/http/dto"
	"lendmark/internal/delivery/http/middleware"
	"lendmark/internal/pkg/response"
	"lendmark/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type PaymentHandler struct {
	uc usecase.PaymentUsecase
}

type payRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

func NewPaymentHandler(uc usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

// RegisterOfferRoutes mounts the per-offer payment routes on the offers group.
func (h *PaymentHandler) RegisterOfferRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Post("/:id/payments", h.Pay)
	r.Get("/:id/payments", h.ListForOffer)
}

func (h *PaymentHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/mine", h.ListMine)
}

func (h *PaymentHandler) Pay(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	offerID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	var req payRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Invalid request payload", nil, err)
	}

	res, err := h.uc.Pay(c.Context(), userID, offerID, req.AmountCents)
	if err != nil {
		return mapOfferUsecaseError(err)
	}
	return response.Created(c, dto.PayResponse{
		Payment: dto.NewPaymentResponse(res.Payment),
		Offer:   dto.NewOfferResponse(res.Offer),
	})
}

func (h *PaymentHandler) ListForOffer(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	offerID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	items, err := h.uc.ListForOffer(c.Context(), userID, offerID)
	if err != nil {
		return mapOfferUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewPaymentListResponse(items))
}

func (h *PaymentHandler) ListMine(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	limit, offset, err := parsePage(c, 20, 50)
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	items, err := h.uc.ListMine(c.Context(), userID, limit, offset)
	if err != nil {
		return mapOfferUsecaseError(err)
	}
	return response.Page(c, dto.NewPaymentListResponse(items), limit, offset, len(items))
}
