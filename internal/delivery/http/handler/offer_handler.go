package handler

import (
	"errors"

	"lendmark/internal/delivery/http/dto"
	"lendmark/internal/delivery/http/middleware"
	"lendmark/internal/pkg/response"
	"lendmark/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

type OfferHandler struct {
	uc usecase.OfferUsecase
}

type createOfferRequest struct {
	Kind         string  `json:"kind"`
	AmountCents  int64   `json:"amount_cents"`
	InterestRate float64 `json:"interest_rate"`
	TermMonths   int     `json:"term_months"`
	Description  string  `json:"description"`
}

func NewOfferHandler(uc usecase.OfferUsecase) *OfferHandler {
	return &OfferHandler{uc: uc}
}

// RegisterRoutes mounts the offer routes. Static segments are registered
// before /:id so they are not captured as ids.
func (h *OfferHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	r.Post("/", h.Create)
	r.Get("/", h.ListOpen)
	r.Get("/mine", h.ListMine)
	r.Get("/recommended", h.Recommended)
	r.Get("/:id", h.Get)
	r.Delete("/:id", h.Cancel)
	r.Post("/:id/accept", h.Accept)
}

func (h *OfferHandler) Create(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req createOfferRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Invalid request payload", nil, err)
	}

	o, err := h.uc.Create(c.Context(), userID, usecase.CreateOfferInput{
		Kind:         req.Kind,
		AmountCents:  req.AmountCents,
		InterestRate: req.InterestRate,
		TermMonths:   req.TermMonths,
		Description:  req.Description,
	})
	if err != nil {
		return mapOfferUsecaseError(err)
	}
	return response.Created(c, dto.NewOfferResponse(o))
}

func (h *OfferHandler) ListOpen(c fiber.Ctx) error {
	limit, offset, err := parsePage(c, 20, 50)
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}
	minAmount, err := parseQueryInt64Strict(c, "min_amount")
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}
	maxAmount, err := parseQueryInt64Strict(c, "max_amount")
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	items, err := h.uc.ListOpen(c.Context(), usecase.ListOffersParams{
		Kind:           c.Query("kind"),
		MinAmountCents: minAmount,
		MaxAmountCents: maxAmount,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		return mapOfferUsecaseError(err)
	}
	return response.Page(c, dto.NewOfferListResponse(items), limit, offset, len(items))
}

func (h *OfferHandler) ListMine(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	limit, offset, err := parsePage(c, 20, 50)
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	items, err := h.uc.ListMine(c.Context(), userID, c.Query("role"), limit, offset)
	if err != nil {
		return mapOfferUsecaseError(err)
	}
	return response.Page(c, dto.NewOfferListResponse(items), limit, offset, len(items))
}

func (h *OfferHandler) Recommended(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	limit, err := parseQueryIntStrict(c, "limit", 10)
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}
	maxAmount, err := parseQueryInt64Strict(c, "max_amount")
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	recs, err := h.uc.Recommended(c.Context(), userID, usecase.RecommendParams{
		Kind:           c.Query("kind"),
		MaxAmountCents: maxAmount,
		Limit:          limit,
	})
	if err != nil {
		return mapOfferUsecaseError(err)
	}

	out := make([]dto.RecommendedOfferResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, dto.RecommendedOfferResponse{OfferResponse: dto.NewOfferResponse(r.Offer), Score: r.Score})
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, out)
}

func (h *OfferHandler) Get(c fiber.Ctx) error {
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	o, err := h.uc.Get(c.Context(), id)
	if err != nil {
		return mapOfferUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewOfferResponse(o))
}

func (h *OfferHandler) Cancel(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	o, err := h.uc.Cancel(c.Context(), userID, id)
	if err != nil {
		return mapOfferUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewOfferResponse(o))
}

func (h *OfferHandler) Accept(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	o, err := h.uc.Accept(c.Context(), userID, id)
	if err != nil {
		return mapOfferUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewOfferResponse(o))
}

// mapOfferUsecaseError is shared by the offer and payment handlers since both
// operate on the offer state machine.
func mapOfferUsecaseError(err error) error {
	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		return middleware.NewAppError(fiber.StatusBadRequest, "Invalid request payload", nil, err)
	case errors.Is(err, usecase.ErrUnauthorized):
		return middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, err)
	case errors.Is(err, usecase.ErrOfferNotFound):
		return middleware.NewAppError(fiber.StatusNotFound, "Offer not found", nil, err)
	case errors.Is(err, usecase.ErrCannotAcceptOwn):
		return middleware.NewAppError(fiber.StatusForbidden, "Cannot accept your own offer", nil, err)
	case errors.Is(err, usecase.ErrNotOfferCreator):
		return middleware.NewAppError(fiber.StatusForbidden, "Only the creator can cancel this offer", nil, err)
	case errors.Is(err, usecase.ErrNotBorrower):
		return middleware.NewAppError(fiber.StatusForbidden, "Only the borrower can pay this offer", nil, err)
	case errors.Is(err, usecase.ErrForbidden):
		return middleware.NewAppError(fiber.StatusForbidden, "Forbidden", nil, err)
	case errors.Is(err, usecase.ErrOfferNotOpen):
		return middleware.NewAppError(fiber.StatusConflict, "Offer is not open", nil, err)
	case errors.Is(err, usecase.ErrOfferNotActive):
		return middleware.NewAppError(fiber.StatusConflict, "Offer is not accepted", nil, err)
	case errors.Is(err, usecase.ErrOverpayment):
		return middleware.NewAppError(fiber.StatusUnprocessableEntity, "Payment exceeds remaining balance", nil, err)
	default:
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
}
