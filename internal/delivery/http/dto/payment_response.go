package dto

import (
	"time"

	"lendmark/internal/domain/payment"

	"github.com/google/uuid"
)

type PaymentResponse struct {
	ID                  uuid.UUID `json:"id"`
	OfferID             uuid.UUID `json:"offer_id"`
	PayerID             uuid.UUID `json:"payer_id"`
	AmountCents         int64     `json:"amount_cents"`
	RemainingAfterCents int64     `json:"remaining_after_cents"`
	CreatedAt           time.Time `json:"created_at"`
}

func NewPaymentResponse(p payment.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                  p.ID,
		OfferID:             p.OfferID,
		PayerID:             p.PayerID,
		AmountCents:         p.AmountCents,
		RemainingAfterCents: p.RemainingAfterCents,
		CreatedAt:           p.CreatedAt,
	}
}

func NewPaymentListResponse(items []payment.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(items))
	for _, p := range items {
		out = append(out, NewPaymentResponse(p))
	}
	return out
}

type PayResponse struct {
	Payment PaymentResponse `json:"payment"`
	Offer   OfferResponse   `json:"offer"`
}
