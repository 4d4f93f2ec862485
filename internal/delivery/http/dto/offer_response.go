package dto

import (
	"time"

	"lendmark/internal/domain/offer"

	"github.com/google/uuid"
)

type OfferResponse struct {
	ID             uuid.UUID  `json:"id"`
	CreatorID      uuid.UUID  `json:"creator_id"`
	Kind           string     `json:"kind"`
	AmountCents    int64      `json:"amount_cents"`
	InterestRate   float64    `json:"interest_rate"`
	TermMonths     int        `json:"term_months"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	AcceptorID     *uuid.UUID `json:"acceptor_id"`
	AcceptedAt     *time.Time `json:"accepted_at"`
	DueAt          *time.Time `json:"due_at"`
	TotalDueCents  int64      `json:"total_due_cents"`
	RemainingCents int64      `json:"remaining_cents"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func NewOfferResponse(o offer.Offer) OfferResponse {
	res := OfferResponse{
		ID:             o.ID,
		CreatorID:      o.CreatorID,
		Kind:           string(o.Kind),
		AmountCents:    o.AmountCents,
		InterestRate:   o.InterestRate,
		TermMonths:     o.TermMonths,
		Description:    o.Description,
		Status:         string(o.Status),
		AcceptorID:     o.AcceptorID,
		AcceptedAt:     o.AcceptedAt,
		TotalDueCents:  o.TotalDueCents(),
		RemainingCents: o.RemainingCents,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	if due, ok := o.DueAt(); ok {
		res.DueAt = &due
	}
	return res
}

func NewOfferListResponse(items []offer.Offer) []OfferResponse {
	out := make([]OfferResponse, 0, len(items))
	for _, o := range items {
		out = append(out, NewOfferResponse(o))
	}
	return out
}

type RecommendedOfferResponse struct {
	OfferResponse
	Score int `json:"score"`
}
