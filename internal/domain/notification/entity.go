package notification

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindOfferAccepted   Kind = "offer_accepted"
	KindPaymentReceived Kind = "payment_received"
	KindOfferCompleted  Kind = "offer_completed"
	KindPaymentOverdue  Kind = "payment_overdue"
)

var ErrNotFound = errors.New("notification not found")

type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Kind      Kind
	Title     string
	Body      string
	OfferID   *uuid.UUID
	IsRead    bool
	CreatedAt time.Time
}

func newForOffer(userID, offerID uuid.UUID, kind Kind, title, body string, now time.Time) Notification {
	oid := offerID
	return Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		OfferID:   &oid,
		CreatedAt: now.UTC(),
	}
}

func OfferAccepted(creatorID, offerID uuid.UUID, totalDueCents int64, now time.Time) Notification {
	return newForOffer(creatorID, offerID, KindOfferAccepted,
		"Your offer was accepted",
		fmt.Sprintf("Offer %s was accepted. Total due: %s.", shortID(offerID), FormatCents(totalDueCents)),
		now)
}

func PaymentReceived(lenderID, offerID uuid.UUID, amountCents, remainingCents int64, now time.Time) Notification {
	return newForOffer(lenderID, offerID, KindPaymentReceived,
		"Payment received",
		fmt.Sprintf("Received %s on offer %s. Remaining: %s.", FormatCents(amountCents), shortID(offerID), FormatCents(remainingCents)),
		now)
}

func OfferCompleted(userID, offerID uuid.UUID, now time.Time) Notification {
	return newForOffer(userID, offerID, KindOfferCompleted,
		"Offer fully repaid",
		fmt.Sprintf("Offer %s has been repaid in full.", shortID(offerID)),
		now)
}

func PaymentOverdue(borrowerID, offerID uuid.UUID, remainingCents int64, now time.Time) Notification {
	return newForOffer(borrowerID, offerID, KindPaymentOverdue,
		"Payment overdue",
		fmt.Sprintf("Offer %s is past its term with %s outstanding.", shortID(offerID), FormatCents(remainingCents)),
		now)
}

// FormatCents renders minor units as a plain decimal amount.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
