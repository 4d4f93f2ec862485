package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LedgerSummary aggregates a user's position across accepted and completed
// offers. Amounts are in cents.
type LedgerSummary struct {
	TotalLentCents     int64
	TotalBorrowedCents int64
	OwedToMeCents      int64
	IOweCents          int64
	OffersByStatus     map[string]int
	PaymentsMadeCount  int
	PaymentsMadeCents  int64
}
