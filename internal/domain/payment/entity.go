package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("payment not found")

type Payment struct {
	ID                  uuid.UUID
	OfferID             uuid.UUID
	PayerID             uuid.UUID
	AmountCents         int64
	RemainingAfterCents int64
	CreatedAt           time.Time
}
