package offer

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindLoan       Kind = "loan"
	KindInvestment Kind = "investment"
)

func (k Kind) Valid() bool {
	return k == KindLoan || k == KindInvestment
}

type Status string

const (
	StatusOpen      Status = "open"
	StatusAccepted  Status = "accepted"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

const (
	MaxAmountCents  int64   = 1_000_000_000
	MaxInterestRate float64 = 100
	MaxTermMonths   int     = 360
)

var (
	ErrNotFound = errors.New("offer not found")
	ErrInvalid  = errors.New("invalid offer")
)

type Offer struct {
	ID             uuid.UUID
	CreatorID      uuid.UUID
	Kind           Kind
	AmountCents    int64
	InterestRate   float64
	TermMonths     int
	Description    string
	Status         Status
	AcceptorID     *uuid.UUID
	AcceptedAt     *time.Time
	RemainingCents int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks the fields a creator controls.
func (o Offer) Validate() error {
	if !o.Kind.Valid() {
		return ErrInvalid
	}
	if o.AmountCents <= 0 || o.AmountCents > MaxAmountCents {
		return ErrInvalid
	}
	if math.IsNaN(o.InterestRate) || o.InterestRate < 0 || o.InterestRate > MaxInterestRate {
		return ErrInvalid
	}
	if o.TermMonths < 1 || o.TermMonths > MaxTermMonths {
		return ErrInvalid
	}
	return nil
}

// Lender is the party that provides the money: the creator of a loan, or
// the acceptor of an investment request.
func (o Offer) Lender() (uuid.UUID, bool) {
	if o.Kind == KindLoan {
		return o.CreatorID, true
	}
	if o.AcceptorID == nil {
		return uuid.Nil, false
	}
	return *o.AcceptorID, true
}

// Borrower is the party that repays.
func (o Offer) Borrower() (uuid.UUID, bool) {
	if o.Kind == KindInvestment {
		return o.CreatorID, true
	}
	if o.AcceptorID == nil {
		return uuid.Nil, false
	}
	return *o.AcceptorID, true
}

func (o Offer) IsParticipant(userID uuid.UUID) bool {
	if userID == uuid.Nil {
		return false
	}
	if o.CreatorID == userID {
		return true
	}
	return o.AcceptorID != nil && *o.AcceptorID == userID
}

// TotalDueCents is principal plus simple interest over the whole term.
func (o Offer) TotalDueCents() int64 {
	interest := math.Round(float64(o.AmountCents) * o.InterestRate / 100)
	return o.AmountCents + int64(interest)
}

// DueAt is when the borrower is expected to have repaid in full.
func (o Offer) DueAt() (time.Time, bool) {
	if o.AcceptedAt == nil {
		return time.Time{}, false
	}
	return o.AcceptedAt.AddDate(0, o.TermMonths, 0), true
}

func (o Offer) IsOverdue(now time.Time) bool {
	if o.Status != StatusAccepted || o.RemainingCents <= 0 {
		return false
	}
	due, ok := o.DueAt()
	if !ok {
		return false
	}
	return now.After(due)
}
