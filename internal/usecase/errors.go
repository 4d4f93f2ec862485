package usecase

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")

	ErrOfferNotFound        = errors.New("offer not found")
	ErrOfferNotOpen         = errors.New("offer is not open")
	ErrOfferNotActive       = errors.New("offer is not accepted")
	ErrCannotAcceptOwn      = errors.New("cannot accept own offer")
	ErrNotOfferCreator      = errors.New("only the creator can cancel an offer")
	ErrNotBorrower          = errors.New("only the borrower can pay")
	ErrOverpayment          = errors.New("payment exceeds remaining balance")
	ErrNotificationNotFound = errors.New("notification not found")
)
