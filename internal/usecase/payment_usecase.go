package usecase

import (
	"context"
	"errors"
	"time"

	"lendmark/internal/database"
	"lendmark/internal/domain/notification"
	"lendmark/internal/domain/offer"
	"lendmark/internal/domain/payment"
	"lendmark/internal/metrics"
	"lendmark/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type PaymentResult struct {
	Payment payment.Payment
	Offer   offer.Offer
}

type PaymentUsecase interface {
	Pay(ctx context.Context, payerID, offerID uuid.UUID, amountCents int64) (PaymentResult, error)
	ListForOffer(ctx context.Context, userID, offerID uuid.UUID) ([]payment.Payment, error)
	ListMine(ctx context.Context, payerID uuid.UUID, limit, offset int) ([]payment.Payment, error)
}

type Payments struct {
	db            database.DB
	offers        repository.OfferRepository
	payments      repository.PaymentRepository
	notifications repository.NotificationRepository
	cache         Cache
	publisher     NotificationPublisher
	logger        zerolog.Logger
	now           func() time.Time
}

type PaymentOption func(*Payments)

func WithPaymentPublisher(p NotificationPublisher) PaymentOption {
	return func(u *Payments) {
		if p != nil {
			u.publisher = p
		}
	}
}

func WithPaymentCache(c Cache) PaymentOption {
	return func(u *Payments) {
		if c != nil {
			u.cache = c
		}
	}
}

func WithPaymentClock(now func() time.Time) PaymentOption {
	return func(u *Payments) {
		if now != nil {
			u.now = now
		}
	}
}

func NewPaymentUsecase(
	db database.DB,
	offers repository.OfferRepository,
	payments repository.PaymentRepository,
	notifications repository.NotificationRepository,
	logger zerolog.Logger,
	opts ...PaymentOption,
) *Payments {
	u := &Payments{
		db:            db,
		offers:        offers,
		payments:      payments,
		notifications: notifications,
		cache:         noopCache{},
		publisher:     noopPublisher{},
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Pay records a repayment against an accepted offer. The balance check and
// decrement happen under the offer's row lock, so two concurrent payments
// can never drive the balance below zero.
func (u *Payments) Pay(ctx context.Context, payerID, offerID uuid.UUID, amountCents int64) (PaymentResult, error) {
	if amountCents <= 0 {
		return PaymentResult{}, ErrInvalidInput
	}

	var (
		res   PaymentResult
		notes []notification.Notification
	)
	err := database.WithTx(ctx, u.db, func(tx database.Tx) error {
		o, err := u.offers.GetForUpdateTx(ctx, tx, offerID)
		if err != nil {
			return err
		}
		if o.Status != offer.StatusAccepted {
			return ErrOfferNotActive
		}
		borrower, _ := o.Borrower()
		if borrower != payerID {
			return ErrNotBorrower
		}
		if amountCents > o.RemainingCents {
			return ErrOverpayment
		}

		now := u.now().UTC()
		remaining := o.RemainingCents - amountCents
		status := offer.StatusAccepted
		if remaining == 0 {
			status = offer.StatusCompleted
		}

		p, err := u.payments.CreateTx(ctx, tx, payment.Payment{
			ID:                  uuid.New(),
			OfferID:             o.ID,
			PayerID:             payerID,
			AmountCents:         amountCents,
			RemainingAfterCents: remaining,
			CreatedAt:           now,
		})
		if err != nil {
			return err
		}
		if err := u.offers.UpdateBalanceTx(ctx, tx, o.ID, remaining, status); err != nil {
			return err
		}
		o.RemainingCents = remaining
		o.Status = status
		o.UpdatedAt = now

		lender, _ := o.Lender()
		notes = append(notes, notification.PaymentReceived(lender, o.ID, amountCents, remaining, now))
		if status == offer.StatusCompleted {
			notes = append(notes,
				notification.OfferCompleted(lender, o.ID, now),
				notification.OfferCompleted(borrower, o.ID, now),
			)
		}
		for _, n := range notes {
			if err := u.notifications.CreateTx(ctx, tx, n); err != nil {
				return err
			}
		}

		res = PaymentResult{Payment: p, Offer: o}
		return nil
	})
	if err != nil {
		return PaymentResult{}, mapLedgerTxError(u.logger, err, "record payment failed", offerID)
	}

	metrics.PaymentRecorded(amountCents)
	if res.Offer.Status == offer.StatusCompleted {
		metrics.OfferTransitioned(string(offer.StatusCompleted))
		invalidateRecommendations(ctx, u.cache, u.logger)
	}
	for _, n := range notes {
		metrics.NotificationCreated(string(n.Kind))
		u.publisher.Publish(n)
	}
	invalidateSummaries(ctx, u.cache, u.logger, participants(res.Offer)...)

	u.logger.Info().
		Str("offer_id", offerID.String()).
		Str("payer_id", payerID.String()).
		Int64("amount_cents", amountCents).
		Int64("remaining_cents", res.Offer.RemainingCents).
		Msg("payment recorded")
	return res, nil
}

func (u *Payments) ListForOffer(ctx context.Context, userID, offerID uuid.UUID) ([]payment.Payment, error) {
	o, err := u.offers.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, offer.ErrNotFound) {
			return nil, ErrOfferNotFound
		}
		u.logger.Error().Err(err).Str("offer_id", offerID.String()).Msg("get offer failed")
		return nil, ErrInternal
	}
	if !o.IsParticipant(userID) {
		return nil, ErrForbidden
	}

	items, err := u.payments.ListByOffer(ctx, offerID)
	if err != nil {
		u.logger.Error().Err(err).Str("offer_id", offerID.String()).Msg("list offer payments failed")
		return nil, ErrInternal
	}
	return items, nil
}

func (u *Payments) ListMine(ctx context.Context, payerID uuid.UUID, limit, offset int) ([]payment.Payment, error) {
	limit, offset = normalizePage(limit, offset, defaultOfferPageSize, maxOfferPageSize)
	items, err := u.payments.ListByPayer(ctx, payerID, limit, offset)
	if err != nil {
		u.logger.Error().Err(err).Str("user_id", payerID.String()).Msg("list my payments failed")
		return nil, ErrInternal
	}
	return items, nil
}
