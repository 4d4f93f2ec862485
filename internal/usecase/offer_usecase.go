package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"lendmark/internal/database"
	"lendmark/internal/domain/notification"
	"lendmark/internal/domain/offer"
	"lendmark/internal/metrics"
	"lendmark/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultOfferPageSize = 20
	maxOfferPageSize     = 50

	defaultRecommendLimit = 10
	maxRecommendLimit     = 50
	recommendBatch        = 200
)

type CreateOfferInput struct {
	Kind         string
	AmountCents  int64
	InterestRate float64
	TermMonths   int
	Description  string
}

type ListOffersParams struct {
	Kind           string
	MinAmountCents int64
	MaxAmountCents int64
	Limit          int
	Offset         int
}

type RecommendParams struct {
	Kind           string
	MaxAmountCents int64
	Limit          int
}

type RecommendedOffer struct {
	Offer offer.Offer `json:"offer"`
	Score int         `json:"score"`
}

type OfferUsecase interface {
	Create(ctx context.Context, creatorID uuid.UUID, in CreateOfferInput) (offer.Offer, error)
	Get(ctx context.Context, id uuid.UUID) (offer.Offer, error)
	ListOpen(ctx context.Context, params ListOffersParams) ([]offer.Offer, error)
	ListMine(ctx context.Context, userID uuid.UUID, role string, limit, offset int) ([]offer.Offer, error)
	Recommended(ctx context.Context, viewerID uuid.UUID, params RecommendParams) ([]RecommendedOffer, error)
	Cancel(ctx context.Context, userID, offerID uuid.UUID) (offer.Offer, error)
	Accept(ctx context.Context, userID, offerID uuid.UUID) (offer.Offer, error)
}

type Offers struct {
	db            database.DB
	offers        repository.OfferRepository
	notifications repository.NotificationRepository
	cache         Cache
	cacheTTL      time.Duration
	publisher     NotificationPublisher
	logger        zerolog.Logger
	now           func() time.Time
}

type OfferOption func(*Offers)

func WithOfferCache(c Cache, ttl time.Duration) OfferOption {
	return func(u *Offers) {
		if c != nil {
			u.cache = c
		}
		u.cacheTTL = ttl
	}
}

func WithOfferPublisher(p NotificationPublisher) OfferOption {
	return func(u *Offers) {
		if p != nil {
			u.publisher = p
		}
	}
}

func WithOfferClock(now func() time.Time) OfferOption {
	return func(u *Offers) {
		if now != nil {
			u.now = now
		}
	}
}

func NewOfferUsecase(
	db database.DB,
	offers repository.OfferRepository,
	notifications repository.NotificationRepository,
	logger zerolog.Logger,
	opts ...OfferOption,
) *Offers {
	u := &Offers{
		db:            db,
		offers:        offers,
		notifications: notifications,
		cache:         noopCache{},
		cacheTTL:      5 * time.Minute,
		publisher:     noopPublisher{},
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Offers) Create(ctx context.Context, creatorID uuid.UUID, in CreateOfferInput) (offer.Offer, error) {
	if creatorID == uuid.Nil {
		return offer.Offer{}, ErrUnauthorized
	}

	o := offer.Offer{
		ID:           uuid.New(),
		CreatorID:    creatorID,
		Kind:         offer.Kind(strings.ToLower(strings.TrimSpace(in.Kind))),
		AmountCents:  in.AmountCents,
		InterestRate: in.InterestRate,
		TermMonths:   in.TermMonths,
		Description:  strings.TrimSpace(in.Description),
	}
	if err := o.Validate(); err != nil {
		return offer.Offer{}, ErrInvalidInput
	}

	created, err := u.offers.Create(ctx, o)
	if err != nil {
		if errors.Is(err, offer.ErrInvalid) {
			return offer.Offer{}, ErrInvalidInput
		}
		u.logger.Error().Err(err).Msg("create offer failed")
		return offer.Offer{}, ErrInternal
	}

	metrics.OfferCreated(string(created.Kind))
	u.invalidateRecommendations(ctx)
	invalidateSummaries(ctx, u.cache, u.logger, created.CreatorID)
	return created, nil
}

func (u *Offers) Get(ctx context.Context, id uuid.UUID) (offer.Offer, error) {
	o, err := u.offers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, offer.ErrNotFound) {
			return offer.Offer{}, ErrOfferNotFound
		}
		u.logger.Error().Err(err).Str("offer_id", id.String()).Msg("get offer failed")
		return offer.Offer{}, ErrInternal
	}
	return o, nil
}

func (u *Offers) ListOpen(ctx context.Context, params ListOffersParams) ([]offer.Offer, error) {
	kind, err := parseKindFilter(params.Kind)
	if err != nil {
		return nil, err
	}
	if params.MinAmountCents < 0 || params.MaxAmountCents < 0 {
		return nil, ErrInvalidInput
	}
	if params.MaxAmountCents > 0 && params.MinAmountCents > params.MaxAmountCents {
		return nil, ErrInvalidInput
	}

	limit, offset := normalizePage(params.Limit, params.Offset, defaultOfferPageSize, maxOfferPageSize)
	items, err := u.offers.ListOpen(ctx, repository.OfferListFilter{
		Kind:           kind,
		MinAmountCents: params.MinAmountCents,
		MaxAmountCents: params.MaxAmountCents,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		u.logger.Error().Err(err).Msg("list open offers failed")
		return nil, ErrInternal
	}
	return items, nil
}

func (u *Offers) ListMine(ctx context.Context, userID uuid.UUID, role string, limit, offset int) ([]offer.Offer, error) {
	r := repository.OfferRole(strings.ToLower(strings.TrimSpace(role)))
	switch r {
	case "":
		r = repository.OfferRoleCreated
	case repository.OfferRoleCreated, repository.OfferRoleAccepted:
	default:
		return nil, ErrInvalidInput
	}

	limit, offset = normalizePage(limit, offset, defaultOfferPageSize, maxOfferPageSize)
	items, err := u.offers.ListByUser(ctx, userID, r, limit, offset)
	if err != nil {
		u.logger.Error().Err(err).Str("user_id", userID.String()).Msg("list my offers failed")
		return nil, ErrInternal
	}
	return items, nil
}

func (u *Offers) Recommended(ctx context.Context, viewerID uuid.UUID, params RecommendParams) ([]RecommendedOffer, error) {
	kind, err := parseKindFilter(params.Kind)
	if err != nil {
		return nil, err
	}
	if params.MaxAmountCents < 0 {
		return nil, ErrInvalidInput
	}
	params.Kind = string(kind)
	params.Limit, _ = normalizePage(params.Limit, 0, defaultRecommendLimit, maxRecommendLimit)

	generation, genErr := u.cache.Counter(ctx, recommendedGenerationKey)
	if genErr != nil {
		u.logger.Warn().Err(genErr).Msg("recommendation generation read failed")
	}
	key := RecommendedCacheKey(viewerID, generation, params)
	if genErr == nil {
		var cached []RecommendedOffer
		hit, err := u.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			u.logger.Warn().Err(err).Str("key", key).Msg("recommendation cache read failed")
		}
		metrics.CacheLookup(hit)
		if hit {
			return cached, nil
		}
	}

	ranked, err := u.rankOpenOffers(ctx, viewerID, offer.Preferences{
		Kind:           kind,
		MaxAmountCents: params.MaxAmountCents,
		Limit:          params.Limit,
	})
	if err != nil {
		u.logger.Error().Err(err).Msg("load recommendation candidates failed")
		return nil, ErrInternal
	}

	out := make([]RecommendedOffer, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, RecommendedOffer{Offer: r.Offer, Score: r.Score})
	}

	if genErr != nil {
		return out, nil
	}
	if err := u.cache.SetJSON(ctx, key, out, u.cacheTTL); err != nil {
		u.logger.Warn().Err(err).Str("key", key).Msg("recommendation cache write failed")
	}
	return out, nil
}

// rankOpenOffers walks every eligible open offer in pages and keeps the
// running top prefs.Limit, so memory stays bounded however many are open.
func (u *Offers) rankOpenOffers(ctx context.Context, viewerID uuid.UUID, prefs offer.Preferences) ([]offer.Recommendation, error) {
	now := u.now().UTC()
	var top []offer.Recommendation
	for offset := 0; ; offset += recommendBatch {
		batch, err := u.offers.ListOpen(ctx, repository.OfferListFilter{
			Kind:           prefs.Kind,
			MaxAmountCents: prefs.MaxAmountCents,
			ExcludeCreator: viewerID,
			Limit:          recommendBatch,
			Offset:         offset,
		})
		if err != nil {
			return nil, err
		}

		// Pages can overlap when offers are created mid-walk.
		seen := make(map[uuid.UUID]struct{}, len(top))
		pool := make([]offer.Offer, 0, len(top)+len(batch))
		for _, r := range top {
			seen[r.Offer.ID] = struct{}{}
			pool = append(pool, r.Offer)
		}
		for _, o := range batch {
			if _, dup := seen[o.ID]; !dup {
				pool = append(pool, o)
			}
		}
		top = offer.Recommend(viewerID, pool, prefs, now)

		if len(batch) < recommendBatch {
			return top, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

func (u *Offers) Cancel(ctx context.Context, userID, offerID uuid.UUID) (offer.Offer, error) {
	var cancelled offer.Offer
	err := database.WithTx(ctx, u.db, func(tx database.Tx) error {
		o, err := u.offers.GetForUpdateTx(ctx, tx, offerID)
		if err != nil {
			return err
		}
		if o.CreatorID != userID {
			return ErrNotOfferCreator
		}
		if o.Status != offer.StatusOpen {
			return ErrOfferNotOpen
		}
		if err := u.offers.UpdateStatusTx(ctx, tx, o.ID, offer.StatusCancelled); err != nil {
			return err
		}
		o.Status = offer.StatusCancelled
		o.UpdatedAt = u.now().UTC()
		cancelled = o
		return nil
	})
	if err != nil {
		return offer.Offer{}, mapLedgerTxError(u.logger, err, "cancel offer failed", offerID)
	}

	metrics.OfferTransitioned(string(offer.StatusCancelled))
	u.invalidateRecommendations(ctx)
	invalidateSummaries(ctx, u.cache, u.logger, cancelled.CreatorID)
	return cancelled, nil
}

// Accept locks the offer row so that of several concurrent accepts exactly
// one observes it open.
func (u *Offers) Accept(ctx context.Context, userID, offerID uuid.UUID) (offer.Offer, error) {
	var (
		accepted offer.Offer
		note     notification.Notification
	)
	err := database.WithTx(ctx, u.db, func(tx database.Tx) error {
		o, err := u.offers.GetForUpdateTx(ctx, tx, offerID)
		if err != nil {
			return err
		}
		if o.Status != offer.StatusOpen {
			return ErrOfferNotOpen
		}
		if o.CreatorID == userID {
			return ErrCannotAcceptOwn
		}

		now := u.now().UTC()
		total := o.TotalDueCents()
		if err := u.offers.MarkAcceptedTx(ctx, tx, o.ID, userID, now, total); err != nil {
			if errors.Is(err, offer.ErrNotFound) {
				return ErrOfferNotOpen
			}
			return err
		}

		acceptor := userID
		o.Status = offer.StatusAccepted
		o.AcceptorID = &acceptor
		o.AcceptedAt = &now
		o.RemainingCents = total
		o.UpdatedAt = now

		note = notification.OfferAccepted(o.CreatorID, o.ID, total, now)
		if err := u.notifications.CreateTx(ctx, tx, note); err != nil {
			return err
		}

		accepted = o
		return nil
	})
	if err != nil {
		return offer.Offer{}, mapLedgerTxError(u.logger, err, "accept offer failed", offerID)
	}

	metrics.OfferTransitioned(string(offer.StatusAccepted))
	metrics.NotificationCreated(string(note.Kind))
	u.publisher.Publish(note)
	u.invalidateRecommendations(ctx)
	invalidateSummaries(ctx, u.cache, u.logger, accepted.CreatorID, userID)

	u.logger.Info().
		Str("offer_id", accepted.ID.String()).
		Str("acceptor_id", userID.String()).
		Int64("total_due_cents", accepted.RemainingCents).
		Msg("offer accepted")
	return accepted, nil
}

func mapLedgerTxError(logger zerolog.Logger, err error, msg string, offerID uuid.UUID) error {
	switch {
	case errors.Is(err, offer.ErrNotFound):
		return ErrOfferNotFound
	case errors.Is(err, ErrOfferNotOpen),
		errors.Is(err, ErrOfferNotActive),
		errors.Is(err, ErrCannotAcceptOwn),
		errors.Is(err, ErrNotOfferCreator),
		errors.Is(err, ErrNotBorrower),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrOverpayment),
		errors.Is(err, ErrInvalidInput):
		return err
	}
	logger.Error().Err(err).Str("offer_id", offerID.String()).Msg(msg)
	return ErrInternal
}

func (u *Offers) invalidateRecommendations(ctx context.Context) {
	invalidateRecommendations(ctx, u.cache, u.logger)
}

func parseKindFilter(raw string) (offer.Kind, error) {
	k := offer.Kind(strings.ToLower(strings.TrimSpace(raw)))
	if k == "" {
		return "", nil
	}
	if !k.Valid() {
		return "", ErrInvalidInput
	}
	return k, nil
}

func normalizePage(limit, offset, def, max int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
