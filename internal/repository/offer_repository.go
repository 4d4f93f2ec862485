package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lendmark/internal/database"
	"lendmark/internal/database/postgres"
	"lendmark/internal/domain/offer"

	"github.com/google/uuid"
)

type OfferListFilter struct {
	Kind           offer.Kind
	MinAmountCents int64
	MaxAmountCents int64
	ExcludeCreator uuid.UUID
	Limit          int
	Offset         int
}

type OfferRole string

const (
	OfferRoleCreated  OfferRole = "created"
	OfferRoleAccepted OfferRole = "accepted"
)

type OfferRepository interface {
	Create(ctx context.Context, o offer.Offer) (offer.Offer, error)
	GetByID(ctx context.Context, id uuid.UUID) (offer.Offer, error)
	ListOpen(ctx context.Context, f OfferListFilter) ([]offer.Offer, error)
	ListByUser(ctx context.Context, userID uuid.UUID, role OfferRole, limit, offset int) ([]offer.Offer, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]offer.Offer, error)

	// The *Tx methods run on the caller's transaction.
	GetForUpdateTx(ctx context.Context, q database.Querier, id uuid.UUID) (offer.Offer, error)
	MarkAcceptedTx(ctx context.Context, q database.Querier, id, acceptorID uuid.UUID, acceptedAt time.Time, remainingCents int64) error
	UpdateBalanceTx(ctx context.Context, q database.Querier, id uuid.UUID, remainingCents int64, status offer.Status) error
	UpdateStatusTx(ctx context.Context, q database.Querier, id uuid.UUID, status offer.Status) error
}

type PostgresOfferRepository struct {
	db database.DB
}

func NewPostgresOfferRepository(db database.DB) *PostgresOfferRepository {
	return &PostgresOfferRepository{db: db}
}

const offerColumns = `id, creator_id, kind, amount_cents, interest_rate, term_months, description,
	status, acceptor_id, accepted_at, remaining_cents, created_at, updated_at`

func (r *PostgresOfferRepository) Create(ctx context.Context, o offer.Offer) (offer.Offer, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO offers (id, creator_id, kind, amount_cents, interest_rate, term_months, description, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+offerColumns,
		o.ID, o.CreatorID, string(o.Kind), o.AmountCents, o.InterestRate, o.TermMonths, o.Description, string(offer.StatusOpen),
	)
	created, err := scanOffer(row)
	if err != nil {
		if postgres.IsCheckViolation(err) {
			return offer.Offer{}, offer.ErrInvalid
		}
		return offer.Offer{}, fmt.Errorf("insert offer: %w", err)
	}
	return created, nil
}

func (r *PostgresOfferRepository) GetByID(ctx context.Context, id uuid.UUID) (offer.Offer, error) {
	return scanOffer(r.db.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id))
}

func (r *PostgresOfferRepository) ListOpen(ctx context.Context, f OfferListFilter) ([]offer.Offer, error) {
	limit, offset := clampPage(f.Limit, f.Offset, 20, 200)

	where := []string{"status = 'open'"}
	args := make([]any, 0, 6)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Kind != "" {
		add("kind = $%d", string(f.Kind))
	}
	if f.MinAmountCents > 0 {
		add("amount_cents >= $%d", f.MinAmountCents)
	}
	if f.MaxAmountCents > 0 {
		add("amount_cents <= $%d", f.MaxAmountCents)
	}
	if f.ExcludeCreator != uuid.Nil {
		add("creator_id <> $%d", f.ExcludeCreator)
	}
	args = append(args, limit, offset)

	q := `SELECT ` + offerColumns + `
		 FROM offers
		 WHERE ` + strings.Join(where, " AND ") + fmt.Sprintf(`
		 ORDER BY created_at DESC, id
		 LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return r.queryOffers(ctx, r.db, q, args...)
}

func (r *PostgresOfferRepository) ListByUser(ctx context.Context, userID uuid.UUID, role OfferRole, limit, offset int) ([]offer.Offer, error) {
	limit, offset = clampPage(limit, offset, 20, 200)

	col := "creator_id"
	if role == OfferRoleAccepted {
		col = "acceptor_id"
	}
	return r.queryOffers(ctx, r.db,
		`SELECT `+offerColumns+`
		 FROM offers
		 WHERE `+col+` = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
}

func (r *PostgresOfferRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]offer.Offer, error) {
	if limit <= 0 {
		limit = 500
	}
	return r.queryOffers(ctx, r.db,
		`SELECT `+offerColumns+`
		 FROM offers
		 WHERE status = 'accepted'
		   AND remaining_cents > 0
		   AND accepted_at + make_interval(months => term_months) < $1
		 ORDER BY accepted_at ASC
		 LIMIT $2`,
		now.UTC(), limit,
	)
}

func (r *PostgresOfferRepository) GetForUpdateTx(ctx context.Context, q database.Querier, id uuid.UUID) (offer.Offer, error) {
	return scanOffer(q.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1 FOR UPDATE`, id))
}

func (r *PostgresOfferRepository) MarkAcceptedTx(ctx context.Context, q database.Querier, id, acceptorID uuid.UUID, acceptedAt time.Time, remainingCents int64) error {
	affected, err := q.Exec(ctx,
		`UPDATE offers
		 SET status = 'accepted', acceptor_id = $2, accepted_at = $3, remaining_cents = $4, updated_at = now()
		 WHERE id = $1 AND status = 'open'`,
		id, acceptorID, acceptedAt.UTC(), remainingCents,
	)
	if err != nil {
		return fmt.Errorf("accept offer: %w", err)
	}
	if affected == 0 {
		return offer.ErrNotFound
	}
	return nil
}

func (r *PostgresOfferRepository) UpdateBalanceTx(ctx context.Context, q database.Querier, id uuid.UUID, remainingCents int64, status offer.Status) error {
	affected, err := q.Exec(ctx,
		`UPDATE offers SET remaining_cents = $2, status = $3, updated_at = now() WHERE id = $1`,
		id, remainingCents, string(status),
	)
	if err != nil {
		return fmt.Errorf("update offer balance: %w", err)
	}
	if affected == 0 {
		return offer.ErrNotFound
	}
	return nil
}

func (r *PostgresOfferRepository) UpdateStatusTx(ctx context.Context, q database.Querier, id uuid.UUID, status offer.Status) error {
	affected, err := q.Exec(ctx,
		`UPDATE offers SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update offer status: %w", err)
	}
	if affected == 0 {
		return offer.ErrNotFound
	}
	return nil
}

func (r *PostgresOfferRepository) queryOffers(ctx context.Context, q database.Querier, query string, args ...any) ([]offer.Offer, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]offer.Offer, 0)
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanOffer(row database.Row) (offer.Offer, error) {
	var o offer.Offer
	var kind, status string
	if err := row.Scan(
		&o.ID, &o.CreatorID, &kind, &o.AmountCents, &o.InterestRate, &o.TermMonths, &o.Description,
		&status, &o.AcceptorID, &o.AcceptedAt, &o.RemainingCents, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		if postgres.IsNoRows(err) {
			return offer.Offer{}, offer.ErrNotFound
		}
		return offer.Offer{}, err
	}
	o.Kind = offer.Kind(kind)
	o.Status = offer.Status(status)
	return o, nil
}

func clampPage(limit, offset, def, max int) (int, int) {
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
