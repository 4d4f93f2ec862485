package repository

import (
	"context"
	"fmt"

	"lendmark/internal/database"
	"lendmark/internal/domain/payment"

	"github.com/google/uuid"
)

type PaymentRepository interface {
	CreateTx(ctx context.Context, q database.Querier, p payment.Payment) (payment.Payment, error)
	ListByOffer(ctx context.Context, offerID uuid.UUID) ([]payment.Payment, error)
	ListByPayer(ctx context.Context, payerID uuid.UUID, limit, offset int) ([]payment.Payment, error)
}

type PostgresPaymentRepository struct {
	db database.DB
}

func NewPostgresPaymentRepository(db database.DB) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{db: db}
}

const paymentColumns = `id, offer_id, payer_id, amount_cents, remaining_after_cents, created_at`

func (r *PostgresPaymentRepository) CreateTx(ctx context.Context, q database.Querier, p payment.Payment) (payment.Payment, error) {
	row := q.QueryRow(ctx,
		`INSERT INTO payments (id, offer_id, payer_id, amount_cents, remaining_after_cents)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+paymentColumns,
		p.ID, p.OfferID, p.PayerID, p.AmountCents, p.RemainingAfterCents,
	)
	created, err := scanPayment(row)
	if err != nil {
		return payment.Payment{}, fmt.Errorf("insert payment: %w", err)
	}
	return created, nil
}

func (r *PostgresPaymentRepository) ListByOffer(ctx context.Context, offerID uuid.UUID) ([]payment.Payment, error) {
	return r.query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE offer_id = $1 ORDER BY created_at ASC, id`,
		offerID,
	)
}

func (r *PostgresPaymentRepository) ListByPayer(ctx context.Context, payerID uuid.UUID, limit, offset int) ([]payment.Payment, error) {
	limit, offset = clampPage(limit, offset, 50, 200)
	return r.query(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE payer_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2 OFFSET $3`,
		payerID, limit, offset,
	)
}

func (r *PostgresPaymentRepository) query(ctx context.Context, query string, args ...any) ([]payment.Payment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]payment.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanPayment(row database.Row) (payment.Payment, error) {
	var p payment.Payment
	if err := row.Scan(&p.ID, &p.OfferID, &p.PayerID, &p.AmountCents, &p.RemainingAfterCents, &p.CreatedAt); err != nil {
		return payment.Payment{}, err
	}
	return p, nil
}
