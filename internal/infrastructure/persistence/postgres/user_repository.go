package postgres

import (
	"context"
	"fmt"

	"lendmark/internal/database"
	pgerr "lendmark/internal/database/postgres"
	"lendmark/internal/domain/user"

	"github.com/google/uuid"
)

type UserRepository struct {
	db database.DB
}

func NewUserRepository(db database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, full_name, created_at, updated_at`

func (r *UserRepository) CreateUser(ctx context.Context, u user.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, full_name) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Email, u.PasswordHash, u.FullName,
	)
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	row := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *UserRepository) UpdateUser(ctx context.Context, u user.User) error {
	affected, err := r.db.Exec(ctx,
		`UPDATE users
		 SET email = $2, password_hash = $3, full_name = $4, updated_at = now()
		 WHERE id = $1`,
		u.ID, u.Email, u.PasswordHash, u.FullName,
	)
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UserRepository) GetLedgerSummary(ctx context.Context, id uuid.UUID) (user.LedgerSummary, error) {
	out := user.LedgerSummary{OffersByStatus: map[string]int{}}

	row := r.db.QueryRow(ctx,
		`SELECT
			COALESCE(SUM(amount_cents) FILTER (WHERE status IN ('accepted', 'completed')
				AND ((kind = 'loan' AND creator_id = $1) OR (kind = 'investment' AND acceptor_id = $1))), 0),
			COALESCE(SUM(amount_cents) FILTER (WHERE status IN ('accepted', 'completed')
				AND ((kind = 'investment' AND creator_id = $1) OR (kind = 'loan' AND acceptor_id = $1))), 0),
			COALESCE(SUM(remaining_cents) FILTER (WHERE status = 'accepted'
				AND ((kind = 'loan' AND creator_id = $1) OR (kind = 'investment' AND acceptor_id = $1))), 0),
			COALESCE(SUM(remaining_cents) FILTER (WHERE status = 'accepted'
				AND ((kind = 'investment' AND creator_id = $1) OR (kind = 'loan' AND acceptor_id = $1))), 0)
		 FROM offers
		 WHERE creator_id = $1 OR acceptor_id = $1`,
		id,
	)
	if err := row.Scan(&out.TotalLentCents, &out.TotalBorrowedCents, &out.OwedToMeCents, &out.IOweCents); err != nil {
		return user.LedgerSummary{}, fmt.Errorf("ledger totals: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT status, COUNT(1)
		 FROM offers
		 WHERE creator_id = $1 OR acceptor_id = $1
		 GROUP BY status`,
		id,
	)
	if err != nil {
		return user.LedgerSummary{}, fmt.Errorf("ledger status counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return user.LedgerSummary{}, err
		}
		out.OffersByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return user.LedgerSummary{}, err
	}

	row = r.db.QueryRow(ctx,
		`SELECT COUNT(1), COALESCE(SUM(amount_cents), 0) FROM payments WHERE payer_id = $1`,
		id,
	)
	if err := row.Scan(&out.PaymentsMadeCount, &out.PaymentsMadeCents); err != nil {
		return user.LedgerSummary{}, fmt.Errorf("ledger payments: %w", err)
	}

	return out, nil
}

func scanUser(row database.Row) (user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if pgerr.IsNoRows(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}
