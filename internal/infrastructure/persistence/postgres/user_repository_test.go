package postgres

import (
	"context"
	"errors"
	"testing"

	"lendmark/internal/database/dbtest"
	"lendmark/internal/domain/user"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The creator of a loan lends and its acceptor borrows; investments are the
// other way round.
const (
	lenderSide   = "(kind = 'loan' AND creator_id = $1) OR (kind = 'investment' AND acceptor_id = $1)"
	borrowerSide = "(kind = 'investment' AND creator_id = $1) OR (kind = 'loan' AND acceptor_id = $1)"
)

func TestUserRepository_GetLedgerSummary(t *testing.T) {
	db, mock := dbtest.NewMock(t)
	repo := NewUserRepository(db)
	id := uuid.New()

	mock.ExpectQuery(dbtest.Stmt(
		"SUM(amount_cents) FILTER (WHERE status IN ('accepted', 'completed')", lenderSide,
		"SUM(amount_cents) FILTER (WHERE status IN ('accepted', 'completed')", borrowerSide,
		"SUM(remaining_cents) FILTER (WHERE status = 'accepted'", lenderSide,
		"SUM(remaining_cents) FILTER (WHERE status = 'accepted'", borrowerSide,
		"FROM offers",
		"WHERE creator_id = $1 OR acceptor_id = $1",
	)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"lent", "borrowed", "owed_to_me", "i_owe"}).
			AddRow(int64(150_000), int64(20_000), int64(99_000), int64(22_000)))

	mock.ExpectQuery(dbtest.Stmt("SELECT status, COUNT(1)", "WHERE creator_id = $1 OR acceptor_id = $1", "GROUP BY status")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("accepted", int64(2)).
			AddRow("open", int64(1)))

	mock.ExpectQuery(dbtest.Stmt("SELECT COUNT(1), COALESCE(SUM(amount_cents), 0) FROM payments WHERE payer_id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum"}).AddRow(int64(3), int64(8_000)))

	got, err := repo.GetLedgerSummary(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, user.LedgerSummary{
		TotalLentCents:     150_000,
		TotalBorrowedCents: 20_000,
		OwedToMeCents:      99_000,
		IOweCents:          22_000,
		OffersByStatus:     map[string]int{"accepted": 2, "open": 1},
		PaymentsMadeCount:  3,
		PaymentsMadeCents:  8_000,
	}, got)
}

func TestUserRepository_GetLedgerSummaryWrapsErrors(t *testing.T) {
	db, mock := dbtest.NewMock(t)
	repo := NewUserRepository(db)
	id := uuid.New()

	mock.ExpectQuery(dbtest.Stmt("FROM offers")).
		WithArgs(id).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetLedgerSummary(context.Background(), id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger totals: connection reset")
}

func TestUserRepository_CreateUser(t *testing.T) {
	db, mock := dbtest.NewMock(t)
	repo := NewUserRepository(db)
	u := user.User{ID: uuid.New(), Email: "a@example.test", PasswordHash: "h", FullName: "A"}

	mock.ExpectExec(dbtest.Stmt("INSERT INTO users (id, email, password_hash, full_name)")).
		WithArgs(u.ID, u.Email, u.PasswordHash, u.FullName).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateUser(context.Background(), u))
}
