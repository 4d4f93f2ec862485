package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"lendmark/internal/database"
	"lendmark/internal/database/dbtest"
	"lendmark/internal/domain/notification"
	"lendmark/internal/domain/offer"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	query string
	args  []any
}

type emptyRows struct{}

func (emptyRows) Close()            {}
func (emptyRows) Next() bool        { return false }
func (emptyRows) Scan(...any) error { return nil }
func (emptyRows) Err() error        { return nil }

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// recordingDB captures the statements a repository issues.
type recordingDB struct {
	calls    []call
	affected int64
	rowErr   error
}

func (d *recordingDB) Exec(_ context.Context, q string, args ...any) (int64, error) {
	d.calls = append(d.calls, call{q, args})
	return d.affected, nil
}

func (d *recordingDB) Query(_ context.Context, q string, args ...any) (database.Rows, error) {
	d.calls = append(d.calls, call{q, args})
	return emptyRows{}, nil
}

func (d *recordingDB) QueryRow(_ context.Context, q string, args ...any) database.Row {
	d.calls = append(d.calls, call{q, args})
	return errRow{err: d.rowErr}
}

func (d *recordingDB) Ping(context.Context) error                 { return nil }
func (d *recordingDB) Close() error                               { return nil }
func (d *recordingDB) SQLDB() *sql.DB                             { return nil }
func (d *recordingDB) Begin(context.Context) (database.Tx, error) { return nil, errors.New("no tx") }

func TestOfferRepository_ListOpenBuildsFilters(t *testing.T) {
	db := &recordingDB{}
	repo := NewPostgresOfferRepository(db)
	viewer := uuid.New()

	out, err := repo.ListOpen(context.Background(), OfferListFilter{
		Kind:           offer.KindInvestment,
		MinAmountCents: 100,
		MaxAmountCents: 500,
		ExcludeCreator: viewer,
		Limit:          1000,
		Offset:         -3,
	})
	require.NoError(t, err)
	assert.Empty(t, out)

	require.Len(t, db.calls, 1)
	c := db.calls[0]
	assert.Contains(t, c.query, "status = 'open' AND kind = $1 AND amount_cents >= $2 AND amount_cents <= $3 AND creator_id <> $4")
	assert.Contains(t, c.query, "LIMIT $5 OFFSET $6")
	assert.Equal(t, []any{"investment", int64(100), int64(500), viewer, 200, 0}, c.args)
}

func TestOfferRepository_ListOpenWithoutFilters(t *testing.T) {
	db := &recordingDB{}
	repo := NewPostgresOfferRepository(db)

	_, err := repo.ListOpen(context.Background(), OfferListFilter{})
	require.NoError(t, err)

	c := db.calls[0]
	assert.Contains(t, c.query, "WHERE status = 'open'\n")
	assert.Contains(t, c.query, "LIMIT $1 OFFSET $2")
	assert.Equal(t, []any{20, 0}, c.args)
}

func TestOfferRepository_ListByUserPicksColumn(t *testing.T) {
	db := &recordingDB{}
	repo := NewPostgresOfferRepository(db)
	id := uuid.New()

	_, err := repo.ListByUser(context.Background(), id, OfferRoleAccepted, 10, 0)
	require.NoError(t, err)
	_, err = repo.ListByUser(context.Background(), id, OfferRoleCreated, 10, 0)
	require.NoError(t, err)

	assert.Contains(t, db.calls[0].query, "WHERE acceptor_id = $1")
	assert.Contains(t, db.calls[1].query, "WHERE creator_id = $1")
}

func TestOfferRepository_GetForUpdateLocksRow(t *testing.T) {
	db := &recordingDB{rowErr: pgx.ErrNoRows}
	repo := NewPostgresOfferRepository(db)

	_, err := repo.GetForUpdateTx(context.Background(), db, uuid.New())
	require.ErrorIs(t, err, offer.ErrNotFound)
	assert.Contains(t, db.calls[0].query, "FOR UPDATE")
}

func TestOfferRepository_MarkAcceptedGuardsStatus(t *testing.T) {
	db := &recordingDB{affected: 0}
	repo := NewPostgresOfferRepository(db)

	err := repo.MarkAcceptedTx(context.Background(), db, uuid.New(), uuid.New(), time.Now(), 1100)
	require.ErrorIs(t, err, offer.ErrNotFound)
	assert.Contains(t, db.calls[0].query, "WHERE id = $1 AND status = 'open'")

	db.affected = 1
	require.NoError(t, repo.MarkAcceptedTx(context.Background(), db, uuid.New(), uuid.New(), time.Now(), 1100))
}

func TestNotificationRepository_MarkReadScopedToOwner(t *testing.T) {
	db := &recordingDB{affected: 0}
	repo := NewPostgresNotificationRepository(db)
	userID, id := uuid.New(), uuid.New()

	err := repo.MarkRead(context.Background(), userID, id)
	require.ErrorIs(t, err, notification.ErrNotFound)
	assert.Contains(t, db.calls[0].query, "user_id = $2")
	assert.Equal(t, []any{id, userID}, db.calls[0].args)
}

func TestNotificationRepository_ExistsSince(t *testing.T) {
	db := &recordingDB{rowErr: errors.New("boom")}
	repo := NewPostgresNotificationRepository(db)
	since := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))

	_, err := repo.ExistsSince(context.Background(), db, uuid.New(), notification.KindPaymentOverdue, since)
	require.Error(t, err)
	args := db.calls[0].args
	assert.Equal(t, "payment_overdue", args[1])
	assert.Equal(t, since.UTC(), args[2])
}

var offerColumnNames = []string{
	"id", "creator_id", "kind", "amount_cents", "interest_rate", "term_months", "description",
	"status", "acceptor_id", "accepted_at", "remaining_cents", "created_at", "updated_at",
}

func TestOfferRepository_ListOverdueDueDateRule(t *testing.T) {
	db, mock := dbtest.NewMock(t)
	repo := NewPostgresOfferRepository(db)

	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.FixedZone("x", 7*3600))
	id, lender, borrower := uuid.New(), uuid.New(), uuid.New()
	acceptedAt := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(dbtest.Stmt(
		"WHERE status = 'accepted'",
		"AND remaining_cents > 0",
		"AND accepted_at + make_interval(months => term_months) < $1",
		"ORDER BY accepted_at ASC",
		"LIMIT $2",
	)).
		WithArgs(now.UTC(), 500).
		WillReturnRows(sqlmock.NewRows(offerColumnNames).AddRow(
			id.String(), lender.String(), "loan", int64(10_000), 5.0, 3, "",
			"accepted", borrower.String(), acceptedAt, int64(4_000), acceptedAt, acceptedAt,
		))

	out, err := repo.ListOverdue(context.Background(), now, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	o := out[0]
	assert.Equal(t, id, o.ID)
	assert.Equal(t, offer.StatusAccepted, o.Status)
	require.NotNil(t, o.AcceptorID)
	assert.Equal(t, borrower, *o.AcceptorID)
	require.NotNil(t, o.AcceptedAt)
	assert.True(t, acceptedAt.Equal(*o.AcceptedAt))
	assert.Equal(t, int64(4_000), o.RemainingCents)
	assert.True(t, o.IsOverdue(now))
}
