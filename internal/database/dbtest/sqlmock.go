// Package dbtest runs repositories against go-sqlmock expectations.
package dbtest

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"testing"

	"lendmark/internal/database"

	"github.com/DATA-DOG/go-sqlmock"
)

// NewMock returns a database.DB backed by sqlmock. The connection is closed
// and unmet expectations are reported when the test ends.
func NewMock(t testing.TB) (database.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("sql expectations: %v", err)
		}
		_ = db.Close()
	})
	return &sqlDB{db: db}, mock
}

// Stmt builds a pattern matching a statement that contains every fragment
// in order, with anything in between.
func Stmt(fragments ...string) string {
	quoted := make([]string, 0, len(fragments))
	for _, f := range fragments {
		quoted = append(quoted, regexp.QuoteMeta(f))
	}
	return "(?s)" + strings.Join(quoted, ".*")
}

type sqlDB struct {
	db *sql.DB
}

func (d *sqlDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return execAffected(d.db.ExecContext(ctx, query, args...))
}

func (d *sqlDB) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return wrapRows(d.db.QueryContext(ctx, query, args...))
}

func (d *sqlDB) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

func (d *sqlDB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }
func (d *sqlDB) Close() error                   { return d.db.Close() }
func (d *sqlDB) SQLDB() *sql.DB                 { return d.db }

func (d *sqlDB) Begin(ctx context.Context) (database.Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return sqlTx{tx: tx}, nil
}

type sqlTx struct {
	tx *sql.Tx
}

func (t sqlTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return execAffected(t.tx.ExecContext(ctx, query, args...))
}

func (t sqlTx) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return wrapRows(t.tx.QueryContext(ctx, query, args...))
}

func (t sqlTx) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

func (t sqlTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t sqlTx) Rollback(context.Context) error { return t.tx.Rollback() }

type rows struct {
	*sql.Rows
}

func (r rows) Close() { _ = r.Rows.Close() }

func wrapRows(r *sql.Rows, err error) (database.Rows, error) {
	if err != nil {
		return nil, err
	}
	return rows{Rows: r}, nil
}

func execAffected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
