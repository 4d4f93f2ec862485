package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNilDB = errors.New("nil db")

// Querier is the subset shared by DB and Tx, so repositories can run inside
// or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
}

type DB interface {
	Querier

	Ping(ctx context.Context) error
	Close() error

	Begin(ctx context.Context) (Tx, error)

	SQLDB() *sql.DB
}

type Tx interface {
	Querier

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Rows interface {
	Close()
	Next() bool
	Scan(dest ...any) error
	Err() error
}

type Row interface {
	Scan(dest ...any) error
}

// PoolStats is a point-in-time view of connection usage. WaitCount counts
// acquires that had to wait for a free connection.
type PoolStats struct {
	Acquired     int32
	Idle         int32
	Total        int32
	Max          int32
	WaitCount    int64
	WaitDuration time.Duration
}

// StatsProvider is implemented by pools that can report PoolStats.
type StatsProvider interface {
	Stats() PoolStats
}
