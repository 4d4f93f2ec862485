package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const advisoryLockKey int64 = 518300274

var ErrChecksumMismatch = errors.New("migration checksum mismatch")

// Runner applies migrations from FS, or from Dir when it is set. Every
// migration runs in its own transaction and is recorded in
// schema_migrations together with its checksum.
type Runner struct {
	FS     fs.FS
	Dir    string
	Logger zerolog.Logger
}

// Status describes one migration as seen by the database. Orphaned entries
// are recorded as applied but no longer exist in the source.
type Status struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
	Modified  bool
	Orphaned  bool
}

type appliedMigration struct {
	Version   int64
	Name      string
	Checksum  string
	AppliedAt time.Time
}

func (r Runner) Run(ctx context.Context, db *sql.DB) error {
	migs, err := r.load()
	if err != nil {
		return err
	}
	if len(migs) == 0 {
		return nil
	}
	if db == nil {
		return errors.New("nil db")
	}

	// pg_advisory_lock is held by the session, so lock, work and unlock
	// must share one connection.
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if err := ensureSchemaMigrations(ctx, conn); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, advisoryLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, advisoryLockKey)
	}()

	applied, err := loadApplied(ctx, conn)
	if err != nil {
		return err
	}

	pending := make([]Migration, 0, len(migs))
	for _, m := range migs {
		a, ok := applied[m.Version]
		if !ok {
			pending = append(pending, m)
			continue
		}
		if a.Checksum != m.Checksum {
			return fmt.Errorf("%w: version=%d name=%s", ErrChecksumMismatch, m.Version, m.Name)
		}
	}
	if len(pending) == 0 {
		r.Logger.Debug().Int("known", len(migs)).Msg("schema up to date")
		return nil
	}

	for _, m := range pending {
		start := time.Now()
		if err := applyOne(ctx, conn, m); err != nil {
			return err
		}
		r.Logger.Info().
			Int64("version", m.Version).
			Str("file", m.Filename).
			Dur("took", time.Since(start)).
			Msg("migration applied")
	}
	return nil
}

// Status compares the source against schema_migrations without applying
// anything.
func (r Runner) Status(ctx context.Context, db *sql.DB) ([]Status, error) {
	migs, err := r.load()
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, errors.New("nil db")
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if err := ensureSchemaMigrations(ctx, conn); err != nil {
		return nil, err
	}
	applied, err := loadApplied(ctx, conn)
	if err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(migs)+len(applied))
	for _, m := range migs {
		st := Status{Version: m.Version, Name: m.Name}
		if a, ok := applied[m.Version]; ok {
			st.Applied = true
			st.AppliedAt = a.AppliedAt
			st.Modified = a.Checksum != m.Checksum
			delete(applied, m.Version)
		}
		out = append(out, st)
	}
	for _, a := range applied {
		out = append(out, Status{
			Version:   a.Version,
			Name:      a.Name,
			Applied:   true,
			AppliedAt: a.AppliedAt,
			Orphaned:  true,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (r Runner) load() ([]Migration, error) {
	if strings.TrimSpace(r.Dir) != "" {
		return Load(os.DirFS(r.Dir))
	}
	if r.FS == nil {
		return nil, errors.New("no migration source")
	}
	return Load(r.FS)
}

func ensureSchemaMigrations(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	checksum TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func loadApplied(ctx context.Context, conn *sql.Conn) (map[int64]appliedMigration, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version, name, checksum, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	out := map[int64]appliedMigration{}
	for rows.Next() {
		var a appliedMigration
		if err := rows.Scan(&a.Version, &a.Name, &a.Checksum, &a.AppliedAt); err != nil {
			return nil, err
		}
		out[a.Version] = a
	}
	return out, rows.Err()
}

func applyOne(ctx context.Context, conn *sql.Conn, m Migration) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("apply migration failed: version=%d file=%s: %w", m.Version, m.Filename, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, checksum, applied_at) VALUES ($1, $2, $3, $4)`,
		m.Version, m.Name, m.Checksum, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	return tx.Commit()
}
