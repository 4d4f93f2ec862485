package seeder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lendmark/internal/database"

	"github.com/rs/zerolog"
)

// Runner applies seeders in order within a single transaction, so a failed
// seeder leaves no partial fixtures behind. Only, when non-empty, restricts
// the run to the named seeders.
type Runner struct {
	Seeders []Seeder
	Only    []string
	Logger  zerolog.Logger
}

func (r Runner) Run(ctx context.Context, db database.DB) error {
	if db == nil {
		return database.ErrNilDB
	}

	selected, err := r.selected()
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return nil
	}

	required := map[string][]string{}
	for _, s := range selected {
		for table, cols := range s.Columns() {
			required[table] = append(required[table], cols...)
		}
	}
	if err := checkColumns(ctx, db, required); err != nil {
		return err
	}

	return database.WithTx(ctx, db, func(tx database.Tx) error {
		for _, s := range selected {
			start := time.Now()
			if err := s.Seed(ctx, tx); err != nil {
				return fmt.Errorf("seed %s: %w", s.Name(), err)
			}
			r.Logger.Info().
				Str("seeder", s.Name()).
				Dur("took", time.Since(start)).
				Msg("seeder applied")
		}
		return nil
	})
}

func (r Runner) selected() ([]Seeder, error) {
	if len(r.Only) == 0 {
		out := make([]Seeder, 0, len(r.Seeders))
		for _, s := range r.Seeders {
			if s != nil {
				out = append(out, s)
			}
		}
		return out, nil
	}

	want := map[string]bool{}
	for _, name := range r.Only {
		want[strings.TrimSpace(name)] = true
	}

	out := make([]Seeder, 0, len(want))
	for _, s := range r.Seeders {
		if s != nil && want[s.Name()] {
			out = append(out, s)
			delete(want, s.Name())
		}
	}
	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for name := range want {
			unknown = append(unknown, name)
		}
		return nil, fmt.Errorf("unknown seeders: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}
