package seeder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"lendmark/internal/database"
)

var ErrSchemaMismatch = errors.New("schema mismatch")

// checkColumns loads the live columns for every table in required with one
// query and reports all missing ones together.
func checkColumns(ctx context.Context, q database.Querier, required map[string][]string) error {
	if len(required) == 0 {
		return nil
	}

	tables := make([]string, 0, len(required))
	for t := range required {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	rows, err := q.Query(ctx,
		`SELECT table_name, column_name
		 FROM information_schema.columns
		 WHERE table_schema = current_schema() AND table_name = ANY($1)`,
		tables,
	)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	defer rows.Close()

	live := map[string]bool{}
	for rows.Next() {
		var table, col string
		if err := rows.Scan(&table, &col); err != nil {
			return err
		}
		live[table+"."+col] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var missing []string
	for _, t := range tables {
		for _, c := range required[t] {
			if !live[t+"."+c] {
				missing = append(missing, t+"."+c)
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrSchemaMismatch, strings.Join(missing, ", "))
	}
	return nil
}
