package seeder

import (
	"context"

	"lendmark/internal/database"
)

// Seeder loads fixture data inside the runner's transaction. Seed must be
// safe to repeat.
type Seeder interface {
	Name() string
	// Columns lists, per table, the columns Seed writes or filters on.
	Columns() map[string][]string
	Seed(ctx context.Context, q database.Querier) error
}

// Defaults returns the demo fixtures in dependency order.
func Defaults() []Seeder {
	return []Seeder{
		DemoUsersSeeder{},
		DemoOffersSeeder{},
	}
}
