package seeder

import (
	"context"
	"fmt"

	"lendmark/internal/database"

	"golang.org/x/crypto/bcrypt"
)

// DemoPassword is shared by every demo account.
const DemoPassword = "lendmark-demo"

type demoUser struct {
	Email    string
	FullName string
}

var demoUsers = []demoUser{
	{Email: "ayu.lender@lendmark.test", FullName: "Ayu Prasetyo"},
	{Email: "budi.borrower@lendmark.test", FullName: "Budi Santoso"},
	{Email: "citra.investor@lendmark.test", FullName: "Citra Wulandari"},
}

type DemoUsersSeeder struct{}

func (DemoUsersSeeder) Name() string { return "demo_users" }

func (DemoUsersSeeder) Columns() map[string][]string {
	return map[string][]string{"users": {"id", "email", "password_hash", "full_name"}}
}

func (DemoUsersSeeder) Seed(ctx context.Context, q database.Querier) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	for _, u := range demoUsers {
		_, err := q.Exec(ctx,
			`INSERT INTO users (email, password_hash, full_name) VALUES ($1, $2, $3) ON CONFLICT (email) DO NOTHING`,
			u.Email, string(hash), u.FullName,
		)
		if err != nil {
			return fmt.Errorf("insert %s: %w", u.Email, err)
		}
	}
	return nil
}
