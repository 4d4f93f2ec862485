package seeder

import (
	"context"

	"lendmark/internal/database"
	"lendmark/internal/domain/offer"
)

type demoOffer struct {
	CreatorEmail string
	Kind         offer.Kind
	AmountCents  int64
	InterestRate float64
	TermMonths   int
	Description  string
}

var demoOffers = []demoOffer{
	{"ayu.lender@lendmark.test", offer.KindLoan, 500_000, 6.5, 6, "Short-term working capital loan"},
	{"ayu.lender@lendmark.test", offer.KindLoan, 2_000_000, 9, 12, "Equipment financing, monthly repayment"},
	{"budi.borrower@lendmark.test", offer.KindInvestment, 1_500_000, 11, 9, "Expanding a food stall to a second location"},
	{"citra.investor@lendmark.test", offer.KindLoan, 250_000, 4, 3, "Small bridge loan"},
}

// DemoOffersSeeder only seeds when the demo creators have no offers yet, so
// reseeding never duplicates listings.
type DemoOffersSeeder struct{}

func (DemoOffersSeeder) Name() string { return "demo_offers" }

func (DemoOffersSeeder) Columns() map[string][]string {
	return map[string][]string{
		"users":  {"id", "email"},
		"offers": {"creator_id", "kind", "amount_cents", "interest_rate", "term_months", "description", "status"},
	}
}

func (DemoOffersSeeder) Seed(ctx context.Context, q database.Querier) error {
	var existing int
	err := q.QueryRow(ctx,
		`SELECT COUNT(1) FROM offers o JOIN users u ON u.id = o.creator_id WHERE u.email LIKE '%@lendmark.test'`,
	).Scan(&existing)
	if err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	for _, o := range demoOffers {
		_, err := q.Exec(ctx,
			`INSERT INTO offers (creator_id, kind, amount_cents, interest_rate, term_months, description, status)
			 SELECT id, $2, $3, $4, $5, $6, 'open' FROM users WHERE email = $1`,
			o.CreatorEmail, string(o.Kind), o.AmountCents, o.InterestRate, o.TermMonths, o.Description,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
