package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"lendmark/internal/app"
	"lendmark/internal/config"
	"lendmark/internal/database"
	dbpostgres "lendmark/internal/database/postgres"
	"lendmark/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type semanticResponse struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type authData struct {
	User struct {
		ID uuid.UUID `json:"id"`
	} `json:"user"`
	AccessToken string `json:"access_token"`
}

type offerData struct {
	ID             uuid.UUID `json:"id"`
	Status         string    `json:"status"`
	TotalDueCents  int64     `json:"total_due_cents"`
	RemainingCents int64     `json:"remaining_cents"`
}

type summaryData struct {
	TotalLentCents     int64          `json:"total_lent_cents"`
	TotalBorrowedCents int64          `json:"total_borrowed_cents"`
	OwedToMeCents      int64          `json:"owed_to_me_cents"`
	IOweCents          int64          `json:"i_owe_cents"`
	OffersByStatus     map[string]int `json:"offers_by_status"`
	PaymentsMadeCount  int            `json:"payments_made_count"`
	PaymentsMadeCents  int64          `json:"payments_made_cents"`
}

type notificationData struct {
	Kind string `json:"kind"`
}

type account struct {
	id    uuid.UUID
	token string
}

type harness struct {
	t     *testing.T
	db    database.DB
	app   *app.App
	users []uuid.UUID
}

func TestIntegration_LoanLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	h := newHarness(t, ctx)

	lender := h.register("lender")
	borrower := h.register("borrower")

	var created offerData
	status := h.call("POST", "/api/v1/offers", lender.token,
		map[string]any{"kind": "loan", "amount_cents": 100000, "interest_rate": 10, "term_months": 3}, &created)
	require.Equal(t, 201, status)
	assert.Equal(t, "open", created.Status)

	status = h.call("POST", "/api/v1/offers/"+created.ID.String()+"/accept", lender.token, nil, nil)
	assert.Equal(t, 403, status)

	var accepted offerData
	status = h.call("POST", "/api/v1/offers/"+created.ID.String()+"/accept", borrower.token, nil, &accepted)
	require.Equal(t, 200, status)
	assert.Equal(t, "accepted", accepted.Status)
	assert.Equal(t, int64(110000), accepted.TotalDueCents)
	assert.Equal(t, int64(110000), accepted.RemainingCents)

	status = h.call("POST", "/api/v1/offers/"+created.ID.String()+"/payments", lender.token,
		map[string]any{"amount_cents": 100}, nil)
	assert.Equal(t, 403, status)

	status = h.call("POST", "/api/v1/offers/"+created.ID.String()+"/payments", borrower.token,
		map[string]any{"amount_cents": 110001}, nil)
	assert.Equal(t, 422, status)

	status = h.call("POST", "/api/v1/offers/"+created.ID.String()+"/payments", borrower.token,
		map[string]any{"amount_cents": 10000}, nil)
	require.Equal(t, 201, status)

	lenderSum := h.summary(lender)
	assert.Equal(t, int64(100000), lenderSum.TotalLentCents)
	assert.Zero(t, lenderSum.TotalBorrowedCents)
	assert.Equal(t, int64(100000), lenderSum.OwedToMeCents)
	assert.Zero(t, lenderSum.IOweCents)
	assert.Equal(t, 1, lenderSum.OffersByStatus["accepted"])
	assert.Zero(t, lenderSum.PaymentsMadeCount)

	borrowerSum := h.summary(borrower)
	assert.Zero(t, borrowerSum.TotalLentCents)
	assert.Equal(t, int64(100000), borrowerSum.TotalBorrowedCents)
	assert.Zero(t, borrowerSum.OwedToMeCents)
	assert.Equal(t, int64(100000), borrowerSum.IOweCents)
	assert.Equal(t, 1, borrowerSum.PaymentsMadeCount)
	assert.Equal(t, int64(10000), borrowerSum.PaymentsMadeCents)

	status = h.call("POST", "/api/v1/offers/"+created.ID.String()+"/payments", borrower.token,
		map[string]any{"amount_cents": 100000}, nil)
	require.Equal(t, 201, status)

	var final offerData
	status = h.call("GET", "/api/v1/offers/"+created.ID.String(), borrower.token, nil, &final)
	require.Equal(t, 200, status)
	assert.Equal(t, "completed", final.Status)
	assert.Equal(t, int64(0), final.RemainingCents)

	var notes []notificationData
	status = h.call("GET", "/api/v1/notifications", lender.token, nil, &notes)
	require.Equal(t, 200, status)
	kinds := map[string]int{}
	for _, n := range notes {
		kinds[n.Kind]++
	}
	assert.Equal(t, 2, kinds["payment_received"])
	assert.Equal(t, 1, kinds["offer_completed"])

	notes = nil
	status = h.call("GET", "/api/v1/notifications", borrower.token, nil, &notes)
	require.Equal(t, 200, status)
	assert.NotEmpty(t, notes)
}

func TestIntegration_ConcurrentAcceptHasSingleWinner(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	h := newHarness(t, ctx)

	lender := h.register("lender")
	var created offerData
	require.Equal(t, 201, h.call("POST", "/api/v1/offers", lender.token,
		map[string]any{"kind": "loan", "amount_cents": 5000, "interest_rate": 5, "term_months": 1}, &created))

	const contenders = 5
	accounts := make([]account, contenders)
	for i := range accounts {
		accounts[i] = h.register("contender")
	}

	var wg sync.WaitGroup
	statuses := make([]int, contenders)
	for i, a := range accounts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statuses[i] = h.call("POST", "/api/v1/offers/"+created.ID.String()+"/accept", a.token, nil, nil)
		}()
	}
	wg.Wait()

	won, conflicts := 0, 0
	for _, s := range statuses {
		switch s {
		case 200:
			won++
		case 409:
			conflicts++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, contenders-1, conflicts)
}

func TestIntegration_InvestmentSummaryAndOverdue(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	h := newHarness(t, ctx)

	founder := h.register("founder")
	investor := h.register("investor")

	open := func(kind string) offerData {
		var o offerData
		require.Equal(t, 201, h.call("POST", "/api/v1/offers", founder.token,
			map[string]any{"kind": kind, "amount_cents": 20000, "interest_rate": 5, "term_months": 1}, &o))
		require.Equal(t, 200, h.call("POST", "/api/v1/offers/"+o.ID.String()+"/accept", investor.token, nil, &o))
		return o
	}
	late := open("investment")
	current := open("investment")

	require.Equal(t, 201, h.call("POST", "/api/v1/offers/"+late.ID.String()+"/payments", founder.token,
		map[string]any{"amount_cents": 1000}, nil))

	// The investment creator borrows and the acceptor lends.
	founderSum := h.summary(founder)
	assert.Zero(t, founderSum.TotalLentCents)
	assert.Equal(t, int64(40000), founderSum.TotalBorrowedCents)
	assert.Equal(t, int64(20000+21000), founderSum.IOweCents)
	assert.Zero(t, founderSum.OwedToMeCents)

	investorSum := h.summary(investor)
	assert.Equal(t, int64(40000), investorSum.TotalLentCents)
	assert.Zero(t, investorSum.TotalBorrowedCents)
	assert.Equal(t, int64(20000+21000), investorSum.OwedToMeCents)
	assert.Zero(t, investorSum.IOweCents)

	_, err := h.db.Exec(ctx, `UPDATE offers SET accepted_at = now() - interval '45 days' WHERE id = $1`, late.ID)
	require.NoError(t, err)

	overdue, err := repository.NewPostgresOfferRepository(h.db).ListOverdue(ctx, time.Now(), 500)
	require.NoError(t, err)
	ids := map[uuid.UUID]bool{}
	for _, o := range overdue {
		ids[o.ID] = true
	}
	assert.True(t, ids[late.ID], "term elapsed with balance left")
	assert.False(t, ids[current.ID], "term still running")
}

func newHarness(t *testing.T, ctx context.Context) *harness {
	t.Helper()

	db := connectTestDB(t, ctx)
	cfg := config.Config{
		App: config.AppConfig{AppName: "lendmark-test", Environment: "test", HTTPPort: "0"},
		JWT: config.JWTConfig{
			AccessSecret:     stringsOrDefault(os.Getenv("LENDMARK_TEST_JWT_ACCESS_SECRET"), "test-access-secret"),
			RefreshSecret:    stringsOrDefault(os.Getenv("LENDMARK_TEST_JWT_REFRESH_SECRET"), "test-refresh-secret"),
			AccessExpiresIn:  5 * time.Minute,
			RefreshExpiresIn: time.Hour,
		},
		RateLimit: config.RateLimitConfig{RPS: 1000, Burst: 1000},
		Reminder:  config.ReminderConfig{Schedule: "@every 1h", Workers: 2},
	}

	c := app.NewContainerWithDeps(cfg, zerolog.Nop(), db, nil)
	if err := c.Migrate(ctx); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	h := &harness{t: t, db: db, app: app.New(c)}
	t.Cleanup(func() {
		cleanupUsers(t, db, h.users)
		_ = db.Close()
	})
	return h
}

func connectTestDB(t *testing.T, ctx context.Context) database.DB {
	t.Helper()

	host := stringsOrDefault(os.Getenv("LENDMARK_TEST_DB_HOST"), os.Getenv("DB_HOST"))
	port := stringsOrDefault(os.Getenv("LENDMARK_TEST_DB_PORT"), os.Getenv("DB_PORT"))
	name := stringsOrDefault(os.Getenv("LENDMARK_TEST_DB_NAME"), os.Getenv("DB_NAME"))
	user := stringsOrDefault(os.Getenv("LENDMARK_TEST_DB_USER"), os.Getenv("DB_USER"))
	pass := stringsOrDefault(os.Getenv("LENDMARK_TEST_DB_PASSWORD"), os.Getenv("DB_PASSWORD"))
	ssl := stringsOrDefault(os.Getenv("LENDMARK_TEST_DB_SSL_MODE"), os.Getenv("DB_SSL_MODE"))

	if host == "" || port == "" || name == "" || user == "" {
		t.Skip("missing test DB env vars: set LENDMARK_TEST_DB_HOST/PORT/NAME/USER/PASSWORD (or DB_HOST/DB_PORT/DB_NAME/DB_USER/DB_PASSWORD)")
	}
	if ssl == "" {
		ssl = "disable"
	}

	db, err := dbpostgres.Connect(ctx, config.DatabaseConfig{
		DBHost:     host,
		DBPort:     port,
		DBName:     name,
		DBUser:     user,
		DBPassword: pass,
		DBSSLMode:  ssl,
	})
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	return db
}

func cleanupUsers(t *testing.T, db database.DB, ids []uuid.UUID) {
	t.Helper()
	if len(ids) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}
	if _, err := db.Exec(ctx, `DELETE FROM offers WHERE creator_id = ANY($1::uuid[]) OR acceptor_id = ANY($1::uuid[])`, raw); err != nil {
		t.Logf("cleanup offers: %v", err)
	}
	if _, err := db.Exec(ctx, `DELETE FROM users WHERE id = ANY($1::uuid[])`, raw); err != nil {
		t.Logf("cleanup users: %v", err)
	}
}

func (h *harness) summary(a account) summaryData {
	h.t.Helper()
	var s summaryData
	if status := h.call("GET", "/api/v1/users/me/summary", a.token, nil, &s); status != 200 {
		h.t.Fatalf("summary: status=%d", status)
	}
	return s
}

func (h *harness) register(prefix string) account {
	h.t.Helper()

	email := prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12] + "@example.test"
	var data authData
	status := h.call("POST", "/api/v1/auth/register", "", map[string]any{
		"email":     email,
		"password":  "integration-pass-1",
		"full_name": prefix,
	}, &data)
	if status != 201 {
		h.t.Fatalf("register %s: status=%d", email, status)
	}
	h.users = append(h.users, data.User.ID)
	return account{id: data.User.ID, token: data.AccessToken}
}

// call performs a request against the in-process app and decodes the
// envelope's data into out when out is non-nil.
func (h *harness) call(method, path, token string, payload any, out any) int {
	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			h.t.Errorf("marshal payload: %v", err)
			return 0
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.app.Fiber.Test(req)
	if err != nil {
		h.t.Errorf("%s %s: %v", method, path, err)
		return 0
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		var env semanticResponse
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			h.t.Errorf("%s %s: decode: %v", method, path, err)
			return resp.StatusCode
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			h.t.Errorf("%s %s: decode data: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func stringsOrDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
