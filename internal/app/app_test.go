package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lendmark/internal/config"
	"lendmark/internal/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("database down")

type downRow struct{}

func (downRow) Scan(...any) error { return errDown }

type downDB struct{}

func (downDB) Exec(context.Context, string, ...any) (int64, error)          { return 0, errDown }
func (downDB) Query(context.Context, string, ...any) (database.Rows, error) { return nil, errDown }
func (downDB) QueryRow(context.Context, string, ...any) database.Row        { return downRow{} }
func (downDB) Ping(context.Context) error                                   { return errDown }
func (downDB) Close() error                                                 { return nil }
func (downDB) SQLDB() *sql.DB                                               { return nil }
func (downDB) Begin(context.Context) (database.Tx, error)                   { return nil, errDown }

func testConfig() config.Config {
	return config.Config{
		App: config.AppConfig{AppName: "lendmark", Environment: "test", HTTPPort: "0"},
		JWT: config.JWTConfig{
			AccessSecret:     "access-secret",
			RefreshSecret:    "refresh-secret",
			AccessExpiresIn:  time.Minute,
			RefreshExpiresIn: time.Hour,
		},
		RateLimit: config.RateLimitConfig{RPS: 100, Burst: 100},
		Reminder:  config.ReminderConfig{Schedule: "@every 1h", Workers: 1},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	c := NewContainerWithDeps(testConfig(), zerolog.Nop(), downDB{}, nil)
	return New(c)
}

func body(t *testing.T, r io.Reader) string {
	t.Helper()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func TestApp_HealthReportsDependencies(t *testing.T) {
	a := newTestApp(t)

	resp, err := a.Fiber.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	b := body(t, resp.Body)
	assert.Contains(t, b, `"database":"down"`)
	assert.Contains(t, b, `"cache":"down"`)
}

func TestApp_ProtectedRoutesRequireToken(t *testing.T) {
	a := newTestApp(t)

	for _, path := range []string{
		"/api/v1/users/me",
		"/api/v1/offers",
		"/api/v1/offers/recommended",
		"/api/v1/payments/mine",
		"/api/v1/notifications",
	} {
		resp, err := a.Fiber.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode, path)
	}
}

func TestApp_AuthenticatedRequestReachesUsecase(t *testing.T) {
	a := newTestApp(t)
	pair, err := a.Container.JWT.IssuePair(uuid.New(), "user@lendmark.test")
	require.NoError(t, err)
	token := pair.AccessToken

	req := httptest.NewRequest("GET", "/api/v1/offers?limit=5", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := a.Fiber.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	assert.NotContains(t, body(t, resp.Body), "database down")

	req = httptest.NewRequest("GET", "/api/v1/offers/not-a-uuid", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = a.Fiber.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestApp_RegisterValidatesBeforeTouchingDatabase(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest("POST", "/api/v1/auth/register",
		strings.NewReader(`{"email":"not-an-email","password":"short","full_name":"X"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.Fiber.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestApp_LogoutAcceptsRefreshTokensOnly(t *testing.T) {
	a := newTestApp(t)
	pair, err := a.Container.JWT.IssuePair(uuid.New(), "user@lendmark.test")
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	resp, err := a.Fiber.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	req = httptest.NewRequest("POST", "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	resp, err = a.Fiber.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestApp_MetricsAndWebsocketRoutes(t *testing.T) {
	a := newTestApp(t)

	resp, err := a.Fiber.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, body(t, resp.Body), "lendmark_http_")

	resp, err = a.Fiber.Test(httptest.NewRequest("GET", "/ws/notifications", nil))
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestListenAddr(t *testing.T) {
	addr, err := ListenAddr("8080")
	require.NoError(t, err)
	assert.Equal(t, ":8080", addr)

	addr, err = ListenAddr(":9090")
	require.NoError(t, err)
	assert.Equal(t, ":9090", addr)

	_, err = ListenAddr("  ")
	assert.Error(t, err)
}
