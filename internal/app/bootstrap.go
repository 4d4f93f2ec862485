package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lendmark/internal/config"
	"lendmark/internal/delivery/http/handler"
	"lendmark/internal/delivery/http/middleware"
	"lendmark/internal/delivery/http/routes"
	v1 "lendmark/internal/delivery/http/routes/v1"
	"lendmark/internal/metrics"
	"lendmark/internal/pkg/logger"
	"lendmark/internal/scheduler"
	"lendmark/internal/ws"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/rs/zerolog"
)

type App struct {
	Fiber     *fiber.App
	Container *Container
	Scheduler *scheduler.Scheduler
}

// New builds the HTTP application on top of a wired container. It does not
// start background workers.
func New(c *Container) *App {
	f := fiber.New(fiber.Config{
		AppName:   c.Config.App.AppName,
		BodyLimit: 1 << 20,
	})

	registerGlobalMiddleware(f, c.Logger)
	registerRoutes(f, c)

	return &App{Fiber: f, Container: c}
}

// Bootstrap connects dependencies, applies migrations and seeds as
// configured, and starts the websocket hub and reminder schedule. The
// returned cleanup stops them in reverse order.
func Bootstrap(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, func() error, error) {
	c, err := NewContainer(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Database.RunMigrations {
		if err := c.Migrate(ctx); err != nil {
			_ = c.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	if cfg.Database.RunSeeders {
		if err := c.Seed(ctx); err != nil {
			_ = c.Close()
			return nil, nil, fmt.Errorf("seed: %w", err)
		}
	}

	a := New(c)

	hubCtx, stopHub := context.WithCancel(context.Background())
	go c.Hub.Run(hubCtx)

	sched := scheduler.New(logger.Component(log, "scheduler"), 5*time.Minute)
	err = sched.Add("overdue-reminders", cfg.Reminder.Schedule, func(ctx context.Context) error {
		_, err := c.ReminderUC.RunOnce(ctx)
		return err
	})
	if err != nil {
		stopHub()
		_ = c.Close()
		return nil, nil, err
	}
	sched.Start()
	a.Scheduler = sched

	cleanup := func() error {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sched.Stop(stopCtx); err != nil {
			log.Warn().Err(err).Msg("scheduler stop timed out")
		}
		stopHub()
		return c.Close()
	}
	return a, cleanup, nil
}

func registerGlobalMiddleware(app *fiber.App, log zerolog.Logger) {
	if app == nil {
		return
	}

	app.Use(metrics.Middleware())
	app.Use(middleware.NewAccessLogMiddleware(logger.Component(log, "http")).Middleware())
	app.Use(middleware.NewErrorMiddleware(logger.Component(log, "http")).Middleware())
}

func registerRoutes(app *fiber.App, c *Container) {
	if app == nil || c == nil {
		return
	}

	authMw := middleware.NewAuthMiddleware(c.JWT)
	rateLimit := middleware.NewRateLimitMiddleware(c.Config.RateLimit.RPS, c.Config.RateLimit.Burst)
	wsHandler := ws.NewHandler(c.Hub, authMw, logger.Component(c.Logger, "ws"),
		ws.WithAllowedOrigins(c.Config.WS.AllowedOrigins),
	)

	registry := routes.NewRegistry(
		handler.NewHealthHandler(c.DB, c.Cache),
		adaptor.HTTPHandler(metrics.Handler()),
		wsHandler.HandleNotificationsWS,
		v1.Handlers{
			Auth:          handler.NewAuthHandler(c.AuthUC),
			User:          handler.NewUserHandler(c.UserUC),
			Offer:         handler.NewOfferHandler(c.OfferUC),
			Payment:       handler.NewPaymentHandler(c.PaymentUC),
			Notification:  handler.NewNotificationHandler(c.NotificationUC),
			RequireAuth:   authMw.Middleware(),
			AuthRateLimit: rateLimit.Middleware(),
		},
	)
	registry.Register(app)
}

func ListenAddr(port string) (string, error) {
	p := strings.TrimSpace(port)
	if p == "" {
		return "", fmt.Errorf("empty HTTP port")
	}
	if strings.HasPrefix(p, ":") {
		return p, nil
	}
	return ":" + p, nil
}
