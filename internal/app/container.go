package app

import (
	"context"
	"fmt"
	"time"

	"lendmark/internal/config"
	"lendmark/internal/database"
	"lendmark/internal/database/migration"
	dbpostgres "lendmark/internal/database/postgres"
	"lendmark/internal/database/seeder"
	"lendmark/internal/domain/user"
	"lendmark/internal/infrastructure/cache"
	"lendmark/internal/infrastructure/persistence/postgres"
	"lendmark/internal/metrics"
	"lendmark/internal/pkg/jwt"
	"lendmark/internal/pkg/logger"
	"lendmark/internal/repository"
	"lendmark/internal/usecase"
	ucauth "lendmark/internal/usecase/auth"
	"lendmark/internal/ws"
	"lendmark/migrations"

	"github.com/rs/zerolog"
)

// Container owns the process-wide dependencies. Both the HTTP server and
// the lendctl commands build one.
type Container struct {
	Config config.Config
	Logger zerolog.Logger
	DB     database.DB
	Cache  *cache.Redis
	Hub    *ws.Hub
	JWT    *jwt.HMACService

	Users         user.Repository
	Offers        repository.OfferRepository
	Payments      repository.PaymentRepository
	Notifications repository.NotificationRepository

	AuthUC         usecase.AuthUsecase
	UserUC         usecase.UserUsecase
	OfferUC        usecase.OfferUsecase
	PaymentUC      usecase.PaymentUsecase
	NotificationUC usecase.NotificationUsecase
	ReminderUC     usecase.ReminderUsecase
}

func NewContainer(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Container, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := dbpostgres.Connect(connectCtx, cfg.Database,
		dbpostgres.WithApplicationName(cfg.App.AppName),
		dbpostgres.WithSlowQueryLog(logger.Component(log, "db"), cfg.Database.SlowQueryThreshold),
		dbpostgres.WithQueryObserver(metrics.ObserveQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	metrics.TrackPool(db)

	redis := cache.NewRedis(cfg.Redis, logger.Component(log, "cache"))
	return NewContainerWithDeps(cfg, log, db, redis), nil
}

// NewContainerWithDeps wires repositories and usecases on top of an
// existing database and cache.
func NewContainerWithDeps(cfg config.Config, log zerolog.Logger, db database.DB, redis *cache.Redis) *Container {
	if redis == nil {
		redis = cache.NewDisabled()
	}

	c := &Container{
		Config: cfg,
		Logger: log,
		DB:     db,
		Cache:  redis,
		Hub:    ws.NewHub(logger.Component(log, "ws")),
		JWT: jwt.NewHMACService(
			cfg.App.AppName,
			cfg.JWT.AccessSecret,
			cfg.JWT.RefreshSecret,
			cfg.JWT.AccessExpiresIn,
			cfg.JWT.RefreshExpiresIn,
		),
	}

	c.Users = postgres.NewUserRepository(db)
	c.Offers = repository.NewPostgresOfferRepository(db)
	c.Payments = repository.NewPostgresPaymentRepository(db)
	c.Notifications = repository.NewPostgresNotificationRepository(db)

	ucLog := logger.Component(log, "usecase")
	c.AuthUC = usecase.NewAuthUsecase(ucauth.NewService(c.Users), c.Users, c.JWT, logger.Component(log, "auth"),
		usecase.WithSessionStore(cache.NewRefreshSessions(redis)),
	)
	c.UserUC = usecase.NewUserUsecase(c.Users, ucLog, usecase.WithUserCache(redis, cfg.Redis.TTL))
	c.OfferUC = usecase.NewOfferUsecase(db, c.Offers, c.Notifications, ucLog,
		usecase.WithOfferCache(redis, cfg.Redis.TTL),
		usecase.WithOfferPublisher(c.Hub),
	)
	c.PaymentUC = usecase.NewPaymentUsecase(db, c.Offers, c.Payments, c.Notifications, ucLog,
		usecase.WithPaymentCache(redis),
		usecase.WithPaymentPublisher(c.Hub),
	)
	c.NotificationUC = usecase.NewNotificationUsecase(c.Notifications, ucLog)
	c.ReminderUC = usecase.NewReminderUsecase(db, c.Offers, c.Notifications, c.Hub,
		cfg.Reminder.Workers, logger.Component(log, "reminders"))

	return c
}

func (c *Container) migrationRunner() migration.Runner {
	return migration.Runner{
		FS:     migrations.FS,
		Dir:    c.Config.Database.MigrationsDir,
		Logger: logger.Component(c.Logger, "migration"),
	}
}

func (c *Container) Migrate(ctx context.Context) error {
	if c == nil || c.DB == nil {
		return database.ErrNilDB
	}
	return c.migrationRunner().Run(ctx, c.DB.SQLDB())
}

func (c *Container) MigrationStatus(ctx context.Context) ([]migration.Status, error) {
	if c == nil || c.DB == nil {
		return nil, database.ErrNilDB
	}
	return c.migrationRunner().Status(ctx, c.DB.SQLDB())
}

// Seed runs the demo seeders, or only the named ones when given.
func (c *Container) Seed(ctx context.Context, only ...string) error {
	if c == nil || c.DB == nil {
		return database.ErrNilDB
	}
	r := seeder.Runner{
		Seeders: seeder.Defaults(),
		Only:    only,
		Logger:  logger.Component(c.Logger, "seeder"),
	}
	return r.Run(ctx, c.DB)
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			c.Logger.Warn().Err(err).Msg("close cache failed")
		}
	}
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
