// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	router "goalflow/internal/api"
	"goalflow/internal/api/handler"
	"goalflow/internal/config"
	"goalflow/internal/lock"
	"goalflow/internal/repository"
	"goalflow/internal/repository/postgres"
	"goalflow/internal/scheduler"
	"goalflow/internal/service"
	"goalflow/internal/util"
	"goalflow/pkg/db"
	"goalflow/pkg/rabbitmq"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB
	Redis  *redis.Client

	// Repositories
	AccountRepository  repository.AccountRepository
	MovementRepository repository.MovementRepository

	// Infrastructure
	Locker    lock.AccountLocker
	Publisher rabbitmq.Publisher
	Scheduler *scheduler.Scheduler

	// Services
	LedgerService   service.LedgerService
	ForecastService service.ForecastService

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger(cfg.LogLevel)
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.")

	// 3. Connect to Database
	database, err := db.NewPostgresDB(app.Config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	if app.Config.DB.AutoMigrate {
		if err := db.Migrate(ctx, app.DB); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
		app.Logger.Info("Database schema applied.")
	}

	// 4. Initialize Repositories
	app.AccountRepository = postgres.NewAccountRepository()
	app.MovementRepository = postgres.NewMovementRepository()
	app.Logger.Info("Repositories initialized.")

	// 5. Initialize account locking and event publishing
	if err := app.initLocker(ctx); err != nil {
		return err
	}
	app.initPublisher()

	// 6. Initialize Services
	// Pass the concrete db.BeginTx, db.CommitTx, db.RollbackTx functions from pkg/db
	app.LedgerService = service.NewLedgerService(service.LedgerDeps{
		DBBeginner:   app.DB, // This is the DBTxBeginner
		DBExecutor:   app.DB, // This is the DBExecutor
		AccountRepo:  app.AccountRepository,
		MovementRepo: app.MovementRepository,
		Locker:       app.Locker,
		Publisher:    app.Publisher,
		Logger:       app.Logger,
		BeginTx:      db.BeginTx,
		CommitTx:     db.CommitTx,
		RollbackTx:   db.RollbackTx,
	})
	app.ForecastService = service.NewForecastService(
		app.DB,
		app.AccountRepository,
		app.MovementRepository,
		service.ForecastDefaults{
			Horizon:        app.Config.Forecast.HorizonWeeks,
			AnnualRate:     app.Config.Forecast.AnnualRate,
			SpendingFactor: app.Config.Forecast.SpendingFactor,
			PeriodsPerYear: app.Config.Forecast.PeriodsPerYear,
		},
		app.Logger,
	)
	app.Logger.Info("Services initialized.")

	// 7. Initialize HTTP Handlers and Router
	app.HTTPHandler = router.NewRouter(router.Handlers{
		Account:  handler.NewAccountHandler(app.LedgerService, app.Logger),
		Movement: handler.NewMovementHandler(app.LedgerService, app.Logger),
		Forecast: handler.NewForecastHandler(app.ForecastService, app.Logger),
	}, app.Config.HTTPTimeout, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	// 8. Schedule the reconciliation sweep
	if app.Config.ReconcileSchedule != "" {
		jobs := scheduler.NewJobs(app.LedgerService, app.Logger, 0)
		app.Scheduler = scheduler.NewScheduler(jobs, app.Logger)
		if err := app.Scheduler.Start(app.Config.ReconcileSchedule); err != nil {
			return fmt.Errorf("failed to schedule reconciliation: %w", err)
		}
	}

	return nil
}

// initLocker uses Redis when REDIS_URL is set so every instance shares the
// per-account locks, and an in-process locker otherwise.
func (app *Application) initLocker(ctx context.Context) error {
	if app.Config.Lock.RedisURL == "" {
		app.Locker = lock.NewKeyedLocker()
		app.Logger.Info("Using in-process account locks.")
		return nil
	}

	opts, err := redis.ParseURL(app.Config.Lock.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	app.Redis = client
	app.Locker = lock.NewRedisLocker(client, app.Config.Lock.Prefix, app.Config.Lock.TTL, app.Config.Lock.Wait, app.Logger)
	app.Logger.Info("Using Redis account locks.", "prefix", app.Config.Lock.Prefix)
	return nil
}

// initPublisher connects to RabbitMQ when configured. Ledger events are best-effort,
// so an unreachable broker degrades to a no-op publisher instead of failing startup.
func (app *Application) initPublisher() {
	noop := &rabbitmq.NoopPublisher{Logger: app.Logger}
	if app.Config.Events.RabbitMQURL == "" {
		app.Publisher = noop
		app.Logger.Info("RABBITMQ_URL not set; ledger events disabled.")
		return
	}

	producer, err := rabbitmq.NewEventProducer(app.Config.Events.RabbitMQURL, app.Config.Events.Exchange, app.Logger)
	if err != nil {
		app.Logger.Warn("Failed to connect to RabbitMQ; ledger events disabled.", "error", err)
		app.Publisher = noop
		return
	}
	app.Publisher = producer
	app.Logger.Info("RabbitMQ producer initialized.", "exchange", app.Config.Events.Exchange)
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")

	if app.Scheduler != nil {
		select {
		case <-app.Scheduler.Stop().Done():
			app.Logger.Info("Scheduler stopped.")
		case <-ctx.Done():
			app.Logger.Warn("Scheduler did not stop before shutdown deadline.")
		}
	}
	if app.Publisher != nil {
		app.Publisher.Close()
	}
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			app.Logger.Error("Failed to close Redis connection", "error", err)
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
