// Package main is the entry point for the application.
// It initializes all dependencies, sets up the HTTP server,
// and starts the application.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adforge/internal/config"
	"adforge/internal/handlers"
	"adforge/internal/logging"
	"adforge/internal/middleware"
	"adforge/internal/repositories"
	"adforge/internal/repositories/cache"
	"adforge/internal/routes"
	"adforge/internal/services/notification"
	"adforge/internal/services/order"
	"adforge/internal/services/spend"
	"adforge/internal/services/wallet"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// main initializes and starts the HTTP server.
// It performs the following setup:
// - Loads configuration
// - Initializes database connection
// - Sets up dependency injection
// - Configures routes
// - Starts the HTTP server and the reconciliation sweep
func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := repositories.Open(cfg.DB)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	if err := repositories.Migrate(db); err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}
	logrus.WithField("driver", cfg.DB.Driver).Info("connected to database")

	var (
		redisClient  *redis.Client
		cacheService *cache.CacheService
	)
	if cfg.BalanceFeed == "redis" || config.GetBoolEnv("REDIS_CACHE", true) {
		redisClient = cache.NewRedisClient(cfg.Redis)
		cacheService = cache.NewCacheService(redisClient, wallet.ProfileCacheTTL)
		if err := cacheService.HealthCheck(context.Background()); err != nil {
			logrus.WithField("error", err.Error()).Warn("redis unavailable, continuing without profile cache")
			if cfg.BalanceFeed != "redis" {
				_ = cacheService.Close()
				redisClient, cacheService = nil, nil
			}
		}
	}

	transport, err := balanceTransport(cfg, db, redisClient)
	if err != nil {
		logrus.Fatalf("Failed to set up balance feed: %v", err)
	}
	broker := notification.NewBroker(notification.NewHub(), transport)

	var profiles wallet.ProfileCache
	var pinger handlers.Pinger
	if cacheService != nil {
		profiles = cacheService
		pinger = cacheService
	}

	ledger := wallet.NewService(
		repositories.NewWalletRepository(db),
		profiles,
		broker,
		ledgerConfig(cfg.Ledger),
		wallet.NewLogMetricsCollector(logrus.StandardLogger()),
	)
	orders := order.NewService(repositories.NewOrderRepository(db), nil)
	spendService := spend.NewService(orders, ledger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go broker.Run(ctx)
	go spendService.RunReconciler(ctx, cfg.Reconcile.Interval, cfg.Reconcile.PendingTimeout)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "adforge",
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())

	// CORS middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH",
		ExposeHeaders:    "Retry-After, X-Order-ID",
		AllowCredentials: true,
	}))

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.SetupRoutes(app, routes.Deps{
		Auth:                 middleware.NewAuthMiddleware(cfg.JWTSecret),
		Health:               handlers.NewHealthHandler(db, pinger),
		Wallet:               ledger,
		Orders:               orders,
		Spend:                spendService,
		OrderRateLimit:       cfg.OrderRateLimit,
		OrderRateLimitWindow: cfg.OrderRateLimitWindow,
		ReconcileTimeout:     cfg.Reconcile.PendingTimeout,
		StreamLifetime:       cfg.StreamLifetime,
	})

	go func() {
		<-ctx.Done()
		logrus.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logrus.WithField("error", err.Error()).Warn("server shutdown")
		}
	}()

	logrus.WithField("port", cfg.Port).Info("starting server")
	if err := app.Listen(":" + cfg.Port); err != nil {
		logrus.WithField("error", err.Error()).Error("server stopped")
	}

	if cacheService != nil {
		if err := cacheService.Close(); err != nil {
			logrus.WithField("error", err.Error()).Warn("failed to close redis connection")
		}
	}
	if err := repositories.Close(db); err != nil {
		logrus.WithField("error", err.Error()).Warn("failed to close database connection")
	}
}

func balanceTransport(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (notification.Transport, error) {
	switch cfg.BalanceFeed {
	case "redis":
		return notification.NewRedisTransport(redisClient), nil
	case "postgres":
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		return notification.NewPostgresTransport(sqlDB, cfg.DB.DSN()), nil
	default:
		return notification.NewLocalTransport(0), nil
	}
}

func ledgerConfig(c config.LedgerConfig) wallet.Config {
	policies := make(map[string]wallet.Policy, len(c.ToolPolicies))
	for tool, p := range c.ToolPolicies {
		policies[tool] = wallet.Policy{DailyLimit: p.DailyLimit, Cooldown: p.Cooldown}
	}
	return wallet.Config{
		TrialBalance:  c.TrialBalance,
		DefaultPolicy: wallet.Policy{DailyLimit: c.DefaultPolicy.DailyLimit, Cooldown: c.DefaultPolicy.Cooldown},
		Policies:      policies,
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	if code >= fiber.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"path":  c.Path(),
			"error": err.Error(),
		}).Error("unhandled error")
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
