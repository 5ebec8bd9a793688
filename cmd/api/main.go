// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/entitlement-engine/internal/admin"
	"github.com/carterperez-dev/entitlement-engine/internal/auth"
	"github.com/carterperez-dev/entitlement-engine/internal/catalog"
	"github.com/carterperez-dev/entitlement-engine/internal/config"
	"github.com/carterperez-dev/entitlement-engine/internal/core"
	"github.com/carterperez-dev/entitlement-engine/internal/entitlement"
	"github.com/carterperez-dev/entitlement-engine/internal/geo"
	"github.com/carterperez-dev/entitlement-engine/internal/health"
	"github.com/carterperez-dev/entitlement-engine/internal/identity"
	"github.com/carterperez-dev/entitlement-engine/internal/library"
	"github.com/carterperez-dev/entitlement-engine/internal/merge"
	"github.com/carterperez-dev/entitlement-engine/internal/middleware"
	"github.com/carterperez-dev/entitlement-engine/internal/payment"
	"github.com/carterperez-dev/entitlement-engine/internal/quota"
	"github.com/carterperez-dev/entitlement-engine/internal/redemption"
	"github.com/carterperez-dev/entitlement-engine/internal/server"
	"github.com/carterperez-dev/entitlement-engine/internal/settings"
	"github.com/carterperez-dev/entitlement-engine/internal/subscription"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	genKeys := flag.Bool("genkeys", false, "generate an ES256 key pair at the configured paths and exit")
	flag.Parse()

	if *genKeys {
		if err := generateKeys(*configPath); err != nil {
			slog.Error("key generation failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	tx := core.NewTxManager(db.DB)

	settingsSvc := settings.NewService(settings.NewRepository(db.DB), cfg.Pricing)
	locator := geo.NewLocator(cfg.Geo, geo.NewRedisCache(redis.Client), logger)
	resolver := catalog.NewResolver(catalog.NewRepository(db.DB))

	subRepo := subscription.NewRepository(db.DB)
	subSvc := subscription.NewService(subRepo, logger)

	libraryRepo := library.NewRepository(db.DB)
	redemptionRepo := redemption.NewRepository(db.DB)
	paymentRepo := payment.NewRepository(db.DB)

	merger := merge.NewService(tx, logger,
		library.NewListMergeStep(libraryRepo),
		library.NewProgressMergeStep(libraryRepo),
		redemption.NewTrialMergeStep(redemptionRepo),
		subscription.NewMergeStep(subRepo),
		payment.NewMergeStep(paymentRepo),
		redemption.NewUsageMergeStep(redemptionRepo),
	)

	identitySvc := identity.NewService(identity.NewRepository(db.DB), tx, merger, logger)

	redemptionSvc := redemption.NewService(redemptionRepo, tx, identitySvc, resolver, subSvc, logger)

	stripeGateway := payment.NewStripeGateway(cfg.Stripe)
	sifaloClient := payment.NewSifaloClient(cfg.Sifalo)
	logger.Info("payment gateways configured",
		"stripe", stripeGateway.Enabled(),
		"sifalo", sifaloClient.Enabled(),
		"default", cfg.Pricing.DefaultGateway,
	)

	paymentSvc := payment.NewService(payment.Deps{
		Repo:           paymentRepo,
		Tx:             tx,
		Settings:       settingsSvc,
		Pricer:         locator,
		Users:          identitySvc,
		Subscriptions:  subSvc,
		Codes:          redemptionSvc,
		Events:         payment.NewEventRepository(db.DB),
		Stripe:         stripeGateway,
		Sifalo:         sifaloClient,
		DefaultGateway: cfg.Pricing.DefaultGateway,
		Logger:         logger,
	})

	quotaSvc := quota.NewService(quota.NewRepository(db.DB), tx, settingsSvc, cfg.Quota.MinDailyLimit, logger)
	entitlementSvc := entitlement.NewService(identitySvc, subSvc, redemptionSvc, logger)
	authSvc := auth.NewService(jwtManager, identitySvc, identitySvc, logger)

	identityHandler := identity.NewHandler(identitySvc)
	redemptionHandler := redemption.NewHandler(redemptionSvc)
	paymentHandler := payment.NewHandler(paymentSvc, logger)
	quotaHandler := quota.NewHandler(quotaSvc)
	entitlementHandler := entitlement.NewHandler(entitlementSvc)
	settingsHandler := settings.NewHandler(settingsSvc)
	mergeHandler := merge.NewHandler(merger)
	authHandler := auth.NewHandler(authSvc)

	healthHandler := health.NewHandler(
		health.Check{Name: "database", Checker: db},
		health.Check{Name: "redis", Checker: redis},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		Subscriptions: subSvc,
		Payments:      paymentSvc,
		Codes:         redemptionSvc,
		DBStats:       db.Stats,
		RedisStats:    redis.PoolStats,
		DBPing:        db.Ping,
		RedisPing:     redis.Ping,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.App.Environment == "production"))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(jwtManager)
	adminOnly := middleware.RequireAdmin

	public := func(r chi.Router) {
		identityHandler.RegisterRoutes(r)
		redemptionHandler.RegisterRoutes(r)
		paymentHandler.RegisterRoutes(r)
		quotaHandler.RegisterRoutes(r)
		entitlementHandler.RegisterRoutes(r)
	}

	public(router)

	router.Route("/v1", func(r chi.Router) {
		public(r)

		authHandler.RegisterRoutes(r, authenticator)

		identityHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		redemptionHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		paymentHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		settingsHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		mergeHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func generateKeys(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := auth.GenerateKeyPair(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath); err != nil {
		return err
	}

	slog.Info("key pair written",
		"private_key", cfg.JWT.PrivateKeyPath,
		"public_key", cfg.JWT.PublicKeyPath,
	)
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
