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

	"github.com/bpa-library/library/internal/admin"
	"github.com/bpa-library/library/internal/auth"
	"github.com/bpa-library/library/internal/catalog"
	"github.com/bpa-library/library/internal/config"
	"github.com/bpa-library/library/internal/core"
	"github.com/bpa-library/library/internal/gateway"
	"github.com/bpa-library/library/internal/health"
	"github.com/bpa-library/library/internal/library"
	"github.com/bpa-library/library/internal/middleware"
	"github.com/bpa-library/library/internal/playback"
	"github.com/bpa-library/library/internal/server"
	"github.com/bpa-library/library/internal/storage"
	"github.com/bpa-library/library/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

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

	dialect, err := gateway.ParseDialect(cfg.Database.Dialect)
	if err != nil {
		return err
	}

	broker, err := gateway.NewBroker(ctx, dialect, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"dialect", dialect.String(),
		"max_open_conns", cfg.Database.MaxOpenConns,
		"query_timeout", cfg.Database.QueryTimeout.String(),
	)
	exec := gateway.NewExecutor(broker, logger)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
		"key_prefix", cfg.Redis.KeyPrefix,
	)

	objects, err := storage.NewMinioStore(cfg.Storage)
	if err != nil {
		return err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		logger.Warn("object storage not reachable at startup", "error", err)
	} else {
		logger.Info("object storage ready", "bucket", cfg.Storage.Bucket)
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	userRepo := user.NewRepository(exec)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	authSvc := auth.NewService(jwtManager, userSvc, redis)
	authHandler := auth.NewHandler(authSvc)

	playbackRepo := playback.NewRepository(exec)
	engine := playback.NewEngine(playbackRepo,
		playback.WithWindow(cfg.Playback.Window),
		playback.WithLogger(logger),
	)
	playbackHandler := playback.NewHandler(playback.NewService(engine, playbackRepo))

	catalogRepo := catalog.NewRepository(exec)
	catalogSvc := catalog.NewService(catalogRepo, objects, cfg.Storage, logger)
	catalogHandler := catalog.NewHandler(catalogSvc, cfg.Server.MaxUploadBytes)

	libraryHandler := library.NewHandler(library.NewService(library.NewRepository(exec)))

	healthHandler := health.NewHandler(
		health.Check{Name: "database", Checker: broker},
		health.Check{Name: "redis", Checker: redis},
		health.Check{Name: "storage", Checker: objects},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    broker.Stats,
		DBPing:     broker.Ping,
		RedisStats: redis.PoolStats,
		RedisPing:  redis.Ping,
		Catalog:    catalogRepo,
		Users:      userSvc,
		Storage:    objects,
		Logger:     logger,
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
		middleware.NewRateLimiter(redis, middleware.RateLimitConfig{
			Limit:      middleware.PerWindow(cfg.RateLimit),
			BypassFunc: middleware.BypassHealth,
			Logger:     logger,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(authSvc)
	adminOnly := middleware.RequireAdmin

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)

		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		playbackHandler.RegisterRoutes(r, authenticator)
		playbackHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		catalogHandler.RegisterRoutes(r, authenticator)
		catalogHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		libraryHandler.RegisterRoutes(r, authenticator)
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

	if err := broker.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
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

	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
