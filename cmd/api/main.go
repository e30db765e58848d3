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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/carterperez-dev/templates/lms-backend/internal/account"
	"github.com/carterperez-dev/templates/lms-backend/internal/admin"
	"github.com/carterperez-dev/templates/lms-backend/internal/auth"
	"github.com/carterperez-dev/templates/lms-backend/internal/config"
	"github.com/carterperez-dev/templates/lms-backend/internal/core"
	"github.com/carterperez-dev/templates/lms-backend/internal/health"
	"github.com/carterperez-dev/templates/lms-backend/internal/middleware"
	"github.com/carterperez-dev/templates/lms-backend/internal/mq"
	"github.com/carterperez-dev/templates/lms-backend/internal/notify"
	"github.com/carterperez-dev/templates/lms-backend/internal/server"
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

	logger := core.NewLogger(cfg.Log)
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

	queue, err := mq.New(cfg.Queue, redis.Client)
	if err != nil {
		return err
	}
	logger.Info("notification queue ready",
		"backend", cfg.Queue.Backend,
		"channel", cfg.Queue.Name,
	)

	emitter := notify.NewQueueEmitter(queue, cfg.Queue, logger)

	tokens, err := auth.NewTokenManager(cfg.Auth)
	if err != nil {
		return err
	}
	logger.Info("token manager initialized",
		"algorithm", "HS256",
		"issuer", cfg.Auth.Issuer,
	)

	accountStore := account.NewRepository(db.DB)
	accountSvc := account.NewService(accountStore)
	accountHandler := account.NewHandler(accountSvc)

	authSvc := auth.NewService(
		accountStore,
		tokens,
		core.Argon2Hasher{},
		emitter,
		auth.Config{
			AccessTokenTTL:  cfg.Auth.AccessTokenExpire,
			RefreshTokenTTL: cfg.Auth.RefreshTokenExpire,
			FrontendURL:     cfg.App.FrontendURL,
		},
		auth.WithLogger(logger),
	)
	authHandler := auth.NewHandler(authSvc, auth.HandlerConfig{
		MobileClientHeader: cfg.Auth.MobileClientHeader,
		RefererHeader:      cfg.Auth.RefererHeader,
		Production:         cfg.IsProduction(),
		AccessTokenTTL:     cfg.Auth.AccessTokenExpire,
		RefreshTokenTTL:    cfg.Auth.RefreshTokenExpire,
	})

	checks := []health.Check{
		{Name: "database", Checker: db},
		{Name: "redis", Checker: redis},
	}
	if cfg.Queue.Backend == config.QueueBackendRabbitMQ {
		checks = append(checks, health.Check{Name: "queue", Checker: queue})
	}
	healthHandler := health.NewHandler(checks...)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		Accounts:   accountSvc,
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	if cfg.Metrics.Enabled {
		router.Use(middleware.NewMetrics(prometheus.DefaultRegisterer).Handler)
	}
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Name: "global",
			Limit: middleware.PerWindow(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
				cfg.RateLimit.Window,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(
		cfg.CORS,
		cfg.Auth.MobileClientHeader,
		cfg.Auth.RefererHeader,
	))

	healthHandler.RegisterRoutes(router)
	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, middleware.MetricsHandler(prometheus.DefaultGatherer))
	}

	authLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Name: "auth",
		Limit: middleware.PerWindow(
			cfg.RateLimit.AuthRequests,
			cfg.RateLimit.AuthBurst,
			cfg.RateLimit.Window,
		),
		FailOpen: true,
	})

	authenticator := middleware.Authenticator(tokens)
	superAdminOnly := middleware.RequireRole(account.RoleSuperAdmin)

	authHandler.RegisterRoutes(router, authenticator, authLimiter.Handler)
	accountHandler.RegisterRoutes(router, authenticator)
	adminHandler.RegisterRoutes(router, authenticator, superAdminOnly)

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

	if err := emitter.Close(shutdownCtx); err != nil {
		logger.Error("notification emitter close error", "error", err)
	}

	if err := queue.Close(); err != nil {
		logger.Error("queue close error", "error", err)
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
