package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/users-backend/internal/api/http"
	"github.com/spec-kit/users-backend/internal/api/http/handlers"
	"github.com/spec-kit/users-backend/internal/auth"
	"github.com/spec-kit/users-backend/internal/config"
	"github.com/spec-kit/users-backend/internal/events"
	"github.com/spec-kit/users-backend/internal/observability"
	"github.com/spec-kit/users-backend/internal/persistence"
	"github.com/spec-kit/users-backend/internal/repository"
	"github.com/spec-kit/users-backend/internal/service"
	"github.com/spec-kit/users-backend/internal/worker"
)

const (
	shutdownTimeout   = 10 * time.Second
	throttleKeyPrefix = "users-backend:throttle:"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	// The signing key must exist before the server accepts a single request.
	key, err := auth.NewSigningKey(cfg.Auth.JWTSecret)
	if err != nil {
		logger.Fatal("invalid signing key", zap.Error(err))
	}
	codec := auth.NewTokenCodec(key, cfg.Auth.TokenTTL())

	policy := auth.DefaultPolicyTable()
	if cfg.Auth.PolicyFile != "" {
		policy, err = auth.LoadPolicyFile(cfg.Auth.PolicyFile)
		if err != nil {
			logger.Fatal("failed to load policy table", zap.Error(err))
		}
	}
	logger.Info("policy table loaded", zap.Int("rules", len(policy.Rules())), zap.String("source", policySource(cfg.Auth.PolicyFile)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var userRepo repository.UserRepository
	if pg != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, persistence.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		userRepo = repository.NewUserRepository(pg.Pool)
	} else {
		userRepo = repository.NewMemoryUserRepository()
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var throttleStorage fiber.Storage
	if redis != nil {
		throttleStorage = persistence.NewRedisStorage(redis.Client, throttleKeyPrefix)
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, metrics))

	userService := service.NewUserService(userRepo, cfg.Auth.BcryptCost, logger)
	if cfg.Auth.BootstrapAdminUsername != "" {
		if err := userService.EnsureAdmin(ctx, cfg.Auth.BootstrapAdminUsername, cfg.Auth.BootstrapAdminPassword); err != nil {
			logger.Fatal("failed to seed bootstrap admin", zap.Error(err))
		}
	}

	authenticator, err := auth.NewPasswordAuthenticator(userRepo, cfg.Auth.BcryptCost)
	if err != nil {
		logger.Fatal("failed to init authenticator", zap.Error(err))
	}
	authService := service.NewAuthService(authenticator, codec, dispatcher, logger)

	healthDeps := map[string]handlers.Pinger{"postgres": nil, "redis": nil}
	if pg != nil {
		healthDeps["postgres"] = pg
	}
	if redis != nil {
		healthDeps["redis"] = redis
	}

	app := httptransport.NewApp(httptransport.ServerConfig{
		AppName:        cfg.App.Name,
		RequestTimeout: cfg.App.RequestTimeout(),
		CORS:           cfg.CORS,
		Logger:         logger,
		Metrics:        metrics,
		Routes: httptransport.RouteConfig{
			Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, healthDeps),
			Login:          handlers.NewLoginHandler(authService),
			Users:          handlers.NewUsersHandler(userService),
			Metrics:        handlers.NewMetricsHandler(metrics),
			AuthMiddleware: auth.NewAuthMiddleware(codec, logger, dispatcher, cfg.Auth.LoginPath),
			Policy:         policy,
			Events:         dispatcher,
			Logger:         logger,
			LoginPath:      cfg.Auth.LoginPath,
			LoginThrottle: httptransport.ThrottleConfig{
				MaxFailures: cfg.Auth.LoginMaxFailures,
				Window:      cfg.Auth.LoginWindow(),
				Storage:     throttleStorage,
			},
		},
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func policySource(path string) string {
	if path == "" {
		return "default"
	}
	return path
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
