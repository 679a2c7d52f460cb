package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"

	"github.com/spec-kit/users-backend/internal/api/http/handlers"
	"github.com/spec-kit/users-backend/internal/auth"
	"github.com/spec-kit/users-backend/internal/config"
	"github.com/spec-kit/users-backend/internal/events"
	"github.com/spec-kit/users-backend/internal/observability"
	"github.com/spec-kit/users-backend/pkg/util"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Login          *handlers.LoginHandler
	Users          *handlers.UsersHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
	Policy         *auth.PolicyTable
	Events         events.Dispatcher
	Logger         *zap.Logger
	LoginPath      string
	LoginThrottle  ThrottleConfig
}

// ThrottleConfig limits failed logins per client IP. MaxFailures <= 0 disables it.
type ThrottleConfig struct {
	MaxFailures int
	Window      time.Duration
	Storage     fiber.Storage
}

// ServerConfig is everything NewApp needs.
type ServerConfig struct {
	AppName        string
	RequestTimeout time.Duration
	CORS           config.CORSConfig
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Routes         RouteConfig
}

// NewApp builds the fiber application with its full middleware chain.
func NewApp(cfg ServerConfig) *fiber.App {
	// Routes match paths exactly as the policy table sees them.
	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		CaseSensitive:         true,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, cfg.Logger, cfg.Metrics, cfg.RequestTimeout, cfg.CORS)
	RegisterRoutes(app, cfg.Routes)
	return app
}

// RegisterRoutes wires HTTP routes. The login route is terminal and registered ahead
// of token validation; every later route passes validation then the policy table.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Post(cfg.LoginPath, loginThrottle(cfg.LoginThrottle), cfg.Login.Login)

	app.Use(cfg.AuthMiddleware.Handle)
	app.Use(auth.Authorize(cfg.Policy, cfg.Logger, cfg.Events))

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Show)

	users := app.Group("/api/users")
	users.Get("", cfg.Users.List)
	users.Get("/:id", cfg.Users.Show)
	users.Post("", cfg.Users.Create)
	users.Put("/:id", cfg.Users.Update)
	users.Delete("/:id", cfg.Users.Delete)
}

func loginThrottle(cfg ThrottleConfig) fiber.Handler {
	if cfg.MaxFailures <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:                    cfg.MaxFailures,
		Expiration:             cfg.Window,
		KeyGenerator:           func(c *fiber.Ctx) string { return "login:" + c.IP() },
		SkipSuccessfulRequests: true,
		Storage:                cfg.Storage,
		LimitReached: func(c *fiber.Ctx) error {
			return util.NewTooManyRequests("too many failed login attempts")
		},
	})
}
