package auth

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// AppOptions carries everything NewHTTPApp mounts. Only Controller is
// required.
type AppOptions struct {
	Logger         Logger
	Controller     *AuthController
	Mediator       *Mediator
	Limiter        *IPRateLimiter
	Metrics        *Metrics
	RequestTimeout time.Duration
	Health         HealthCheck
}

// NewHTTPApp builds the fiber application serving the auth endpoints.
func NewHTTPApp(opts AppOptions) *fiber.App {
	if opts.Controller == nil {
		panic("Missing AuthController in http app...")
	}

	logger := opts.Logger
	if logger == nil {
		logger = defaultLogger()
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-auth",
		DisableStartupMessage: true,
		ErrorHandler:          NewErrorHandler(logger),
	})

	if opts.Metrics != nil {
		app.Use(opts.Metrics.Middleware())
	}
	app.Use(RequestTimeout(opts.RequestTimeout))

	app.Get("/health", func(c *fiber.Ctx) error {
		if opts.Health != nil {
			if err := opts.Health(c.UserContext()); err != nil {
				logger.Error("health check failed", "error", err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
					Status:  "error",
					Message: "unavailable",
				})
			}
		}
		return respondSuccess(c, fiber.StatusOK, fiber.Map{"status": "ok"})
	}).Name("health.get")

	if opts.Metrics != nil {
		app.Get("/metrics", opts.Metrics.Handler()).Name("metrics.get")
	}

	var protected, limiter fiber.Handler
	if opts.Mediator != nil {
		protected = opts.Mediator.Middleware()
	}
	if opts.Limiter != nil {
		limiter = opts.Limiter.Middleware()
	}

	opts.Controller.RegisterRoutes(app, protected, limiter)

	return app
}
