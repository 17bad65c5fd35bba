package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Users  *handlers.UsersHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	health := app.Group("/health")
	health.Get("/live", cfg.Health.Live)
	health.Get("/ready", cfg.Health.Ready)
	health.Get("/metrics", cfg.Health.Metrics)

	account := app.Group("/api/account")
	account.Post("/register", cfg.Users.Register)
	account.Post("/authenticate", cfg.Users.Authenticate)

	// Fixed paths must precede /:userId.
	account.Get("/email", cfg.Users.GetByEmail)
	account.Get("/name", cfg.Users.ListByName)
	account.Get("/all", cfg.Users.ListAll)
	account.Get("/:userId", cfg.Users.Get)

	account.Put("/:userId", cfg.Users.Update)
	account.Delete("/permanent/:userId", cfg.Users.HardDelete)
	account.Delete("/:userId", cfg.Users.SoftDelete)
}
