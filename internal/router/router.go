package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/collab-room-api/internal/config"
	"github.com/noah-isme/collab-room-api/internal/handler"
	"github.com/noah-isme/collab-room-api/internal/middleware"
	"github.com/noah-isme/collab-room-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RoomHandler   *handler.RoomHandler
	UserHandler   *handler.UserHandler
	SocketHandler *handler.SocketHandler
	AdminHandler  *handler.AdminHandler
	Health        handler.HealthDeps
	Sessions      middleware.SessionResolver
}

// Register wires the HTTP routes into the fiber application. REST routes are served at the
// root and again under /api.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	health := handler.HealthCheck(cfg, deps.Health)
	app.Get("/health", health)
	app.Get("/api/health", health)
	app.Get("/metrics", observability.MetricsHandler())

	if deps.SocketHandler != nil {
		deps.SocketHandler.Register(app)
	}

	app.Use(middleware.OptionalJWT(cfg.JWTSecret))
	app.Use(middleware.SessionIdentity(deps.Sessions))

	for _, prefix := range []string{"/", "/api"} {
		group := app.Group(prefix, func(c *fiber.Ctx) error {
			c.Set("X-Application", cfg.AppName)
			return c.Next()
		})

		if deps.RoomHandler != nil {
			deps.RoomHandler.Register(group)
		}
		if deps.UserHandler != nil {
			deps.UserHandler.Register(group)
		}
		if deps.AdminHandler != nil {
			deps.AdminHandler.Register(group)
		}
	}
}
