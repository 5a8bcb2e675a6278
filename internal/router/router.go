package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lousydropout/vocab-recommendation-sub000/internal/config"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/handler"
	"github.com/lousydropout/vocab-recommendation-sub000/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EssayHandler      *handler.EssayHandler
	AuthHandler       *handler.AuthHandler
	AssignmentHandler *handler.AssignmentHandler
	StudentHandler    *handler.StudentHandler
	MetricsHandler    *handler.MetricsHandler
	JWTMiddleware     fiber.Handler
	OptionalJWT       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})

	app.Get("/health", handler.HealthCheck())
	app.Get(observability.MetricsPath, observability.MetricsHandler())

	passThrough := func(c *fiber.Ctx) error { return c.Next() }

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = passThrough
	}
	optionalJWT := deps.OptionalJWT
	if optionalJWT == nil {
		optionalJWT = passThrough
	}

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(app.Group("/auth", jwtMiddleware))
	}

	assignments := app.Group("/assignments", jwtMiddleware)

	// Essay submission and status accept anonymous callers; overrides and assignment uploads do not.
	if deps.EssayHandler != nil {
		deps.EssayHandler.Register(app.Group("/essay", optionalJWT))
		deps.EssayHandler.RegisterOverride(app.Group("/essays", jwtMiddleware))
		deps.EssayHandler.RegisterAssignmentUpload(assignments)
	}

	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(assignments)
	}

	if deps.StudentHandler != nil {
		deps.StudentHandler.Register(app.Group("/students", jwtMiddleware))
	}

	if deps.MetricsHandler != nil {
		deps.MetricsHandler.Register(app.Group("/metrics", jwtMiddleware))
	}
}
