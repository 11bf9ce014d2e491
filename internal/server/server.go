package server

import (
	"context"

	"letscollab-be/internal/bootstrap"
	"letscollab-be/internal/config"
	"letscollab-be/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

type healthResponse struct {
	Instance    string `json:"instance"`
	Connections int    `json:"connections"`
	Rooms       int    `json:"rooms"`
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	// Snapshot saves carry the whole element array, so the REST body limit
	// follows the socket frame limit.
	app := fiber.New(fiber.Config{
		BodyLimit:             int(cfg.Collab.MaxMessageBytes),
		DisableStartupMessage: cfg.App.Environment == "production",
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PATCH, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
	}))
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/healthz"
	})))
	app.Use(serverutils.ErrorHandlerMiddleware())

	app.Get("/healthz", func(ctx *fiber.Ctx) error {
		return ctx.JSON(serverutils.SuccessResponse("ok", healthResponse{
			Instance:    container.InstanceID,
			Connections: container.WebSocketHub.ClientCount(),
			Rooms:       container.Presence.SessionCount(),
		}))
	})

	registerRoutes(app, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	s.container.Logger.Info("SERVER", "Listening", map[string]interface{}{
		"port":     s.cfg.App.Port,
		"instance": s.container.InstanceID,
	})
	return s.app.Listen(":" + s.cfg.App.Port)
}

// Shutdown stops accepting requests and waits for in-flight ones. Upgraded
// sockets are not tracked by fiber; the hub closes them when the container's
// context ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	api := app.Group("/api")

	c.BoardController.RegisterRoutes(api)
	c.CollabHandler.RegisterRoutes(api)
}
