package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/chaoscast/chaoscast/internal/config"
	"github.com/chaoscast/chaoscast/internal/handlers"
	"github.com/chaoscast/chaoscast/internal/logging"
	"github.com/chaoscast/chaoscast/internal/metrics"
	"github.com/chaoscast/chaoscast/internal/middleware"
	"github.com/chaoscast/chaoscast/internal/queue"
	"github.com/chaoscast/chaoscast/internal/services"
	"github.com/chaoscast/chaoscast/internal/storage"
)

// Deps are the shared components the routes are served from
type Deps struct {
	Store   storage.Store
	Events  *queue.Emitter
	Metrics *metrics.Recorder
}

// Setup configures all routes and middlewares
func Setup(app *fiber.App, logger *logging.Logger, deps Deps, cfg *config.Config) *handlers.Handler {
	projects := services.NewProjectService(logger, deps.Store, deps.Events, cfg.ProjectsDir())
	pipeline := services.NewPipelineService(logger, deps.Store, deps.Events, deps.Metrics, cfg)
	h := handlers.New(logger, projects, pipeline)

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID",
	}))
	app.Use(logging.FiberMiddleware(logger))

	// Health check and metrics (no auth required)
	app.Get("/health", h.Health)
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	authMiddleware := middleware.APIKeyAuth(logger, cfg.Auth.APIKeys, cfg.Auth.Enabled)
	v1 := app.Group("/v1", authMiddleware)

	// Project Management Routes
	v1.Post("/projects", h.CreateProject)
	v1.Get("/projects", h.ListProjects)
	v1.Get("/projects/:id", h.GetProject)
	v1.Patch("/projects/:id", h.UpdateProject)
	v1.Delete("/projects/:id", h.DeleteProject)
	v1.Get("/projects/:id/snapshot", h.GetSnapshot)

	// Pipeline Routes
	v1.Post("/projects/:id/upload", h.Upload)
	v1.Post("/projects/:id/select", h.SelectColumns)
	v1.Post("/projects/:id/preprocess", h.Preprocess)
	v1.Post("/projects/:id/train", h.Train)
	v1.Post("/projects/:id/forecast", h.Forecast)

	// 404 handler
	app.Use(h.NotFound)

	return h
}

// New creates a new Fiber app with configuration
func New(logger *logging.Logger, deps Deps, cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "ChaosCast API",
		DisableStartupMessage: true,
		BodyLimit:             cfg.Server.BodyLimit(),
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	Setup(app, logger, deps, cfg)

	return app
}
