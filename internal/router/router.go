package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-teacher-panel/internal/config"
	"github.com/noah-isme/gema-teacher-panel/internal/handler"
	"github.com/noah-isme/gema-teacher-panel/internal/middleware"
)

// TeacherPrefix is where every panel page lives.
const TeacherPrefix = "/api/v1/teacher"

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	DashboardHandler  *handler.DashboardHandler
	CapabilityHandler *handler.CapabilityHandler
	SectionHandler    *handler.SectionHandler
	ProblemHandler    *handler.ProblemHandler
	SubmissionHandler *handler.SubmissionHandler
	TestHandler       *handler.TestHandler
	AnalyticsHandler  *handler.AnalyticsHandler
	ActivityHandler   *handler.ActivityHandler

	JWTMiddleware fiber.Handler
	RateLimit     fiber.Handler
	Metrics       fiber.Handler
	Health        map[string]handler.Pinger
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Health))
	if deps.Metrics != nil {
		api.Get("/metrics", deps.Metrics)
	}

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = passThrough
	}
	rateLimit := deps.RateLimit
	if rateLimit == nil {
		rateLimit = passThrough
	}

	teacher := app.Group(TeacherPrefix, jwtMiddleware, middleware.RequireRole("teacher", "admin"), rateLimit)

	if deps.DashboardHandler != nil {
		deps.DashboardHandler.Register(teacher.Group("/dashboard"))
	}
	if deps.CapabilityHandler != nil {
		deps.CapabilityHandler.Register(teacher.Group("/capabilities"))
	}
	if deps.SectionHandler != nil {
		deps.SectionHandler.Register(teacher.Group("/sections"))
	}
	if deps.ProblemHandler != nil {
		deps.ProblemHandler.Register(teacher.Group("/problems"))
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(teacher.Group("/submissions"))
	}
	if deps.TestHandler != nil {
		deps.TestHandler.Register(teacher.Group("/tests"))
	}
	if deps.AnalyticsHandler != nil {
		deps.AnalyticsHandler.Register(teacher.Group("/analytics"))
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(teacher.Group("/activity"))
	}
}

func passThrough(c *fiber.Ctx) error {
	return c.Next()
}
