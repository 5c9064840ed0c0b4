package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/campus-core-api/internal/config"
	"github.com/noah-isme/campus-core-api/internal/handler"
	"github.com/noah-isme/campus-core-api/internal/middleware"
	"github.com/noah-isme/campus-core-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssignmentHandler *handler.AssignmentHandler
	SubmissionHandler *handler.SubmissionHandler
	GradingHandler    *handler.GradingHandler
	AnalyticsHandler  *handler.AnalyticsHandler
	ActivityHandler   *handler.ActivityHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	facultyOnly := middleware.RequireRole("faculty", "admin")

	if deps.AssignmentHandler != nil {
		assignments := api.Group("/assignments", jwtMiddleware)
		deps.AssignmentHandler.Register(assignments)
		deps.AssignmentHandler.RegisterFaculty(assignments.Group("", facultyOnly))

		if deps.SubmissionHandler != nil {
			// Submissions are rate limited per user to keep resubmission
			// loops from hammering storage and auto-grading.
			deps.SubmissionHandler.Register(assignments.Group("", middleware.RateLimit("submissions", 30, time.Minute)))
		}
		if deps.GradingHandler != nil {
			deps.GradingHandler.Register(assignments.Group("", facultyOnly))
		}
	}

	if deps.SubmissionHandler != nil {
		submissions := api.Group("/submissions", jwtMiddleware)
		deps.SubmissionHandler.RegisterSubmissions(submissions)
	}

	if deps.AnalyticsHandler != nil {
		analytics := api.Group("/analytics", jwtMiddleware, facultyOnly)
		deps.AnalyticsHandler.Register(analytics)
	}

	if deps.ActivityHandler != nil {
		activity := api.Group("/activity", jwtMiddleware, middleware.RequireRole("admin"))
		deps.ActivityHandler.Register(activity)
	}
}
