package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/doubt-service/internal/api/http/handlers"
	"github.com/spec-kit/doubt-service/internal/auth"
	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Doubts         *handlers.DoubtsHandler
	Notifications  *handlers.NotificationsHandler
	Catalog        *handlers.CatalogHandler
	Streams        *handlers.StreamHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
	Idempotency    KeyStore
	IdempotencyTTL time.Duration
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	once := Idempotency(cfg.Idempotency, cfg.IdempotencyTTL)
	staff := auth.RequireStaff()
	admin := auth.RequireRole(domain.RoleAdmin)

	protected.Get("/me", cfg.Catalog.Me)
	protected.Get("/me/badges", cfg.Catalog.MyBadges)

	catalog := protected.Group("/catalog")
	catalog.Get("/courses", cfg.Catalog.ListCourses)
	catalog.Get("/courses/:id/modules", cfg.Catalog.ListModules)
	catalog.Get("/modules/:id/topics", cfg.Catalog.ListTopics)

	doubts := protected.Group("/doubts")
	doubts.Post("", auth.RequireRole(domain.RoleStudent), once, cfg.Doubts.CreateDoubt)
	doubts.Get("", cfg.Doubts.ListDoubts)
	doubts.Get("/:id", cfg.Doubts.GetDoubt)
	doubts.Post("/:id/start", staff, once, cfg.Doubts.Start)
	doubts.Post("/:id/resolve", staff, once, cfg.Doubts.Resolve)
	doubts.Post("/:id/close", once, cfg.Doubts.Close)
	doubts.Post("/:id/reopen", once, cfg.Doubts.Reopen)
	doubts.Post("/:id/escalate", admin, once, cfg.Doubts.Escalate)
	doubts.Post("/:id/resume", staff, once, cfg.Doubts.Resume)
	doubts.Post("/:id/claim", auth.RequireRole(domain.RoleSupport), once, cfg.Doubts.Claim)
	doubts.Post("/:id/assign", admin, once, cfg.Doubts.Assign)
	doubts.Post("/:id/priority", staff, cfg.Doubts.UpdatePriority)
	doubts.Get("/:id/responses", cfg.Doubts.ListResponses)
	doubts.Post("/:id/responses", once, cfg.Doubts.PostResponse)
	doubts.Get("/:id/events", cfg.Streams.DoubtEvents)

	notifications := protected.Group("/notifications")
	notifications.Get("", cfg.Notifications.List)
	notifications.Get("/unread-count", cfg.Notifications.UnreadCount)
	notifications.Get("/events", cfg.Streams.NotificationEvents)
	notifications.Post("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)

	protected.Get("/badges", cfg.Catalog.ListBadges)
	protected.Post("/badges/award", admin, cfg.Catalog.AwardBadge)
}
