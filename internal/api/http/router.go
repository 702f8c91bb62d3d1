package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/wauterstoon/tickets/internal/api/http/handlers"
	"github.com/wauterstoon/tickets/internal/auth"
	"github.com/wauterstoon/tickets/internal/realtime"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Tickets   *handlers.TicketsHandler
	Support   *handlers.SupportTicketsHandler
	Guard     *auth.Guard
	Hub       *realtime.Hub
	UploadDir string
	Logger    *zap.Logger
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Static("/uploads", cfg.UploadDir)

	api := app.Group("/api")

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.Create)
	tickets.Get("/my", cfg.Tickets.ListMine)
	tickets.Get("/:number", cfg.Tickets.Get)
	tickets.Patch("/:number", auth.RequireSupport(cfg.Guard), cfg.Support.Patch)
	tickets.Post("/:number/messages", cfg.Tickets.PostMessage)
	tickets.Get("/:number/messages", cfg.Tickets.ListMessages)
	tickets.Post("/:number/attachments", cfg.Tickets.AddAttachments)

	it := api.Group("/it", auth.RequireSupport(cfg.Guard))
	it.Get("/tickets", cfg.Support.List)
	it.Get("/tickets/:number", cfg.Support.Get)
	it.Get("/engineers", cfg.Support.Engineers)

	ws := app.Group("/ws", realtime.UpgradeRequired)
	ws.Get("/tickets/:number", realtime.TicketStream(cfg.Hub, cfg.Logger))
}
