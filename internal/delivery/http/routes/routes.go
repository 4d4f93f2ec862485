package routes

import (
	"lendmark/internal/delivery/http/handler"
	v1 "lendmark/internal/delivery/http/routes/v1"

	"github.com/gofiber/fiber/v3"
)

type Registry struct {
	health    *handler.HealthHandler
	metrics   fiber.Handler
	websocket fiber.Handler
	v1        v1.Handlers
}

func NewRegistry(health *handler.HealthHandler, metrics, websocket fiber.Handler, api v1.Handlers) *Registry {
	return &Registry{health: health, metrics: metrics, websocket: websocket, v1: api}
}

func (r *Registry) Register(app *fiber.App) {
	if app == nil {
		return
	}

	r.registerHealth(app)
	r.registerOps(app)
	r.registerAPI(app)
}

func (r *Registry) registerHealth(app *fiber.App) {
	if r.health != nil {
		r.health.RegisterRoutes(app)
	}
}

func (r *Registry) registerOps(app *fiber.App) {
	if r.metrics != nil {
		app.Get("/metrics", r.metrics)
	}
	if r.websocket != nil {
		app.Get("/ws/notifications", r.websocket)
	}
}

func (r *Registry) registerAPI(app *fiber.App) {
	v1.Register(app.Group("/api/v1"), r.v1)
}
