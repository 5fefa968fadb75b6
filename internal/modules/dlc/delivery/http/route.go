package http

import (
	"voyago/core-api/internal/infrastructure/config"

	"github.com/gofiber/fiber/v2"
)

type RouteConfig struct {
	Config  *config.Config
	Server  *fiber.App
	Handler *Handler
}

const routeGroup = "/dlc"

func (r *RouteConfig) Setup() {
	dlc := r.Server.Group(routeGroup)

	dlc.Post("/:subscription_id/override", r.Handler.SubmitOverride)
	dlc.Get("/:subscription_id/override", r.Handler.CancelOverride)
	dlc.Delete("/:subscription_id/override", r.Handler.CancelOverride)
	dlc.Get("/override/:correlation_id/status", r.Handler.GetStatus)
}
