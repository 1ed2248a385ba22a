package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/congo_points/internal/middleware"
	"github.com/congo-pay/congo_points/internal/rewards"
)

// RegisterPointsRoutes wires the ledger operations. Reads are public;
// mutations need a resolved caller and pass through the rate limiter.
func RegisterPointsRoutes(r fiber.Router, h *rewards.Handler, rateLimiter fiber.Handler) {
	mutate := []fiber.Handler{middleware.RequireCaller()}
	if rateLimiter != nil {
		mutate = append(mutate, rateLimiter)
	}
	with := func(h fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, mutate...), h)
	}

	r.Get("/points/owner", h.Owner)
	r.Post("/points/issuance", with(h.Issue)...)

	stores := r.Group("/stores/:store")
	stores.Get("/authority", h.Authority)
	stores.Post("/authority", with(h.ToggleAuthority)...)
	stores.Get("/points", h.StorePoints)
	stores.Get("/users/:user/points", h.StoreUserPoints)
	stores.Post("/grants", with(h.Grant)...)
	stores.Post("/redemptions", with(h.Redeem)...)

	r.Get("/users/:user/points", h.UserPoints)
	r.Get("/events", h.Events)
}
