package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/congo-pay/congo_points/internal/metrics"
)

// RegisterMetricsRoute exposes the Prometheus registry.
func RegisterMetricsRoute(app *fiber.App, m *metrics.Ledger) {
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
}
