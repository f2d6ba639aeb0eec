package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/nftgp/http-gateway/internal/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func setupRoutes(app *fiber.App, registry *prometheus.Registry, gatewayHandler *handlers.GatewayHandler, statsHandler *handlers.StatsHandler) {
	app.Static("/docs", "./docs")

	app.Get("/docs/*", swagger.New(swagger.Config{
		URL:             "/docs/swagger.yaml",
		DeepLinking:     true,
		DocExpansion:    "list",
		TryItOutEnabled: true,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	app.Get("/stats", statsHandler.GetStats)

	// nft: and data: paths carry a URI, so they cannot be expressed as
	// fiber route patterns.
	app.All("/*", gatewayHandler.HandleAll)
}
