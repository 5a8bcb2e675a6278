package observability

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsPath is where the api and the worker serve their collectors.
const MetricsPath = "/internal/metrics"

// MetricsHandler serves the essay pipeline collectors, in OpenMetrics form when the scraper asks for it.
// A collector that fails to gather is reported in the scrape instead of failing it.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
}

// NewMetricsServer builds the side listener for binaries without an API router.
func NewMetricsServer(health fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	if health != nil {
		app.Get("/health", health)
	}
	app.Get(MetricsPath, MetricsHandler())
	return app
}
