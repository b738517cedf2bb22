package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/JettChenT/ek-geo/internal/pkg/metrics"
)

const requestTimeout = 30 * time.Second

// deprecatedRoutes lists aliases kept for older clients.
var deprecatedRoutes = []DeprecatedRoute{
	{
		Path:        "/v1/pointsets/:id/plot",
		SunsetDate:  time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC),
		Alternative: "/v1/pointsets/{id}/render?format=html",
	},
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())
	app.Use(DeprecationMiddleware(deprecatedRoutes))

	// Health & readiness skip the per-request timeout
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Post("/pointsets", timeout.NewWithContext(CreatePointSetHandler(deps), requestTimeout))
	v1.Get("/pointsets", timeout.NewWithContext(ListPointSetsHandler(deps), requestTimeout))
	v1.Get("/pointsets/:id", timeout.NewWithContext(GetPointSetHandler(deps), requestTimeout))
	v1.Delete("/pointsets/:id", timeout.NewWithContext(DeletePointSetHandler(deps), requestTimeout))
	v1.Post("/pointsets/:id/points", timeout.NewWithContext(AppendPointsHandler(deps), requestTimeout))
	v1.Get("/pointsets/:id/bounds", timeout.NewWithContext(PointSetBoundsHandler(deps), requestTimeout))
	v1.Post("/pointsets/:id/sample", timeout.NewWithContext(SamplePointSetHandler(deps), requestTimeout))
	v1.Get("/pointsets/:id/render", timeout.NewWithContext(RenderPointSetHandler(deps), requestTimeout))
	v1.Get("/pointsets/:id/plot", func(c *fiber.Ctx) error {
		return c.Redirect("/v1/pointsets/"+c.Params("id")+"/render?format=html", fiber.StatusMovedPermanently)
	})
	v1.Post("/grids", timeout.NewWithContext(GenerateGridHandler(deps), requestTimeout))
	v1.Get("/events/recent", RecentEventsHandler(deps))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
