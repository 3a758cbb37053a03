package router

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/erik-bogdan/barni-backend/app/controllers"
	"github.com/erik-bogdan/barni-backend/internal/pkg/middleware"
)

type ApiRouter struct {
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

// isWebhookPath excludes provider webhooks from the API rate limit. The group
// limiter matches on path prefix, so it would otherwise throttle webhook
// retry bursts and drop deliveries before they are recorded. Webhooks
// authenticate by signature, not API key.
func isWebhookPath(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Path(), "/api/v1/webhooks/")
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{Max: 120, Next: isWebhookPath}))
	v1 := api.Group("/v1")

	v1.Post("/webhooks/:provider", controllers.HandleProviderWebhook)

	v1.Get("/plans", controllers.HandlePlansList)

	authed := v1.Group("", middleware.APIKeyAuthMiddleware())

	authed.Get("/balance", controllers.HandleBalance)
	authed.Get("/orders", controllers.HandleOrdersList)
	authed.Post("/checkout", controllers.HandleCheckoutCreate)

	authed.Post("/stories", controllers.HandleStoryCreate)
	authed.Get("/stories", controllers.HandleStoryList)
	authed.Get("/stories/:uuid", controllers.HandleStoryGet)
	authed.Post("/stories/:uuid/audio", controllers.HandleStoryAudio)
	authed.Post("/stories/:uuid/cover", controllers.HandleStoryCoverRegenerate)
	authed.Post("/stories/:uuid/retry", controllers.HandleStoryRetry)

	authed.Get("/notifications", controllers.HandleNotificationsList)
	authed.Post("/notifications/:id/read", controllers.HandleNotificationRead)

	admin := authed.Group("/admin", middleware.RequireAdminMiddleware())
	admin.Post("/orders/:id/fulfill", controllers.HandleAdminFulfillOrder)
	admin.Get("/queue/stats", controllers.HandleAdminQueueStats)
}
