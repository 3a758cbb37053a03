package router

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erik-bogdan/barni-backend/app/controllers"
	"github.com/erik-bogdan/barni-backend/internal/pkg/payments"
)

func TestWebhookRouteBypassesAPILimiter(t *testing.T) {
	// No providers registered: the handler answers 404 before touching
	// persistence, which is enough to observe the limiter's behavior.
	controllers.SetupServices(payments.NewService(nil, "stripe", nil, nil), nil)

	app := fiber.New()
	InstallRouter(app)

	// Well past the limiter window maximum. A provider retry burst must
	// never see 429, otherwise deliveries are dropped unrecorded.
	for i := 0; i < 150; i++ {
		req := httptest.NewRequest(fiber.MethodPost, "/api/v1/webhooks/bogus", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	}

	// The rest of the API surface is still limited.
	var limited bool
	for i := 0; i < 130; i++ {
		req := httptest.NewRequest(fiber.MethodGet, "/api/v1/unknown", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		if resp.StatusCode == fiber.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited, "non-webhook API paths must stay rate limited")
}
