package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/erik-bogdan/barni-backend/app/models"
	"github.com/erik-bogdan/barni-backend/internal/pkg/payments"
)

// HandleProviderWebhook ingests one payment webhook delivery. The delivery is
// acknowledged as soon as it is recorded; order settlement runs asynchronously
// so provider retry timers never race our processing.
func HandleProviderWebhook(c *fiber.Ctx) error {
	provider := c.Params("provider")
	rawBody := append([]byte(nil), c.Body()...)
	signature := signatureHeader(c, provider)

	result, err := paymentsService.IngestWebhook(c.Context(), provider, rawBody, signature)
	if err != nil {
		if errors.Is(err, payments.ErrUnknownProvider) {
			return errorJSON(c, fiber.StatusNotFound, "unknown provider")
		}
		if errors.Is(err, payments.ErrInvalidSignature) {
			return errorJSON(c, fiber.StatusBadRequest, "invalid signature")
		}
		log.Errorf("[Webhook] Failed to ingest %s delivery: %v", provider, err)
		return errorJSON(c, fiber.StatusInternalServerError, "failed to record webhook")
	}

	if !result.Duplicate && result.Event != nil {
		eventID := result.EventID
		event := result.Event
		go func() {
			// Detached from the request; errors land on the stored event row.
			_ = paymentsService.ProcessEvent(context.Background(), eventID, provider, event)
		}()
	}

	return c.JSON(fiber.Map{"received": true, "duplicate": result.Duplicate})
}

func signatureHeader(c *fiber.Ctx, provider string) string {
	switch provider {
	case models.PaymentProviderStripe:
		return c.Get("Stripe-Signature")
	case models.PaymentProviderBarion:
		return c.Get("X-Callback-Signature")
	default:
		return ""
	}
}
