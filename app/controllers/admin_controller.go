package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/erik-bogdan/barni-backend/internal/pkg/jobqueue"
	"github.com/erik-bogdan/barni-backend/internal/pkg/payments"
)

// HandleAdminFulfillOrder replays fulfillment for a paid order. Safe to call
// repeatedly; the grant is idempotent per order.
func HandleAdminFulfillOrder(c *fiber.Ctx) error {
	orderID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid order id")
	}

	if err := paymentsService.FulfillOrder(c.Context(), uint(orderID)); err != nil {
		if errors.Is(err, payments.ErrOrderNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "order not found")
		}
		return errorJSON(c, fiber.StatusConflict, err.Error())
	}

	return c.JSON(fiber.Map{"fulfilled": true})
}

// HandleAdminQueueStats returns job queue depth and per-status counters.
func HandleAdminQueueStats(c *fiber.Ctx) error {
	queue := jobqueue.GetManager().GetQueue()

	stats, err := queue.GetJobStats(c.Context())
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "failed to load queue stats")
	}
	pending, err := queue.GetQueueSize(c.Context())
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "failed to load queue size")
	}
	processing, err := queue.GetProcessingSize(c.Context())
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "failed to load processing size")
	}

	return c.JSON(fiber.Map{
		"pending":    pending,
		"processing": processing,
		"stats":      stats,
	})
}
