package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/erik-bogdan/barni-backend/app/models"
	"github.com/erik-bogdan/barni-backend/internal/pkg/database"
	"github.com/erik-bogdan/barni-backend/internal/pkg/ledger"
	"github.com/erik-bogdan/barni-backend/internal/pkg/payments"
	"github.com/erik-bogdan/barni-backend/internal/pkg/usercontext"
)

type createCheckoutRequest struct {
	PlanCode   string `json:"plan_code"`
	CouponCode string `json:"coupon_code"`
	Quantity   int    `json:"quantity"`
}

// HandlePlansList returns the purchasable credit packs.
func HandlePlansList(c *fiber.Ctx) error {
	var plans []models.Plan
	err := database.GetDB().WithContext(c.Context()).
		Where("is_active = ?", true).
		Order("price_cents ASC").
		Find(&plans).Error
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "failed to load plans")
	}
	return c.JSON(fiber.Map{"plans": plans})
}

// HandleCheckoutCreate opens a provider checkout session for a credit pack.
func HandleCheckoutCreate(c *fiber.Ctx) error {
	var req createCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	uc := usercontext.FromCtx(c)
	result, err := paymentsService.CreateCheckout(c.Context(), payments.CheckoutInput{
		UserID:     uc.UserID,
		Email:      c.Get("X-User-Email"),
		PlanCode:   req.PlanCode,
		CouponCode: req.CouponCode,
		Quantity:   req.Quantity,
	})
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrPlanNotFound):
			return errorJSON(c, fiber.StatusNotFound, "plan not found")
		case errors.Is(err, payments.ErrCouponInvalid):
			return errorJSON(c, fiber.StatusBadRequest, "coupon is not redeemable")
		case errors.Is(err, payments.ErrBelowMinimumAmount):
			return errorJSON(c, fiber.StatusBadRequest, "order total is below the provider minimum")
		default:
			return errorJSON(c, fiber.StatusBadGateway, "failed to create checkout session")
		}
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// HandleBalance returns both ledger balances for the current user.
func HandleBalance(c *fiber.Ctx) error {
	led := ledger.NewServiceFromDB(database.GetDB())
	userID := currentUserID(c)

	credits, err := led.Balance(c.Context(), ledger.KindCredits, userID)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "failed to load balance")
	}
	stars, err := led.Balance(c.Context(), ledger.KindAudioStars, userID)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "failed to load balance")
	}

	return c.JSON(fiber.Map{
		"credits":     credits,
		"audio_stars": stars,
	})
}

// HandleOrdersList returns the user's orders, newest first.
func HandleOrdersList(c *fiber.Ctx) error {
	var orders []models.Order
	err := database.GetDB().WithContext(c.Context()).
		Preload("Items").
		Where("user_id = ?", currentUserID(c)).
		Order("created_at DESC").
		Limit(50).
		Find(&orders).Error
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "failed to load orders")
	}
	return c.JSON(fiber.Map{"orders": orders})
}
