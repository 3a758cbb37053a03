package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/erik-bogdan/barni-backend/internal/pkg/payments"
	"github.com/erik-bogdan/barni-backend/internal/pkg/stories"
	"github.com/erik-bogdan/barni-backend/internal/pkg/usercontext"
)

var (
	paymentsService *payments.Service
	storiesService  *stories.Service
)

// SetupServices wires the service layer into the handlers. Called once at
// application startup before the router is installed.
func SetupServices(pay *payments.Service, st *stories.Service) {
	paymentsService = pay
	storiesService = st
}

func currentUserID(c *fiber.Ctx) uint {
	return usercontext.FromCtx(c).UserID
}

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}
