package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/erik-bogdan/barni-backend/app/models"
	"github.com/erik-bogdan/barni-backend/internal/pkg/database"
)

// HandleNotificationsList returns the user's notifications, newest first.
func HandleNotificationsList(c *fiber.Ctx) error {
	var notifications []models.Notification
	err := database.GetDB().WithContext(c.Context()).
		Where("user_id = ?", currentUserID(c)).
		Order("created_at DESC").
		Limit(50).
		Find(&notifications).Error
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "failed to load notifications")
	}
	return c.JSON(fiber.Map{"notifications": notifications})
}

// HandleNotificationRead marks one notification as read.
func HandleNotificationRead(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid notification id")
	}

	db := database.GetDB()
	var notification models.Notification
	if err := db.Where("id = ? AND user_id = ?", id, currentUserID(c)).First(&notification).Error; err != nil {
		return errorJSON(c, fiber.StatusNotFound, "notification not found")
	}
	if err := notification.MarkAsRead(db); err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "failed to update notification")
	}

	return c.JSON(notification)
}
