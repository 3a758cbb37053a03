package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/erik-bogdan/barni-backend/internal/pkg/ledger"
	"github.com/erik-bogdan/barni-backend/internal/pkg/stories"
)

type createStoryRequest struct {
	Prompt string `json:"prompt"`
}

type requestAudioRequest struct {
	VoiceID string `json:"voice_id"`
	PayWith string `json:"pay_with"`
}

// HandleStoryCreate queues a new story. The credit reservation happens before
// the request returns; generation runs in the background.
func HandleStoryCreate(c *fiber.Ctx) error {
	var req createStoryRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	story, err := storiesService.CreateStory(c.Context(), currentUserID(c), req.Prompt)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			return errorJSON(c, fiber.StatusPaymentRequired, "insufficient credit balance")
		}
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(story)
}

// HandleStoryList returns the user's stories, newest first.
func HandleStoryList(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	list, err := storiesService.ListStories(c.Context(), currentUserID(c), limit)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "failed to load stories")
	}
	return c.JSON(fiber.Map{"stories": list})
}

// HandleStoryGet returns one story by UUID, scoped to its owner.
func HandleStoryGet(c *fiber.Ctx) error {
	story, err := storiesService.GetStory(c.Context(), currentUserID(c), c.Params("uuid"))
	if err != nil {
		if errors.Is(err, stories.ErrStoryNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "story not found")
		}
		return errorJSON(c, fiber.StatusInternalServerError, "failed to load story")
	}
	return c.JSON(story)
}

// HandleStoryAudio queues narration for a ready story, paid from the chosen
// balance.
func HandleStoryAudio(c *fiber.Ctx) error {
	var req requestAudioRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	story, err := storiesService.RequestAudio(c.Context(), currentUserID(c), c.Params("uuid"), req.VoiceID, req.PayWith)
	if err != nil {
		switch {
		case errors.Is(err, stories.ErrStoryNotFound):
			return errorJSON(c, fiber.StatusNotFound, "story not found")
		case errors.Is(err, stories.ErrInvalidPayMethod):
			return errorJSON(c, fiber.StatusBadRequest, "pay_with must be credits or audio_stars")
		case errors.Is(err, stories.ErrStoryNotReady), errors.Is(err, stories.ErrAlreadyHasAudio):
			return errorJSON(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, ledger.ErrInsufficientBalance):
			return errorJSON(c, fiber.StatusPaymentRequired, "insufficient balance")
		default:
			return errorJSON(c, fiber.StatusInternalServerError, "failed to queue narration")
		}
	}

	return c.Status(fiber.StatusAccepted).JSON(story)
}

// HandleStoryRetry re-queues generation for a failed story. The failed
// attempt was refunded, so the retry reserves the credit cost again.
func HandleStoryRetry(c *fiber.Ctx) error {
	story, err := storiesService.RetryStory(c.Context(), currentUserID(c), c.Params("uuid"))
	if err != nil {
		switch {
		case errors.Is(err, stories.ErrStoryNotFound):
			return errorJSON(c, fiber.StatusNotFound, "story not found")
		case errors.Is(err, stories.ErrStoryNotFailed):
			return errorJSON(c, fiber.StatusConflict, "only failed stories can be retried")
		case errors.Is(err, ledger.ErrInsufficientBalance):
			return errorJSON(c, fiber.StatusPaymentRequired, "insufficient credit balance")
		default:
			return errorJSON(c, fiber.StatusInternalServerError, "failed to queue story generation")
		}
	}
	return c.Status(fiber.StatusAccepted).JSON(story)
}

// HandleStoryCoverRegenerate queues cover regeneration for a ready story.
func HandleStoryCoverRegenerate(c *fiber.Ctx) error {
	err := storiesService.RegenerateCover(c.Context(), currentUserID(c), c.Params("uuid"))
	if err != nil {
		switch {
		case errors.Is(err, stories.ErrStoryNotFound):
			return errorJSON(c, fiber.StatusNotFound, "story not found")
		case errors.Is(err, stories.ErrStoryNotReady):
			return errorJSON(c, fiber.StatusConflict, err.Error())
		default:
			return errorJSON(c, fiber.StatusInternalServerError, "failed to queue cover regeneration")
		}
	}
	return c.SendStatus(fiber.StatusAccepted)
}
