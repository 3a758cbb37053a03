package stories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erik-bogdan/barni-backend/app/models"
	"github.com/erik-bogdan/barni-backend/internal/pkg/env"
	"github.com/erik-bogdan/barni-backend/internal/pkg/ledger"
)

var (
	ErrStoryNotFound    = errors.New("story not found")
	ErrStoryNotReady    = errors.New("story is not ready")
	ErrStoryNotFailed   = errors.New("story is not failed")
	ErrAlreadyHasAudio  = errors.New("story already has narration")
	ErrInvalidPayMethod = errors.New("invalid pay method")
)

// Enqueuer hands finished reservations to the background pipeline. attemptID
// ties the queued job back to the reservation it will settle on failure.
type Enqueuer interface {
	EnqueueStory(storyID uint, storyUUID, attemptID string, force bool) error
	EnqueueAudio(storyID uint, storyUUID, voiceID, attemptID string) error
	EnqueueCover(storyID uint, storyUUID string) error
}

// Costs holds the per-operation prices in ledger units.
type Costs struct {
	StoryCredits int64
	AudioCredits int64
	AudioStars   int64
}

// CostsFromEnv loads prices from environment variables with sane defaults.
func CostsFromEnv() Costs {
	return Costs{
		StoryCredits: envInt64("STORY_CREDIT_COST", 25),
		AudioCredits: envInt64("AUDIO_CREDIT_COST", 50),
		AudioStars:   envInt64("AUDIO_STAR_COST", 1),
	}
}

func envInt64(key string, fallback int64) int64 {
	if v, err := strconv.ParseInt(env.GetEnv(key, ""), 10, 64); err == nil && v > 0 {
		return v
	}
	return fallback
}

// Service owns story creation and the balance reservations that gate it.
type Service struct {
	db    *gorm.DB
	queue Enqueuer
	costs Costs
}

func NewService(db *gorm.DB, queue Enqueuer, costs Costs) *Service {
	return &Service{db: db, queue: queue, costs: costs}
}

// CreateStory reserves the credit cost and queues the generation pipeline.
// The story row and the reservation commit together; enqueueing happens after
// the commit so a queued job always sees a persisted reservation. If the
// enqueue fails the story is failed and the reservation refunded immediately.
func (s *Service) CreateStory(ctx context.Context, userID uint, prompt string) (*models.Story, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("prompt is required")
	}

	story := &models.Story{
		UUID:       uuid.New().String(),
		UserID:     userID,
		Status:     models.StoryStatusQueued,
		Prompt:     prompt,
		CreditCost: s.costs.StoryCredits,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(story).Error; err != nil {
			return err
		}
		led := ledger.NewServiceFromDB(tx)
		return led.Reserve(ctx, ledger.KindCredits, userID, story.ID, story.CreditCost,
			"story generation", "stories")
	})
	if err != nil {
		return nil, err
	}

	attemptID := uuid.New().String()
	if err := s.queue.EnqueueStory(story.ID, story.UUID, attemptID, false); err != nil {
		log.Errorf("[Stories] Failed to enqueue story %s, refunding: %v", story.UUID, err)
		if failErr := s.failAndRefund(ctx, story.ID, ledger.KindCredits, story.CreditCost,
			attemptReason("story generation failed", attemptID), "queue unavailable"); failErr != nil {
			log.Errorf("[Stories] Failed to roll back story %s: %v", story.UUID, failErr)
		}
		return nil, fmt.Errorf("failed to queue story generation: %w", err)
	}

	log.Infof("[Stories] Story %s queued for user %d (%d credits reserved)", story.UUID, userID, story.CreditCost)
	return story, nil
}

// RetryStory re-runs generation for a failed story. The spent attempt was
// already refunded, so a retry reserves the cost again and forces the
// pipeline past the terminal-status short-circuit.
func (s *Service) RetryStory(ctx context.Context, userID uint, storyUUID string) (*models.Story, error) {
	story, err := s.GetStory(ctx, userID, storyUUID)
	if err != nil {
		return nil, err
	}
	if story.Status != models.StoryStatusFailed {
		return nil, ErrStoryNotFailed
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(story).Updates(map[string]interface{}{
			"status":        models.StoryStatusQueued,
			"error_message": "",
		}).Error; err != nil {
			return err
		}
		led := ledger.NewServiceFromDB(tx)
		return led.Reserve(ctx, ledger.KindCredits, userID, story.ID, story.CreditCost,
			"story generation retry", "stories")
	})
	if err != nil {
		return nil, err
	}
	story.Status = models.StoryStatusQueued

	attemptID := uuid.New().String()
	if err := s.queue.EnqueueStory(story.ID, story.UUID, attemptID, true); err != nil {
		log.Errorf("[Stories] Failed to enqueue retry for story %s, refunding: %v", story.UUID, err)
		if failErr := s.failAndRefund(ctx, story.ID, ledger.KindCredits, story.CreditCost,
			attemptReason("story generation failed", attemptID), "queue unavailable"); failErr != nil {
			log.Errorf("[Stories] Failed to roll back story %s: %v", story.UUID, failErr)
		}
		return nil, fmt.Errorf("failed to queue story generation: %w", err)
	}

	log.Infof("[Stories] Story %s requeued for user %d (%d credits reserved)", story.UUID, userID, story.CreditCost)
	return story, nil
}

// RequestAudio reserves the narration cost from the chosen balance and queues
// the narration job.
func (s *Service) RequestAudio(ctx context.Context, userID uint, storyUUID, voiceID, payWith string) (*models.Story, error) {
	kind, err := ledger.KindForPayMethod(payWith)
	if err != nil {
		return nil, ErrInvalidPayMethod
	}
	amount := s.costs.AudioCredits
	if kind == ledger.KindAudioStars {
		amount = s.costs.AudioStars
	}

	story, err := s.GetStory(ctx, userID, storyUUID)
	if err != nil {
		return nil, err
	}
	if story.Status != models.StoryStatusReady {
		return nil, ErrStoryNotReady
	}
	if story.AudioKey != "" {
		return nil, ErrAlreadyHasAudio
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(story).Updates(map[string]interface{}{
			"audio_cost":     amount,
			"audio_pay_with": payWith,
			"voice_id":       voiceID,
		}).Error; err != nil {
			return err
		}
		led := ledger.NewServiceFromDB(tx)
		return led.Reserve(ctx, kind, userID, story.ID, amount, "audio narration", "stories")
	})
	if err != nil {
		return nil, err
	}

	attemptID := uuid.New().String()
	if err := s.queue.EnqueueAudio(story.ID, story.UUID, voiceID, attemptID); err != nil {
		log.Errorf("[Stories] Failed to enqueue narration for story %s, refunding: %v", story.UUID, err)
		if refundErr := s.refundAudio(ctx, story, kind, amount, attemptID); refundErr != nil {
			log.Errorf("[Stories] Failed to refund narration for story %s: %v", story.UUID, refundErr)
		}
		return nil, fmt.Errorf("failed to queue narration: %w", err)
	}

	log.Infof("[Stories] Narration queued for story %s (%d %s reserved)", story.UUID, amount, kind)
	return story, nil
}

// RegenerateCover queues cover regeneration for a ready story. No reservation;
// covers are included in the story price.
func (s *Service) RegenerateCover(ctx context.Context, userID uint, storyUUID string) error {
	story, err := s.GetStory(ctx, userID, storyUUID)
	if err != nil {
		return err
	}
	if story.Status != models.StoryStatusReady {
		return ErrStoryNotReady
	}
	return s.queue.EnqueueCover(story.ID, story.UUID)
}

// GetStory loads a story scoped to its owner.
func (s *Service) GetStory(ctx context.Context, userID uint, storyUUID string) (*models.Story, error) {
	var story models.Story
	err := s.db.WithContext(ctx).
		Where("uuid = ? AND user_id = ?", storyUUID, userID).
		First(&story).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStoryNotFound
		}
		return nil, err
	}
	return &story, nil
}

// ListStories returns the user's stories, newest first.
func (s *Service) ListStories(ctx context.Context, userID uint, limit int) ([]models.Story, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var list []models.Story
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// FailGeneration marks a story failed after the queue gave up on it and
// refunds the credits reserved for that attempt. The status flip and the
// refund commit in one transaction; the refund guard runs inside it, so
// replays of the same attempt cannot refund twice while a later retry still
// refunds under its own tag.
func (s *Service) FailGeneration(ctx context.Context, storyID uint, attemptID string, cause error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var story models.Story
		if err := tx.First(&story, storyID).Error; err != nil {
			return fmt.Errorf("story %d not found: %w", storyID, err)
		}

		if err := tx.Model(&story).Updates(map[string]interface{}{
			"status":        models.StoryStatusFailed,
			"error_message": cause.Error(),
		}).Error; err != nil {
			return err
		}

		led := ledger.NewServiceFromDB(tx)
		refunded, err := led.RefundOnce(ctx, ledger.KindCredits, story.UserID, story.ID,
			attemptReason("story generation failed", attemptID), "jobqueue", story.CreditCost)
		if err != nil {
			return err
		}
		if refunded {
			log.Infof("[Stories] Refunded %d credits to user %d for failed story %s",
				story.CreditCost, story.UserID, story.UUID)
		}

		return models.CreateNotification(tx, story.UserID, models.NotificationTypeStoryFailed,
			"We could not generate your story. Your credits have been returned.", story.ID)
	})
}

// FailNarration refunds a spent narration attempt. The reservation may live
// in either ledger depending on how the user paid; the guard checks both
// before crediting the one that was debited. The story stays ready.
func (s *Service) FailNarration(ctx context.Context, storyID uint, attemptID string, cause error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var story models.Story
		if err := tx.First(&story, storyID).Error; err != nil {
			return fmt.Errorf("story %d not found: %w", storyID, err)
		}

		kind, err := ledger.KindForPayMethod(story.AudioPayWith)
		if err != nil {
			return fmt.Errorf("story %s has no narration reservation to refund: %w", story.UUID, err)
		}

		led := ledger.NewServiceFromDB(tx)
		refunded, err := led.RefundOnceAnyKind(ctx, kind, story.UserID, story.ID,
			attemptReason("audio narration failed", attemptID), "jobqueue", story.AudioCost)
		if err != nil {
			return err
		}
		if refunded {
			log.Infof("[Stories] Refunded %d %s to user %d for failed narration of story %s",
				story.AudioCost, kind, story.UserID, story.UUID)
		}

		return models.CreateNotification(tx, story.UserID, models.NotificationTypeStoryFailed,
			"We could not narrate your story. Your balance has been restored.", story.ID)
	})
}

func (s *Service) failAndRefund(ctx context.Context, storyID uint, kind ledger.Kind, amount int64, reason, errorMsg string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var story models.Story
		if err := tx.First(&story, storyID).Error; err != nil {
			return err
		}
		if err := tx.Model(&story).Updates(map[string]interface{}{
			"status":        models.StoryStatusFailed,
			"error_message": errorMsg,
		}).Error; err != nil {
			return err
		}
		led := ledger.NewServiceFromDB(tx)
		_, err := led.RefundOnce(ctx, kind, story.UserID, story.ID, reason, "stories", amount)
		return err
	})
}

func (s *Service) refundAudio(ctx context.Context, story *models.Story, kind ledger.Kind, amount int64, attemptID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		led := ledger.NewServiceFromDB(tx)
		_, err := led.RefundOnceAnyKind(ctx, kind, story.UserID, story.ID,
			attemptReason("audio narration failed", attemptID), "stories", amount)
		return err
	})
}

// attemptReason tags a refund with the attempt it settles. Distinct attempts
// for the same story refund independently; replays of one attempt still
// deduplicate on the full tag.
func attemptReason(reason, attemptID string) string {
	if attemptID == "" {
		return reason
	}
	return reason + " (" + attemptID + ")"
}
