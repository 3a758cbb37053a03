package jobqueue

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/erik-bogdan/barni-backend/app/models"
	"github.com/erik-bogdan/barni-backend/internal/pkg/database"
	"github.com/erik-bogdan/barni-backend/internal/pkg/storage"
	"github.com/erik-bogdan/barni-backend/internal/pkg/textgen"
)

// TextGenerator produces story text, metadata and cover illustrations.
type TextGenerator interface {
	GenerateStory(ctx context.Context, prompt string) (string, error)
	ExtractMeta(ctx context.Context, storyContent string) (*textgen.Meta, error)
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// MediaStore persists generated media and resolves public URLs.
type MediaStore interface {
	UploadBuffer(ctx context.Context, objectKey string, data []byte, contentType string) error
	PublicURL(ctx context.Context, objectKey string) (string, error)
}

// coverThumbSize is the bounding box for listing thumbnails.
const coverThumbSize = 512

// GenerationFailureHandler settles a story whose generation attempts are all
// spent: status flip, refund and user notification in one transaction.
type GenerationFailureHandler interface {
	FailGeneration(ctx context.Context, storyID uint, attemptID string, cause error) error
}

// StoryProcessor drives a story through its generation pipeline. Each stage
// transition is persisted before the external call it gates, so an observer
// always sees where a story is and a crash resumes with a visible status.
type StoryProcessor struct {
	text     TextGenerator
	store    MediaStore
	failures GenerationFailureHandler
}

// NewStoryProcessor creates the processor. store may be nil, which disables
// cover uploads (stories still become ready without a cover).
func NewStoryProcessor(text TextGenerator, store MediaStore, failures GenerationFailureHandler) *StoryProcessor {
	return &StoryProcessor{text: text, store: store, failures: failures}
}

func (p *StoryProcessor) Process(ctx context.Context, job *Job) error {
	switch job.Type {
	case JobTypeStoryGeneration:
		payload, err := StoryGenerationJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("invalid story generation payload: %w", err)
		}
		return p.processStory(ctx, payload)
	case JobTypeCoverGeneration:
		payload, err := CoverGenerationJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("invalid cover generation payload: %w", err)
		}
		return p.processCoverOnly(ctx, payload)
	default:
		return fmt.Errorf("story processor cannot handle job type: %s", job.Type)
	}
}

func (p *StoryProcessor) processStory(ctx context.Context, payload *StoryGenerationJobPayload) error {
	db := database.GetDB()

	var story models.Story
	if err := db.First(&story, payload.StoryID).Error; err != nil {
		return fmt.Errorf("story %d not found: %w", payload.StoryID, err)
	}

	if story.IsTerminal() && !payload.Force {
		log.Infof("[StoryPipeline] Story %s is already %s, skipping", story.UUID, story.Status)
		return nil
	}

	if err := p.setStatus(db, &story, models.StoryStatusGeneratingText); err != nil {
		return err
	}
	content, err := p.text.GenerateStory(ctx, story.Prompt)
	if err != nil {
		return fmt.Errorf("text generation failed: %w", err)
	}
	if err := db.Model(&story).Update("content", content).Error; err != nil {
		return err
	}
	story.Content = content

	if err := p.setStatus(db, &story, models.StoryStatusExtractingMeta); err != nil {
		return err
	}
	meta, err := p.text.ExtractMeta(ctx, content)
	if err != nil {
		return fmt.Errorf("metadata extraction failed: %w", err)
	}
	if err := db.Model(&story).Updates(map[string]interface{}{
		"title":   meta.Title,
		"summary": meta.Summary,
	}).Error; err != nil {
		return err
	}

	// Cover art is best effort: any failure here is logged and the story
	// still becomes ready, just without a cover.
	p.generateCover(ctx, db, &story, meta.CoverPrompt)

	return p.markReady(db, &story)
}

// processCoverOnly regenerates the cover for an already-ready story.
func (p *StoryProcessor) processCoverOnly(ctx context.Context, payload *CoverGenerationJobPayload) error {
	db := database.GetDB()

	var story models.Story
	if err := db.First(&story, payload.StoryID).Error; err != nil {
		return fmt.Errorf("story %d not found: %w", payload.StoryID, err)
	}
	if story.Status != models.StoryStatusReady {
		return fmt.Errorf("story %s is %s, cover regeneration needs a ready story", story.UUID, story.Status)
	}

	meta, err := p.text.ExtractMeta(ctx, story.Content)
	if err != nil {
		return fmt.Errorf("metadata extraction failed: %w", err)
	}

	p.generateCover(ctx, db, &story, meta.CoverPrompt)
	return p.markReady(db, &story)
}

func (p *StoryProcessor) generateCover(ctx context.Context, db *gorm.DB, story *models.Story, coverPrompt string) {
	if p.store == nil || coverPrompt == "" {
		return
	}

	if err := p.setStatus(db, story, models.StoryStatusGenerateCover); err != nil {
		log.Warnf("[StoryPipeline] Story %s: failed to persist cover stage: %v", story.UUID, err)
		return
	}
	img, err := p.text.GenerateImage(ctx, coverPrompt)
	if err != nil {
		log.Warnf("[StoryPipeline] Story %s: cover generation failed, continuing without cover: %v", story.UUID, err)
		return
	}

	if err := p.setStatus(db, story, models.StoryStatusUploadingCover); err != nil {
		log.Warnf("[StoryPipeline] Story %s: failed to persist upload stage: %v", story.UUID, err)
		return
	}
	objectKey := storage.CoverObjectKey(story.UUID, story.CreatedAt)
	if err := p.store.UploadBuffer(ctx, objectKey, img, "image/png"); err != nil {
		log.Warnf("[StoryPipeline] Story %s: cover upload failed, continuing without cover: %v", story.UUID, err)
		return
	}

	coverURL, err := p.store.PublicURL(ctx, objectKey)
	if err != nil {
		log.Warnf("[StoryPipeline] Story %s: cover URL resolution failed: %v", story.UUID, err)
		coverURL = ""
	}

	thumbKey, thumbURL := p.uploadCoverThumbnail(ctx, story, img)

	if err := db.Model(story).Updates(map[string]interface{}{
		"cover_key":       objectKey,
		"cover_url":       coverURL,
		"cover_thumb_key": thumbKey,
		"cover_thumb_url": thumbURL,
	}).Error; err != nil {
		log.Warnf("[StoryPipeline] Story %s: failed to persist cover fields: %v", story.UUID, err)
	}
}

// uploadCoverThumbnail derives and stores a small listing thumbnail from the
// full cover. Like the cover itself it is best effort.
func (p *StoryProcessor) uploadCoverThumbnail(ctx context.Context, story *models.Story, img []byte) (string, string) {
	src, err := imaging.Decode(bytes.NewReader(img))
	if err != nil {
		log.Warnf("[StoryPipeline] Story %s: cover decode failed, skipping thumbnail: %v", story.UUID, err)
		return "", ""
	}
	thumb := imaging.Fit(src, coverThumbSize, coverThumbSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		log.Warnf("[StoryPipeline] Story %s: thumbnail encode failed: %v", story.UUID, err)
		return "", ""
	}

	thumbKey := storage.CoverThumbObjectKey(story.UUID, story.CreatedAt)
	if err := p.store.UploadBuffer(ctx, thumbKey, buf.Bytes(), "image/png"); err != nil {
		log.Warnf("[StoryPipeline] Story %s: thumbnail upload failed: %v", story.UUID, err)
		return "", ""
	}
	thumbURL, err := p.store.PublicURL(ctx, thumbKey)
	if err != nil {
		log.Warnf("[StoryPipeline] Story %s: thumbnail URL resolution failed: %v", story.UUID, err)
		thumbURL = ""
	}
	return thumbKey, thumbURL
}

func (p *StoryProcessor) setStatus(db *gorm.DB, story *models.Story, status string) error {
	if err := db.Model(story).Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to set story %s status to %s: %w", story.UUID, status, err)
	}
	story.Status = status
	return nil
}

func (p *StoryProcessor) markReady(db *gorm.DB, story *models.Story) error {
	if err := db.Model(story).Updates(map[string]interface{}{
		"status":        models.StoryStatusReady,
		"ready_at":      gorm.Expr("CURRENT_TIMESTAMP"),
		"error_message": "",
	}).Error; err != nil {
		return err
	}
	story.Status = models.StoryStatusReady

	if err := models.CreateNotification(db, story.UserID, models.NotificationTypeStoryReady,
		fmt.Sprintf("Your story %q is ready.", story.Title), story.ID); err != nil {
		log.Errorf("[StoryPipeline] Story %s: failed to create ready notification: %v", story.UUID, err)
	}

	log.Infof("[StoryPipeline] Story %s is ready", story.UUID)
	return nil
}

// OnExhausted settles a spent job. Cover regeneration carries no reservation
// and the story it belongs to is already delivered, so giving up on it must
// not fail the story or refund anything; it only costs the new cover. A spent
// generation job hands the story to the failure handler, which flips the
// status and refunds the reserved credits for this attempt.
func (p *StoryProcessor) OnExhausted(ctx context.Context, job *Job, cause error) error {
	if job.Type == JobTypeCoverGeneration {
		payload, err := CoverGenerationJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("invalid cover generation payload: %w", err)
		}
		log.Warnf("[StoryPipeline] Giving up on cover regeneration for story %s: %v", payload.StoryUUID, cause)
		return nil
	}

	payload, err := StoryGenerationJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid story generation payload: %w", err)
	}
	return p.failures.FailGeneration(ctx, payload.StoryID, payload.AttemptID, cause)
}
