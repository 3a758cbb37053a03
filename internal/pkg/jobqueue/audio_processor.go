package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/erik-bogdan/barni-backend/app/models"
	"github.com/erik-bogdan/barni-backend/internal/pkg/database"
	"github.com/erik-bogdan/barni-backend/internal/pkg/storage"
)

// SpeechSynthesizer narrates text and returns the audio bytes.
type SpeechSynthesizer interface {
	Convert(ctx context.Context, voiceID, text string) ([]byte, error)
}

// NarrationFailureHandler refunds a narration reservation after the pipeline
// gave up on the attempt.
type NarrationFailureHandler interface {
	FailNarration(ctx context.Context, storyID uint, attemptID string, cause error) error
}

// AudioProcessor narrates ready stories and stores the audio.
type AudioProcessor struct {
	speech   SpeechSynthesizer
	store    MediaStore
	failures NarrationFailureHandler
}

func NewAudioProcessor(speech SpeechSynthesizer, store MediaStore, failures NarrationFailureHandler) *AudioProcessor {
	return &AudioProcessor{speech: speech, store: store, failures: failures}
}

func (p *AudioProcessor) Process(ctx context.Context, job *Job) error {
	payload, err := AudioGenerationJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid audio generation payload: %w", err)
	}
	if p.store == nil {
		return fmt.Errorf("media store is not configured, cannot store narration")
	}

	db := database.GetDB()

	var story models.Story
	if err := db.First(&story, payload.StoryID).Error; err != nil {
		return fmt.Errorf("story %d not found: %w", payload.StoryID, err)
	}

	if story.AudioKey != "" {
		log.Infof("[AudioPipeline] Story %s already has narration, skipping", story.UUID)
		return nil
	}
	if story.Status != models.StoryStatusReady || story.Content == "" {
		return fmt.Errorf("story %s is %s, narration needs a ready story", story.UUID, story.Status)
	}

	audio, err := p.speech.Convert(ctx, payload.VoiceID, story.Content)
	if err != nil {
		return fmt.Errorf("speech synthesis failed: %w", err)
	}

	objectKey := storage.AudioObjectKey(story.UUID, story.CreatedAt)
	if err := p.store.UploadBuffer(ctx, objectKey, audio, "audio/mpeg"); err != nil {
		return fmt.Errorf("audio upload failed: %w", err)
	}

	audioURL, err := p.store.PublicURL(ctx, objectKey)
	if err != nil {
		log.Warnf("[AudioPipeline] Story %s: audio URL resolution failed: %v", story.UUID, err)
		audioURL = ""
	}

	if err := db.Model(&story).Updates(map[string]interface{}{
		"audio_key": objectKey,
		"audio_url": audioURL,
		"voice_id":  payload.VoiceID,
	}).Error; err != nil {
		return err
	}

	if err := models.CreateNotification(db, story.UserID, models.NotificationTypeStoryReady,
		fmt.Sprintf("The narration for %q is ready.", story.Title), story.ID); err != nil {
		log.Errorf("[AudioPipeline] Story %s: failed to create notification: %v", story.UUID, err)
	}

	log.Infof("[AudioPipeline] Story %s narration stored at %s", story.UUID, objectKey)
	return nil
}

// OnExhausted hands the spent narration attempt to the failure handler, which
// refunds whichever ledger the reservation was taken from.
func (p *AudioProcessor) OnExhausted(ctx context.Context, job *Job, cause error) error {
	payload, err := AudioGenerationJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid audio generation payload: %w", err)
	}
	return p.failures.FailNarration(ctx, payload.StoryID, payload.AttemptID, cause)
}
