package jobqueue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failureCall struct {
	storyID   uint
	attemptID string
	cause     error
}

// recordingFailureHandler captures settlement calls instead of touching the
// database.
type recordingFailureHandler struct {
	generation []failureCall
	narration  []failureCall
}

func (h *recordingFailureHandler) FailGeneration(ctx context.Context, storyID uint, attemptID string, cause error) error {
	h.generation = append(h.generation, failureCall{storyID: storyID, attemptID: attemptID, cause: cause})
	return nil
}

func (h *recordingFailureHandler) FailNarration(ctx context.Context, storyID uint, attemptID string, cause error) error {
	h.narration = append(h.narration, failureCall{storyID: storyID, attemptID: attemptID, cause: cause})
	return nil
}

func TestStoryExhaustionSettlesThroughFailureHandler(t *testing.T) {
	failures := &recordingFailureHandler{}
	p := NewStoryProcessor(nil, nil, failures)

	job := &Job{
		Type:    JobTypeStoryGeneration,
		Payload: StoryGenerationJobPayload{StoryID: 42, StoryUUID: "uuid-42", AttemptID: "attempt-1"}.ToMap(),
	}
	cause := errors.New("text generation failed")
	require.NoError(t, p.OnExhausted(context.Background(), job, cause))

	require.Len(t, failures.generation, 1)
	assert.Equal(t, uint(42), failures.generation[0].storyID)
	assert.Equal(t, "attempt-1", failures.generation[0].attemptID)
	assert.Equal(t, cause, failures.generation[0].cause)
}

func TestCoverExhaustionLeavesDeliveredStoryAlone(t *testing.T) {
	failures := &recordingFailureHandler{}
	p := NewStoryProcessor(nil, nil, failures)

	// Cover regeneration reserves nothing, so giving up on it must neither
	// fail the story nor trigger a refund.
	job := &Job{
		Type:    JobTypeCoverGeneration,
		Payload: CoverGenerationJobPayload{StoryID: 42, StoryUUID: "uuid-42"}.ToMap(),
	}
	require.NoError(t, p.OnExhausted(context.Background(), job, errors.New("image generation failed")))

	assert.Empty(t, failures.generation)
	assert.Empty(t, failures.narration)
}

func TestAudioExhaustionSettlesThroughFailureHandler(t *testing.T) {
	failures := &recordingFailureHandler{}
	p := NewAudioProcessor(nil, nil, failures)

	job := &Job{
		Type:    JobTypeAudioGeneration,
		Payload: AudioGenerationJobPayload{StoryID: 7, StoryUUID: "uuid-7", VoiceID: "voice-1", AttemptID: "attempt-2"}.ToMap(),
	}
	require.NoError(t, p.OnExhausted(context.Background(), job, errors.New("speech synthesis failed")))

	require.Len(t, failures.narration, 1)
	assert.Equal(t, uint(7), failures.narration[0].storyID)
	assert.Equal(t, "attempt-2", failures.narration[0].attemptID)
}
