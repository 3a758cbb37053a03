package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableBoundsAttempts(t *testing.T) {
	job := &Job{Type: JobTypeStoryGeneration, Status: JobStatusPending, MaxAttempts: DefaultMaxAttempts}

	// First two failures are redelivered, the third is final.
	job.MarkAsFailed("boom")
	assert.Equal(t, 1, job.Attempts)
	assert.True(t, job.IsRetryable())

	job.MarkAsFailed("boom")
	assert.True(t, job.IsRetryable())

	job.MarkAsFailed("boom")
	assert.Equal(t, 3, job.Attempts)
	assert.False(t, job.IsRetryable())
}

func TestIsRetryableOnlyWhenFailed(t *testing.T) {
	job := &Job{Status: JobStatusProcessing, Attempts: 1, MaxAttempts: DefaultMaxAttempts}
	assert.False(t, job.IsRetryable())
}

func TestRetryBackoffGrowsAndCaps(t *testing.T) {
	assert.Equal(t, time.Second, retryBackoff(0))
	assert.Equal(t, time.Second, retryBackoff(1))
	assert.Equal(t, 2*time.Second, retryBackoff(2))
	assert.Equal(t, 4*time.Second, retryBackoff(3))
	assert.Equal(t, MaxRetryBackoff, retryBackoff(4))
	assert.Equal(t, MaxRetryBackoff, retryBackoff(10))
}

func TestStoryGenerationPayloadRoundTrip(t *testing.T) {
	payload := StoryGenerationJobPayload{StoryID: 42, StoryUUID: "abc-123", AttemptID: "attempt-1", Force: true}

	decoded, err := StoryGenerationJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, payload, *decoded)
}

func TestAudioGenerationPayloadRoundTrip(t *testing.T) {
	payload := AudioGenerationJobPayload{StoryID: 7, StoryUUID: "def-456", VoiceID: "voice-1", AttemptID: "attempt-2"}

	decoded, err := AudioGenerationJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, payload, *decoded)
}

func TestMarkAsCompletedClearsError(t *testing.T) {
	job := &Job{Status: JobStatusProcessing, ErrorMsg: "transient"}
	job.MarkAsCompleted()

	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Empty(t, job.ErrorMsg)
	require.NotNil(t, job.CompletedAt)
}
