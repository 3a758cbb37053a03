package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeStoryGeneration JobType = "story_generation"
	JobTypeAudioGeneration JobType = "audio_generation"
	JobTypeCoverGeneration JobType = "cover_generation"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	Attempts    int                    `json:"attempts"`
	MaxAttempts int                    `json:"max_attempts"`
}

// StoryGenerationJobPayload contains the payload for story generation jobs.
// AttemptID identifies one reservation; the refund on exhaustion is keyed to
// it so a later retry of the same story can be refunded independently.
type StoryGenerationJobPayload struct {
	StoryID   uint   `json:"story_id"`
	StoryUUID string `json:"story_uuid"`
	AttemptID string `json:"attempt_id"`
	Force     bool   `json:"force"` // re-run the pipeline even if the story is already terminal
}

// ToMap converts the payload to a map for storage
func (p StoryGenerationJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"story_id":   p.StoryID,
		"story_uuid": p.StoryUUID,
		"attempt_id": p.AttemptID,
		"force":      p.Force,
	}
}

// StoryGenerationJobPayloadFromMap creates a payload from a map
func StoryGenerationJobPayloadFromMap(data map[string]interface{}) (*StoryGenerationJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload StoryGenerationJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// AudioGenerationJobPayload contains the payload for narration jobs
type AudioGenerationJobPayload struct {
	StoryID   uint   `json:"story_id"`
	StoryUUID string `json:"story_uuid"`
	VoiceID   string `json:"voice_id"`
	AttemptID string `json:"attempt_id"`
}

// ToMap converts the payload to a map for storage
func (p AudioGenerationJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"story_id":   p.StoryID,
		"story_uuid": p.StoryUUID,
		"voice_id":   p.VoiceID,
		"attempt_id": p.AttemptID,
	}
}

// AudioGenerationJobPayloadFromMap creates a payload from a map
func AudioGenerationJobPayloadFromMap(data map[string]interface{}) (*AudioGenerationJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload AudioGenerationJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// CoverGenerationJobPayload contains the payload for cover regeneration jobs
type CoverGenerationJobPayload struct {
	StoryID   uint   `json:"story_id"`
	StoryUUID string `json:"story_uuid"`
}

func (p CoverGenerationJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"story_id":   p.StoryID,
		"story_uuid": p.StoryUUID,
	}
}

func CoverGenerationJobPayloadFromMap(data map[string]interface{}) (*CoverGenerationJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var payload CoverGenerationJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be redelivered after a failure
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.Attempts < j.MaxAttempts
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed and counts the attempt
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.Attempts++
}
