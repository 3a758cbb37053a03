package models

import "time"

// Story pipeline statuses. The worker advances them monotonically and persists
// each transition before the corresponding external call starts, so a crash
// mid-stage leaves an observable, resumable status.
const (
	StoryStatusQueued         = "queued"
	StoryStatusGeneratingText = "generating_text"
	StoryStatusExtractingMeta = "extracting_meta"
	StoryStatusGenerateCover  = "generating_cover"
	StoryStatusUploadingCover = "uploading_cover"
	StoryStatusReady          = "ready"
	StoryStatusFailed         = "failed"
)

// Audio payment methods: audio narration can be paid from either balance.
const (
	PayMethodCredits    = "credits"
	PayMethodAudioStars = "audio_stars"
)

// Story is the generation subject: content fields are populated progressively
// by the worker, which is the only writer after creation.
type Story struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UUID          string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"uuid"`
	UserID        uint       `gorm:"not null;index" json:"user_id"`
	Status        string     `gorm:"type:varchar(30);not null;default:'queued';index" json:"status"`
	Prompt        string     `gorm:"type:text;not null" json:"prompt"`
	Title         string     `gorm:"type:varchar(200);default:''" json:"title"`
	Summary       string     `gorm:"type:text" json:"summary"`
	Content       string     `gorm:"type:longtext" json:"content"`
	Model         string     `gorm:"type:varchar(100);default:''" json:"model,omitempty"`
	CoverKey      string     `gorm:"type:varchar(255);default:''" json:"-"`
	CoverURL      string     `gorm:"type:varchar(255);default:''" json:"cover_url,omitempty"`
	CoverThumbKey string     `gorm:"type:varchar(255);default:''" json:"-"`
	CoverThumbURL string     `gorm:"type:varchar(255);default:''" json:"cover_thumb_url,omitempty"`
	AudioKey      string     `gorm:"type:varchar(255);default:''" json:"-"`
	AudioURL      string     `gorm:"type:varchar(255);default:''" json:"audio_url,omitempty"`
	VoiceID       string     `gorm:"type:varchar(100);default:''" json:"voice_id,omitempty"`
	CreditCost    int64      `gorm:"not null" json:"credit_cost"` // snapshot at creation
	AudioCost     int64      `gorm:"not null;default:0" json:"audio_cost"`
	AudioPayWith  string     `gorm:"type:varchar(20);default:''" json:"audio_pay_with,omitempty"`
	ErrorMessage  string     `gorm:"type:text" json:"error_message,omitempty"`
	ReadyAt       *time.Time `gorm:"type:timestamp;default:null" json:"ready_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the pipeline has finished with this story.
func (s *Story) IsTerminal() bool {
	return s.Status == StoryStatusReady || s.Status == StoryStatusFailed
}
