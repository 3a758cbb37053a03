package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erik-bogdan/barni-backend/internal/pkg/env"
)

// Config holds object storage configuration for generated media.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	PublicBaseURL   string // Optional CDN/public base; presigned URLs are used when empty
}

// LoadConfig loads storage configuration from environment variables.
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("STORAGE_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("STORAGE_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("STORAGE_REGION", "eu-central-1"),
		BucketName:      env.GetEnv("STORAGE_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("STORAGE_ENDPOINT_URL", ""),
		PublicBaseURL:   strings.TrimRight(env.GetEnv("STORAGE_PUBLIC_BASE_URL", ""), "/"),
	}

	if config.AccessKeyID == "" {
		return nil, errors.New("STORAGE_ACCESS_KEY_ID is required")
	}
	if config.SecretAccessKey == "" {
		return nil, errors.New("STORAGE_SECRET_ACCESS_KEY is required")
	}
	if config.BucketName == "" {
		return nil, errors.New("STORAGE_BUCKET_NAME is required")
	}

	return config, nil
}

// CoverObjectKey generates a standardized object key for a story cover image.
// Format: covers/YYYY/MM/UUID.png
func CoverObjectKey(storyUUID string, createdAt time.Time) string {
	return fmt.Sprintf("covers/%04d/%02d/%s.png", createdAt.Year(), int(createdAt.Month()), storyUUID)
}

// CoverThumbObjectKey generates the object key for a cover thumbnail.
// Format: covers/YYYY/MM/UUID_thumb.png
func CoverThumbObjectKey(storyUUID string, createdAt time.Time) string {
	return fmt.Sprintf("covers/%04d/%02d/%s_thumb.png", createdAt.Year(), int(createdAt.Month()), storyUUID)
}

// AudioObjectKey generates a standardized object key for a story narration.
// Format: audio/YYYY/MM/UUID.mp3
func AudioObjectKey(storyUUID string, createdAt time.Time) string {
	return fmt.Sprintf("audio/%04d/%02d/%s.mp3", createdAt.Year(), int(createdAt.Month()), storyUUID)
}
