package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/erik-bogdan/barni-backend/internal/pkg/env"
)

const (
	defaultAPIBaseURL   = "https://api.elevenlabs.io"
	defaultModelID      = "eleven_multilingual_v2"
	defaultOutputFormat = "mp3_44100_128"
)

// ErrVoiceNotFound means the requested voice id does not exist on the account.
var ErrVoiceNotFound = errors.New("voice not found")

// Client talks to an ElevenLabs-compatible text-to-speech API.
type Client struct {
	APIKey       string
	BaseURL      string
	ModelID      string
	OutputFormat string
	DefaultVoice string

	HTTPClient *http.Client
}

// NewClientFromEnv builds the client from SPEECH_* environment variables.
func NewClientFromEnv() *Client {
	return &Client{
		APIKey:       strings.TrimSpace(env.GetEnv("SPEECH_API_KEY", "")),
		BaseURL:      strings.TrimSpace(env.GetEnv("SPEECH_API_BASE_URL", defaultAPIBaseURL)),
		ModelID:      strings.TrimSpace(env.GetEnv("SPEECH_MODEL_ID", defaultModelID)),
		OutputFormat: strings.TrimSpace(env.GetEnv("SPEECH_OUTPUT_FORMAT", defaultOutputFormat)),
		DefaultVoice: strings.TrimSpace(env.GetEnv("SPEECH_DEFAULT_VOICE_ID", "")),
		HTTPClient: &http.Client{
			Timeout: 180 * time.Second,
		},
	}
}

// Convert narrates text with the given voice and returns the audio bytes.
// An empty voiceID falls back to the configured default voice.
func (c *Client) Convert(ctx context.Context, voiceID, text string) ([]byte, error) {
	if c.APIKey == "" {
		return nil, errors.New("SPEECH_API_KEY is not configured")
	}
	if voiceID == "" {
		voiceID = c.DefaultVoice
	}
	if voiceID == "" {
		return nil, errors.New("no voice id given and SPEECH_DEFAULT_VOICE_ID is not configured")
	}

	payload := map[string]interface{}{
		"text":     text,
		"model_id": c.ModelID,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		strings.TrimRight(c.BaseURL, "/"), voiceID, c.OutputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrVoiceNotFound, voiceID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("speech request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio stream: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("empty audio stream returned")
	}
	return audio, nil
}
