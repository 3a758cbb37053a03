package textgen

import (
	"bytes"
	"context"
	"encoding/base64"
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
	defaultAPIBaseURL = "https://api.openai.com"
	defaultTextModel  = "gpt-4o-mini"
	defaultImageModel = "gpt-image-1"
)

var (
	// ErrQuotaExceeded means the upstream account is out of quota. Retrying
	// does not help until the account is topped up.
	ErrQuotaExceeded = errors.New("text generation quota exceeded")

	ErrInvalidAPIKey = errors.New("text generation API key rejected")
)

// Meta is the structured metadata extracted from a generated story.
type Meta struct {
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	CoverPrompt string `json:"cover_prompt"`
}

// Client talks to an OpenAI-compatible completion and image API.
type Client struct {
	APIKey     string
	BaseURL    string
	TextModel  string
	ImageModel string

	HTTPClient *http.Client
}

// NewClientFromEnv builds the client from TEXTGEN_* environment variables.
func NewClientFromEnv() *Client {
	return &Client{
		APIKey:     strings.TrimSpace(env.GetEnv("TEXTGEN_API_KEY", "")),
		BaseURL:    strings.TrimSpace(env.GetEnv("TEXTGEN_API_BASE_URL", defaultAPIBaseURL)),
		TextModel:  strings.TrimSpace(env.GetEnv("TEXTGEN_TEXT_MODEL", defaultTextModel)),
		ImageModel: strings.TrimSpace(env.GetEnv("TEXTGEN_IMAGE_MODEL", defaultImageModel)),
		HTTPClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

const storySystemPrompt = "You are a bedtime storyteller for young children. " +
	"Write a calm, warm bedtime story based on the user's request. " +
	"Keep the language simple and soothing, avoid anything scary, and end on a peaceful note."

const metaSystemPrompt = "Extract metadata from the bedtime story you are given. " +
	"Respond with a JSON object with exactly these keys: " +
	`"title" (short story title), "summary" (one or two sentences), ` +
	`"cover_prompt" (a visual description for a children's book cover illustration, no text in the image).`

// GenerateStory produces the full story text for a prompt.
func (c *Client) GenerateStory(ctx context.Context, prompt string) (string, error) {
	content, err := c.chatCompletion(ctx, storySystemPrompt, prompt, false)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", errors.New("empty story returned by model")
	}
	return content, nil
}

// ExtractMeta derives title, summary and a cover illustration prompt from a
// generated story.
func (c *Client) ExtractMeta(ctx context.Context, storyContent string) (*Meta, error) {
	content, err := c.chatCompletion(ctx, metaSystemPrompt, storyContent, true)
	if err != nil {
		return nil, err
	}

	var meta Meta
	if err := json.Unmarshal([]byte(content), &meta); err != nil {
		return nil, fmt.Errorf("invalid metadata JSON from model: %w", err)
	}
	if strings.TrimSpace(meta.Title) == "" {
		return nil, errors.New("metadata missing title")
	}
	return &meta, nil
}

// GenerateImage renders a cover illustration and returns the raw PNG bytes.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	payload := map[string]interface{}{
		"model":  c.ImageModel,
		"prompt": prompt,
		"n":      1,
		"size":   "1024x1024",
	}

	body, err := c.postJSON(ctx, "/v1/images/generations", payload)
	if err != nil {
		return nil, err
	}

	var out struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return nil, errors.New("image response contained no data")
	}

	img, err := base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}
	return img, nil
}

func (c *Client) chatCompletion(ctx context.Context, systemPrompt, userPrompt string, jsonResponse bool) (string, error) {
	payload := map[string]interface{}{
		"model": c.TextModel,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	}
	if jsonResponse {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}

	body, err := c.postJSON(ctx, "/v1/chat/completions", payload)
	if err != nil {
		return "", err
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("completion response contained no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	if c.APIKey == "" {
		return nil, errors.New("TEXTGEN_API_KEY is not configured")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<20))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrInvalidAPIKey
	case resp.StatusCode == http.StatusTooManyRequests && bytes.Contains(body, []byte("insufficient_quota")):
		return nil, ErrQuotaExceeded
	default:
		return nil, fmt.Errorf("textgen request %s failed: status=%d body=%s", path, resp.StatusCode, truncate(body, 500))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
