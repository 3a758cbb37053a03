package invoicing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/erik-bogdan/barni-backend/app/models"
	"github.com/erik-bogdan/barni-backend/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.billingo.hu/v3"

// Client issues invoices through a Billingo-compatible API. Invoicing is
// best effort everywhere it is used; callers log failures and move on.
type Client struct {
	APIKey  string
	BaseURL string
	BlockID int

	HTTPClient *http.Client
}

// NewClientFromEnv builds the client from INVOICE_* environment variables.
// Returns nil when no API key is configured, which disables invoicing.
func NewClientFromEnv() *Client {
	apiKey := strings.TrimSpace(env.GetEnv("INVOICE_API_KEY", ""))
	if apiKey == "" {
		return nil
	}

	blockID, _ := strconv.Atoi(env.GetEnv("INVOICE_BLOCK_ID", "0"))
	return &Client{
		APIKey:  apiKey,
		BaseURL: strings.TrimSpace(env.GetEnv("INVOICE_API_BASE_URL", defaultAPIBaseURL)),
		BlockID: blockID,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateInvoice issues a paid invoice for the order and returns its external
// document id.
func (c *Client) CreateInvoice(ctx context.Context, order *models.Order, email string) (string, error) {
	items := make([]map[string]interface{}, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]interface{}{
			"name":       item.PlanName,
			"unit_price": float64(item.UnitPriceCents) / 100,
			"quantity":   item.Quantity,
			"unit":       "pcs",
			"vat":        "27%",
		})
	}

	payload := map[string]interface{}{
		"block_id":       c.BlockID,
		"type":           "invoice",
		"payment_method": "online_bankcard",
		"currency":       strings.ToUpper(order.Currency),
		"language":       "en",
		"paid_date":      time.Now().Format("2006-01-02"),
		"partner": map[string]interface{}{
			"emails": []string{email},
		},
		"items": items,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/documents"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("invoice creation failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if out.ID.String() == "" {
		return "", errors.New("invoice response missing id")
	}
	return out.ID.String(), nil
}
