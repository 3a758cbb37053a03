package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/erik-bogdan/barni-backend/app/models"
	"github.com/erik-bogdan/barni-backend/internal/pkg/env"
)

const defaultBarionAPIBaseURL = "https://api.barion.com"

type BarionProvider struct {
	POSKey         string
	CallbackSecret string
	APIBaseURL     string
	RedirectURL    string
	CallbackURL    string
	Payee          string

	HTTPClient *http.Client
}

func NewBarionProviderFromEnv() *BarionProvider {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	redirectURL := strings.TrimSpace(env.GetEnv("BARION_REDIRECT_URL", ""))
	callbackURL := strings.TrimSpace(env.GetEnv("BARION_CALLBACK_URL", ""))
	if redirectURL == "" && base != "" {
		redirectURL = base + "/checkout/success"
	}
	if callbackURL == "" && base != "" {
		callbackURL = base + "/api/v1/webhooks/barion"
	}

	return &BarionProvider{
		POSKey:         strings.TrimSpace(env.GetEnv("BARION_POS_KEY", "")),
		CallbackSecret: strings.TrimSpace(env.GetEnv("BARION_CALLBACK_SECRET", "")),
		APIBaseURL:     strings.TrimSpace(env.GetEnv("BARION_API_BASE_URL", defaultBarionAPIBaseURL)),
		RedirectURL:    redirectURL,
		CallbackURL:    callbackURL,
		Payee:          strings.TrimSpace(env.GetEnv("BARION_PAYEE_EMAIL", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (p *BarionProvider) Name() string { return models.PaymentProviderBarion }

// EnsureCustomer is a no-op: Barion has no customer objects, payers are
// identified per payment.
func (p *BarionProvider) EnsureCustomer(ctx context.Context, userID uint, email string) (string, error) {
	return "", nil
}

func (p *BarionProvider) CreateCheckoutSession(ctx context.Context, order *models.Order, item *models.OrderItem, customerID string) (*CheckoutSession, error) {
	if strings.TrimSpace(p.POSKey) == "" {
		return nil, errors.New("BARION_POS_KEY is not configured")
	}
	if strings.TrimSpace(p.RedirectURL) == "" || strings.TrimSpace(p.CallbackURL) == "" {
		return nil, errors.New("BARION_REDIRECT_URL/BARION_CALLBACK_URL are not configured")
	}

	// Barion totals are expressed in major units.
	total := float64(order.TotalCents) / 100
	unitPrice := float64(item.UnitPriceCents) / 100

	payload := map[string]interface{}{
		"POSKey":           p.POSKey,
		"PaymentType":      "Immediate",
		"GuestCheckOut":    true,
		"FundingSources":   []string{"All"},
		"PaymentRequestId": fmt.Sprintf("order-%d", order.ID),
		"RedirectUrl":      p.RedirectURL,
		"CallbackUrl":      p.CallbackURL,
		"Currency":         strings.ToUpper(order.Currency),
		"Transactions": []map[string]interface{}{
			{
				"POSTransactionId": fmt.Sprintf("order-%d-1", order.ID),
				"Payee":            p.Payee,
				"Total":            total,
				"Items": []map[string]interface{}{
					{
						"Name":        item.PlanName,
						"Description": item.PlanCode,
						"Quantity":    item.Quantity,
						"Unit":        "pcs",
						"UnitPrice":   unitPrice,
						"ItemTotal":   total,
					},
				},
			},
		},
	}

	body, err := p.postJSON(ctx, "/v2/Payment/Start", payload)
	if err != nil {
		return nil, err
	}

	var out struct {
		PaymentId  string `json:"PaymentId"`
		GatewayUrl string `json:"GatewayUrl"`
		Status     string `json:"Status"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.PaymentId) == "" || strings.TrimSpace(out.GatewayUrl) == "" {
		return nil, errors.New("barion payment start response missing PaymentId or GatewayUrl")
	}

	return &CheckoutSession{
		ID:          out.PaymentId,
		URL:         out.GatewayUrl,
		AmountTotal: order.TotalCents,
		Currency:    strings.ToUpper(order.Currency),
	}, nil
}

func (p *BarionProvider) VerifyWebhook(rawBody []byte, signatureHeader string) (*ProviderEvent, error) {
	if !VerifyBarionWebhookSignature(rawBody, signatureHeader, p.CallbackSecret) {
		return nil, ErrInvalidSignature
	}

	var raw struct {
		EventId          string   `json:"EventId"`
		PaymentId        string   `json:"PaymentId"`
		PaymentRequestId string   `json:"PaymentRequestId"`
		Status           string   `json:"Status"`
		Total            *float64 `json:"Total"`
		Currency         string   `json:"Currency"`
	}
	if err := json.Unmarshal(rawBody, &raw); err != nil {
		return nil, fmt.Errorf("invalid barion callback payload: %w", err)
	}
	if strings.TrimSpace(raw.PaymentId) == "" {
		return nil, errors.New("barion callback payload missing PaymentId")
	}

	eventID := strings.TrimSpace(raw.EventId)
	if eventID == "" {
		// Barion retries carry the same payment/status pair.
		eventID = fmt.Sprintf("%s:%s", raw.PaymentId, strings.ToLower(raw.Status))
	}

	event := &ProviderEvent{
		ID:        eventID,
		Type:      "payment." + strings.ToLower(strings.TrimSpace(raw.Status)),
		SessionID: strings.TrimSpace(raw.PaymentId),
		Currency:  strings.ToUpper(strings.TrimSpace(raw.Currency)),
	}
	// Barion callbacks do not always include the total; reconciliation only
	// runs when one was sent.
	if raw.Total != nil {
		event.AmountCents = int64(math.Round(*raw.Total * 100))
		event.HasAmount = true
	}

	switch strings.ToLower(strings.TrimSpace(raw.Status)) {
	case "succeeded":
		event.Kind = EventCheckoutCompleted
		event.PaymentID = event.SessionID
	case "failed":
		event.Kind = EventPaymentFailed
		event.PaymentID = event.SessionID
		event.FailureMessage = "barion reported payment failure"
	case "expired", "canceled":
		event.Kind = EventCheckoutExpired
	default:
		event.Kind = EventIgnored
	}

	return event, nil
}

func (p *BarionProvider) MinimumAmount(currency string) int64 {
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case "HUF":
		return 100
	case "EUR", "USD":
		return 50
	default:
		return 50
	}
}

func (p *BarionProvider) postJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(p.APIBaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("barion request %s failed: status=%d body=%s", path, resp.StatusCode, string(body))
	}
	return body, nil
}
