package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erik-bogdan/barni-backend/app/models"
	"github.com/erik-bogdan/barni-backend/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com"

// ErrInvalidSignature is returned by VerifyWebhook when the raw body does not
// match the signature header. Deliveries failing this check are never
// processed; forged fulfillment attempts die here.
var ErrInvalidSignature = errors.New("invalid webhook signature")

type StripeProvider struct {
	SecretKey     string
	WebhookSecret string
	APIBaseURL    string
	SuccessURL    string
	CancelURL     string

	HTTPClient *http.Client
}

func NewStripeProviderFromEnv() *StripeProvider {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	successURL := strings.TrimSpace(env.GetEnv("STRIPE_SUCCESS_URL", ""))
	cancelURL := strings.TrimSpace(env.GetEnv("STRIPE_CANCEL_URL", ""))
	if successURL == "" && base != "" {
		successURL = base + "/checkout/success"
	}
	if cancelURL == "" && base != "" {
		cancelURL = base + "/checkout/cancel"
	}

	return &StripeProvider{
		SecretKey:     strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		WebhookSecret: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		APIBaseURL:    strings.TrimSpace(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL)),
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (p *StripeProvider) Name() string { return models.PaymentProviderStripe }

func (p *StripeProvider) EnsureCustomer(ctx context.Context, userID uint, email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", nil
	}

	form := url.Values{}
	form.Set("email", strings.TrimSpace(email))
	form.Set("metadata[user_id]", strconv.FormatUint(uint64(userID), 10))

	body, err := p.postForm(ctx, "/v1/customers", form)
	if err != nil {
		return "", err
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", errors.New("stripe customer response missing id")
	}
	return out.ID, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, order *models.Order, item *models.OrderItem, customerID string) (*CheckoutSession, error) {
	if strings.TrimSpace(p.SuccessURL) == "" || strings.TrimSpace(p.CancelURL) == "" {
		return nil, errors.New("STRIPE_SUCCESS_URL/STRIPE_CANCEL_URL are not configured")
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	form.Set("client_reference_id", strconv.FormatUint(uint64(order.ID), 10))
	form.Set("metadata[order_id]", strconv.FormatUint(uint64(order.ID), 10))
	if strings.TrimSpace(customerID) != "" {
		form.Set("customer", customerID)
	}
	form.Set("line_items[0][quantity]", strconv.Itoa(item.Quantity))
	form.Set("line_items[0][price_data][currency]", strings.ToLower(order.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(item.UnitPriceCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", item.PlanName)

	body, err := p.postForm(ctx, "/v1/checkout/sessions", form)
	if err != nil {
		return nil, err
	}

	var out struct {
		ID          string `json:"id"`
		URL         string `json:"url"`
		AmountTotal int64  `json:"amount_total"`
		Currency    string `json:"currency"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" || strings.TrimSpace(out.URL) == "" {
		return nil, errors.New("stripe checkout session response missing id or url")
	}

	return &CheckoutSession{
		ID:          out.ID,
		URL:         out.URL,
		AmountTotal: out.AmountTotal,
		Currency:    strings.ToUpper(out.Currency),
	}, nil
}

func (p *StripeProvider) VerifyWebhook(rawBody []byte, signatureHeader string) (*ProviderEvent, error) {
	if !VerifyStripeWebhookSignature(rawBody, signatureHeader, p.WebhookSecret, time.Now()) {
		return nil, ErrInvalidSignature
	}

	var raw struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID               string `json:"id"`
				AmountTotal      int64  `json:"amount_total"`
				Currency         string `json:"currency"`
				PaymentIntent    string `json:"payment_intent"`
				LastPaymentError *struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"last_payment_error"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &raw); err != nil {
		return nil, fmt.Errorf("invalid stripe webhook payload: %w", err)
	}

	event := &ProviderEvent{
		ID:          strings.TrimSpace(raw.ID),
		Type:        strings.TrimSpace(raw.Type),
		AmountCents: raw.Data.Object.AmountTotal,
		Currency:    strings.ToUpper(raw.Data.Object.Currency),
	}

	switch raw.Type {
	case "checkout.session.completed":
		event.Kind = EventCheckoutCompleted
		event.SessionID = raw.Data.Object.ID
		event.PaymentID = raw.Data.Object.PaymentIntent
		// Checkout sessions always carry amount_total; a zero here is a real
		// zero and must fail reconciliation, not skip it.
		event.HasAmount = true
	case "checkout.session.expired":
		event.Kind = EventCheckoutExpired
		event.SessionID = raw.Data.Object.ID
	case "payment_intent.payment_failed":
		event.Kind = EventPaymentFailed
		event.PaymentID = raw.Data.Object.ID
		if raw.Data.Object.LastPaymentError != nil {
			event.FailureCode = raw.Data.Object.LastPaymentError.Code
			event.FailureMessage = raw.Data.Object.LastPaymentError.Message
		}
	default:
		event.Kind = EventIgnored
	}

	return event, nil
}

func (p *StripeProvider) MinimumAmount(currency string) int64 {
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case "HUF":
		return 17500
	case "EUR", "USD":
		return 50
	default:
		return 50
	}
}

func (p *StripeProvider) postForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	if strings.TrimSpace(p.SecretKey) == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}

	endpoint := strings.TrimRight(p.APIBaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+p.SecretKey)

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stripe request %s failed: status=%d body=%s", path, resp.StatusCode, string(body))
	}
	return body, nil
}
