package payments

import (
	"context"
	"errors"

	"github.com/erik-bogdan/barni-backend/app/models"
)

var ErrUnknownProvider = errors.New("unknown payment provider")

// CheckoutSession is the provider-side session a user is redirected to.
type CheckoutSession struct {
	ID          string
	URL         string
	AmountTotal int64
	Currency    string
}

// Provider is the single contract both card-payment integrations implement.
// Which provider is active is an explicit configuration value injected into
// the payments service at construction time.
type Provider interface {
	Name() string
	CreateCheckoutSession(ctx context.Context, order *models.Order, item *models.OrderItem, customerID string) (*CheckoutSession, error)
	// VerifyWebhook checks the signature against the raw body and returns the
	// normalized event. A signature failure returns an error and no event.
	VerifyWebhook(rawBody []byte, signatureHeader string) (*ProviderEvent, error)
	EnsureCustomer(ctx context.Context, userID uint, email string) (string, error)
	// MinimumAmount returns the smallest chargeable total in minor units.
	MinimumAmount(currency string) int64
}
