package payments

// EventKind is the provider-agnostic classification of a webhook event.
type EventKind string

const (
	EventCheckoutCompleted EventKind = "checkout_completed"
	EventPaymentFailed     EventKind = "payment_failed"
	EventCheckoutExpired   EventKind = "checkout_expired"
	EventIgnored           EventKind = "ignored"
)

// ProviderEvent is the normalized shape of a verified webhook event from
// either payment provider. HasAmount reports whether the provider included
// an amount in the payload: when set, AmountCents is reconciled against the
// order snapshot even if it is zero.
type ProviderEvent struct {
	ID             string
	Type           string
	Kind           EventKind
	SessionID      string
	PaymentID      string
	AmountCents    int64
	HasAmount      bool
	Currency       string
	FailureCode    string
	FailureMessage string
}

// CheckoutInput is the normalized input for checkout creation.
type CheckoutInput struct {
	UserID     uint
	Email      string
	PlanCode   string
	CouponCode string
	Quantity   int
}

// CheckoutResult is returned to the HTTP layer after a checkout session has
// been created with the active provider.
type CheckoutResult struct {
	OrderID     uint
	Provider    string
	SessionID   string
	RedirectURL string
	AmountCents int64
	Currency    string
}

// IngestedWebhook reports what happened to an incoming webhook delivery.
// Processing of non-duplicate, validly signed events happens asynchronously
// after the delivery has been acknowledged.
type IngestedWebhook struct {
	EventID        uint
	Duplicate      bool
	SignatureValid bool
	Event          *ProviderEvent
}
