package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erik-bogdan/barni-backend/app/models"
	"github.com/erik-bogdan/barni-backend/internal/pkg/ledger"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrPlanNotFound       = errors.New("plan not found")
	ErrBelowMinimumAmount = errors.New("order total is below the provider minimum")
)

// Invoicer creates an invoice for a paid order and returns its external id.
// Invoicing is best effort; a failure never affects payment processing.
type Invoicer interface {
	CreateInvoice(ctx context.Context, order *models.Order, email string) (string, error)
}

// Service implements checkout creation and webhook-driven order settlement.
type Service struct {
	repo      Repository
	providers map[string]Provider
	active    string
	invoicer  Invoicer
}

// NewService builds the payments service. activeProvider selects which of the
// registered providers new checkouts go through; webhooks are accepted from
// every registered provider so in-flight sessions survive a switch.
func NewService(repo Repository, activeProvider string, providers []Provider, invoicer Invoicer) *Service {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Service{
		repo:      repo,
		providers: byName,
		active:    activeProvider,
		invoicer:  invoicer,
	}
}

func (s *Service) providerByName(name string) (Provider, error) {
	p, ok := s.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// CreateCheckout prices the requested plan, persists the order snapshot and
// opens a checkout session with the active provider.
func (s *Service) CreateCheckout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	provider, err := s.providerByName(s.active)
	if err != nil {
		return nil, err
	}

	plan, err := s.repo.GetActivePlanByCode(ctx, in.PlanCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	var coupon *models.Coupon
	if strings.TrimSpace(in.CouponCode) != "" {
		coupon, err = s.repo.GetCouponByCode(ctx, strings.TrimSpace(in.CouponCode))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCouponInvalid
			}
			return nil, err
		}
	}

	quote, err := ComputeQuote(plan, coupon, in.Quantity, time.Now())
	if err != nil {
		return nil, err
	}
	if quote.TotalCents < provider.MinimumAmount(quote.Currency) {
		return nil, ErrBelowMinimumAmount
	}

	quantity := in.Quantity
	if quantity < 1 {
		quantity = 1
	}

	order := &models.Order{
		UserID:        in.UserID,
		Status:        models.OrderStatusCreated,
		Provider:      provider.Name(),
		Currency:      quote.Currency,
		SubtotalCents: quote.SubtotalCents,
		DiscountCents: quote.DiscountCents,
		TotalCents:    quote.TotalCents,
		CreditsTotal:  quote.CreditsTotal,
		Items: []models.OrderItem{
			{
				PlanCode:        plan.Code,
				PlanName:        plan.Name,
				UnitPriceCents:  plan.PriceCents,
				Quantity:        quantity,
				CreditsPerUnit:  plan.Credits,
				BonusCredits:    quote.BonusCredits,
				BonusAudioStars: quote.BonusAudioStars,
			},
		},
	}
	if coupon != nil {
		order.CouponCode = coupon.Code
	}
	if err := s.repo.CreateOrderWithItems(ctx, order); err != nil {
		return nil, err
	}

	customerID, err := provider.EnsureCustomer(ctx, in.UserID, in.Email)
	if err != nil {
		// A missing provider customer only costs prefilled checkout data.
		log.Warnf("[Payments] EnsureCustomer failed for user %d: %v", in.UserID, err)
		customerID = ""
	}

	session, err := provider.CreateCheckoutSession(ctx, order, &order.Items[0], customerID)
	if err != nil {
		if stErr := s.repo.SetOrderStatus(ctx, order.ID, models.OrderStatusFailed); stErr != nil {
			log.Errorf("[Payments] failed to mark order %d failed after checkout error: %v", order.ID, stErr)
		}
		return nil, err
	}

	if err := s.repo.UpdateOrderCheckoutRefs(ctx, order.ID, session.ID, customerID, models.OrderStatusPendingPayment); err != nil {
		return nil, err
	}

	log.Infof("[Payments] order %d: checkout session %s opened with %s (%d %s)",
		order.ID, session.ID, provider.Name(), quote.TotalCents, quote.Currency)

	return &CheckoutResult{
		OrderID:     order.ID,
		Provider:    provider.Name(),
		SessionID:   session.ID,
		RedirectURL: session.URL,
		AmountCents: quote.TotalCents,
		Currency:    quote.Currency,
	}, nil
}

// IngestWebhook verifies and records one webhook delivery. Every delivery is
// persisted, including those failing signature verification; duplicates are
// detected by the unique (provider, provider_event_id) index and reported
// without an error so the caller can acknowledge them.
func (s *Service) IngestWebhook(ctx context.Context, providerName string, rawBody []byte, signatureHeader string) (*IngestedWebhook, error) {
	provider, err := s.providerByName(providerName)
	if err != nil {
		return nil, err
	}

	event, verifyErr := provider.VerifyWebhook(rawBody, signatureHeader)

	record := &models.PaymentWebhookEvent{
		Provider:       provider.Name(),
		PayloadJSON:    string(rawBody),
		SignatureValid: verifyErr == nil,
	}
	if event != nil {
		record.ProviderEventID = event.ID
		record.EventType = event.Type
	} else {
		// Rejected deliveries have no trusted event id; store them under a
		// synthetic one so the unique index does not collapse them.
		record.ProviderEventID = "rejected-" + uuid.New().String()
		record.EventType = "rejected"
	}

	inserted, err := s.repo.CreateWebhookEventIfNotExists(ctx, record)
	if err != nil {
		return nil, err
	}
	if !inserted {
		log.Infof("[Payments] duplicate %s webhook %s ignored", provider.Name(), record.ProviderEventID)
		return &IngestedWebhook{Duplicate: true, SignatureValid: verifyErr == nil}, nil
	}

	if verifyErr != nil {
		log.Warnf("[Payments] %s webhook rejected: %v", provider.Name(), verifyErr)
		return &IngestedWebhook{EventID: record.ID, SignatureValid: false}, verifyErr
	}

	return &IngestedWebhook{EventID: record.ID, SignatureValid: true, Event: event}, nil
}

// ProcessEvent applies one ingested webhook event to its order and records the
// outcome on the stored event row. It is called after the delivery has been
// acknowledged, so errors here are visible only through processing_error.
func (s *Service) ProcessEvent(ctx context.Context, eventID uint, providerName string, event *ProviderEvent) error {
	processErr := s.applyEvent(ctx, providerName, event)

	errText := ""
	if processErr != nil {
		errText = processErr.Error()
		log.Errorf("[Payments] event %s (%s): %v", event.ID, event.Type, processErr)
	}
	if err := s.repo.MarkWebhookProcessed(ctx, eventID, errText); err != nil {
		log.Errorf("[Payments] failed to mark webhook event %d processed: %v", eventID, err)
	}
	return processErr
}

func (s *Service) applyEvent(ctx context.Context, providerName string, event *ProviderEvent) error {
	if event == nil || event.Kind == EventIgnored {
		return nil
	}

	order, err := s.repo.GetOrderByProviderRef(ctx, providerName, event.SessionID, event.PaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: no order matches session=%q payment=%q", ErrOrderNotFound, event.SessionID, event.PaymentID)
		}
		return err
	}

	switch event.Kind {
	case EventCheckoutCompleted:
		return s.applyCheckoutCompleted(ctx, order, event)
	case EventPaymentFailed:
		return s.applyPaymentFailed(ctx, order, event)
	case EventCheckoutExpired:
		return s.applyCheckoutExpired(ctx, order)
	default:
		return nil
	}
}

func (s *Service) applyCheckoutCompleted(ctx context.Context, order *models.Order, event *ProviderEvent) error {
	if order.Status == models.OrderStatusPaid {
		log.Infof("[Payments] order %d already paid, ignoring replayed completion", order.ID)
		return nil
	}
	if order.Status != models.OrderStatusCreated && order.Status != models.OrderStatusPendingPayment {
		return fmt.Errorf("order %d is %s, cannot complete", order.ID, order.Status)
	}

	if event.HasAmount && !amountsMatch(order.TotalCents, event.AmountCents) {
		// A reported amount that disagrees with the snapshot is never
		// fulfilled and never retried; the order is parked as failed for
		// manual review.
		err := s.repo.Transaction(ctx, func(repo Repository, _ *ledger.Service) error {
			if err := repo.SetOrderStatus(ctx, order.ID, models.OrderStatusFailed); err != nil {
				return err
			}
			return repo.CreatePayment(ctx, &models.Payment{
				OrderID:           order.ID,
				Provider:          order.Provider,
				ProviderPaymentID: event.PaymentID,
				Status:            models.PaymentStatusFailed,
				AmountCents:       event.AmountCents,
				Currency:          event.Currency,
				FailureCode:       "amount_mismatch",
				FailureMessage:    fmt.Sprintf("provider reported %d, order total is %d", event.AmountCents, order.TotalCents),
			})
		})
		if err != nil {
			return err
		}
		return fmt.Errorf("amount mismatch on order %d: provider reported %d %s, expected %d %s",
			order.ID, event.AmountCents, event.Currency, order.TotalCents, order.Currency)
	}

	paidAt := time.Now()
	err := s.repo.Transaction(ctx, func(repo Repository, led *ledger.Service) error {
		if err := repo.SetOrderPaid(ctx, order.ID, event.PaymentID, paidAt); err != nil {
			return err
		}
		if err := repo.CreatePayment(ctx, &models.Payment{
			OrderID:           order.ID,
			Provider:          order.Provider,
			ProviderPaymentID: event.PaymentID,
			Status:            models.PaymentStatusSucceeded,
			AmountCents:       order.TotalCents,
			Currency:          order.Currency,
		}); err != nil {
			return err
		}
		return fulfillOrder(ctx, repo, led, order)
	})
	if err != nil {
		return err
	}

	log.Infof("[Payments] order %d paid and fulfilled (%d credits)", order.ID, order.CreditsTotal)
	s.issueInvoice(ctx, order)
	return nil
}

func (s *Service) applyPaymentFailed(ctx context.Context, order *models.Order, event *ProviderEvent) error {
	if order.Status == models.OrderStatusPaid {
		// Late failure event for an attempt that was superseded by a
		// successful one.
		return nil
	}

	// The order stays pending: the user can retry the same checkout session.
	return s.repo.CreatePayment(ctx, &models.Payment{
		OrderID:           order.ID,
		Provider:          order.Provider,
		ProviderPaymentID: event.PaymentID,
		Status:            models.PaymentStatusFailed,
		AmountCents:       event.AmountCents,
		Currency:          event.Currency,
		FailureCode:       event.FailureCode,
		FailureMessage:    event.FailureMessage,
	})
}

func (s *Service) applyCheckoutExpired(ctx context.Context, order *models.Order) error {
	if order.Status == models.OrderStatusPaid {
		return nil
	}
	log.Infof("[Payments] order %d canceled, checkout session expired", order.ID)
	return s.repo.SetOrderStatus(ctx, order.ID, models.OrderStatusCanceled)
}

// issueInvoice creates the invoice for a paid order. It runs after the
// settlement transaction committed and only logs on failure.
func (s *Service) issueInvoice(ctx context.Context, order *models.Order) {
	if s.invoicer == nil {
		return
	}

	email := ""
	if user, err := s.repo.GetUserByID(ctx, order.UserID); err == nil {
		email = user.Email
	}

	invoiceID, err := s.invoicer.CreateInvoice(ctx, order, email)
	if err != nil {
		log.Errorf("[Payments] invoice creation failed for order %d: %v", order.ID, err)
		return
	}
	if err := s.repo.SetOrderInvoiceID(ctx, order.ID, invoiceID); err != nil {
		log.Errorf("[Payments] failed to store invoice id for order %d: %v", order.ID, err)
	}
}
