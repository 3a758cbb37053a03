package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/erik-bogdan/barni-backend/app/models"
	"github.com/erik-bogdan/barni-backend/internal/pkg/ledger"
)

type fakeLedgerRepo struct {
	mu      sync.Mutex
	entries map[ledger.Kind][]*models.LedgerEntry
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{entries: map[ledger.Kind][]*models.LedgerEntry{}}
}

func (r *fakeLedgerRepo) WithinUserLock(ctx context.Context, userID uint, fn func(ledger.Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r)
}

func (r *fakeLedgerRepo) SumAmount(ctx context.Context, kind ledger.Kind, userID uint) (int64, error) {
	var sum int64
	for _, e := range r.entries[kind] {
		if e.UserID == userID {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (r *fakeLedgerRepo) InsertEntry(ctx context.Context, kind ledger.Kind, entry *models.LedgerEntry) error {
	r.entries[kind] = append(r.entries[kind], entry)
	return nil
}

func (r *fakeLedgerRepo) HasRefundFor(ctx context.Context, kind ledger.Kind, userID, storyID uint, reason, source string) (bool, error) {
	for _, e := range r.entries[kind] {
		if e.UserID == userID && e.StoryID != nil && *e.StoryID == storyID &&
			e.Type == models.LedgerEntryRefund && e.Reason == reason && e.Source == source {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeLedgerRepo) HasEntryForOrder(ctx context.Context, kind ledger.Kind, orderID uint, entryType models.LedgerEntryType) (bool, error) {
	for _, e := range r.entries[kind] {
		if e.OrderID != nil && *e.OrderID == orderID && e.Type == entryType {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeLedgerRepo) countByType(kind ledger.Kind, entryType models.LedgerEntryType) int {
	n := 0
	for _, e := range r.entries[kind] {
		if e.Type == entryType {
			n++
		}
	}
	return n
}

type fakeRepo struct {
	mu            sync.Mutex
	users         map[uint]*models.User
	plans         map[string]*models.Plan
	coupons       map[string]*models.Coupon
	orders        map[uint]*models.Order
	payments      []*models.Payment
	events        []*models.PaymentWebhookEvent
	notifications []*models.Notification
	led           *fakeLedgerRepo
	nextOrderID   uint
	nextEventID   uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:   map[uint]*models.User{},
		plans:   map[string]*models.Plan{},
		coupons: map[string]*models.Coupon{},
		orders:  map[uint]*models.Order{},
		led:     newFakeLedgerRepo(),
	}
}

func (r *fakeRepo) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) GetActivePlanByCode(ctx context.Context, code string) (*models.Plan, error) {
	if p, ok := r.plans[code]; ok && p.IsActive {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	if c, ok := r.coupons[code]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) CreateOrderWithItems(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextOrderID++
	order.ID = r.nextOrderID
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	r.orders[order.ID] = order
	return nil
}

func (r *fakeRepo) GetOrderByID(ctx context.Context, id uint) (*models.Order, error) {
	if o, ok := r.orders[id]; ok {
		return o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) GetOrderByProviderRef(ctx context.Context, provider, sessionID, paymentID string) (*models.Order, error) {
	for _, o := range r.orders {
		if o.Provider != provider {
			continue
		}
		if sessionID != "" && o.ProviderSessionID == sessionID {
			return o, nil
		}
		if paymentID != "" && o.ProviderPaymentID == paymentID {
			return o, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) UpdateOrderCheckoutRefs(ctx context.Context, orderID uint, sessionID, customerID, status string) error {
	o, ok := r.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.ProviderSessionID = sessionID
	o.ProviderCustomerID = customerID
	o.Status = status
	return nil
}

func (r *fakeRepo) SetOrderPaid(ctx context.Context, orderID uint, providerPaymentID string, paidAt time.Time) error {
	o, ok := r.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.Status = models.OrderStatusPaid
	o.ProviderPaymentID = providerPaymentID
	o.PaidAt = &paidAt
	return nil
}

func (r *fakeRepo) SetOrderStatus(ctx context.Context, orderID uint, status string) error {
	o, ok := r.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.Status = status
	return nil
}

func (r *fakeRepo) SetOrderInvoiceID(ctx context.Context, orderID uint, invoiceID string) error {
	o, ok := r.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.InvoiceID = invoiceID
	return nil
}

func (r *fakeRepo) CreatePayment(ctx context.Context, payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments = append(r.payments, payment)
	return nil
}

func (r *fakeRepo) CreateWebhookEventIfNotExists(ctx context.Context, event *models.PaymentWebhookEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Provider == event.Provider && e.ProviderEventID == event.ProviderEventID {
			return false, nil
		}
	}
	r.nextEventID++
	event.ID = r.nextEventID
	r.events = append(r.events, event)
	return true, nil
}

func (r *fakeRepo) MarkWebhookProcessed(ctx context.Context, eventID uint, processingError string) error {
	for _, e := range r.events {
		if e.ID == eventID {
			now := time.Now()
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeRepo) IncrementCouponRedemptions(ctx context.Context, code string) error {
	if c, ok := r.coupons[code]; ok {
		c.Redemptions++
	}
	return nil
}

func (r *fakeRepo) CreateNotification(ctx context.Context, notification *models.Notification) error {
	r.notifications = append(r.notifications, notification)
	return nil
}

func (r *fakeRepo) Transaction(ctx context.Context, fn func(Repository, *ledger.Service) error) error {
	return fn(r, ledger.NewService(r.led))
}

type stubProvider struct {
	name      string
	session   *CheckoutSession
	event     *ProviderEvent
	verifyErr error
	minimum   int64
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) CreateCheckoutSession(ctx context.Context, order *models.Order, item *models.OrderItem, customerID string) (*CheckoutSession, error) {
	return p.session, nil
}

func (p *stubProvider) VerifyWebhook(rawBody []byte, signatureHeader string) (*ProviderEvent, error) {
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	return p.event, nil
}

func (p *stubProvider) EnsureCustomer(ctx context.Context, userID uint, email string) (string, error) {
	return "cus_stub", nil
}

func (p *stubProvider) MinimumAmount(currency string) int64 { return p.minimum }

func seedOrder(repo *fakeRepo, status string) *models.Order {
	order := &models.Order{
		UserID:        1,
		Status:        status,
		Provider:      "stripe",
		Currency:      "EUR",
		SubtotalCents: 2990,
		TotalCents:    2990,
		CreditsTotal:  1000,
		Items: []models.OrderItem{
			{PlanCode: "pack_1000", PlanName: "Story Pack", UnitPriceCents: 2990, Quantity: 1, CreditsPerUnit: 1000, BonusAudioStars: 5},
		},
	}
	_ = repo.CreateOrderWithItems(context.Background(), order)
	order.ProviderSessionID = "cs_test_1"
	return order
}

func newTestService(repo *fakeRepo, provider Provider) *Service {
	return NewService(repo, provider.Name(), []Provider{provider}, nil)
}

func TestCreateCheckoutOpensSessionAndSnapshotsPrice(t *testing.T) {
	repo := newFakeRepo()
	repo.plans["pack_1000"] = &models.Plan{Code: "pack_1000", Name: "Story Pack", PriceCents: 2990, Currency: "EUR", Credits: 1000, BonusAudioStars: 5, IsActive: true}
	provider := &stubProvider{
		name:    "stripe",
		minimum: 50,
		session: &CheckoutSession{ID: "cs_test_1", URL: "https://pay.example/cs_test_1", AmountTotal: 2990, Currency: "EUR"},
	}
	svc := newTestService(repo, provider)

	result, err := svc.CreateCheckout(context.Background(), CheckoutInput{UserID: 1, PlanCode: "pack_1000", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", result.SessionID)
	assert.Equal(t, int64(2990), result.AmountCents)

	order := repo.orders[result.OrderID]
	require.NotNil(t, order)
	assert.Equal(t, models.OrderStatusPendingPayment, order.Status)
	assert.Equal(t, int64(2990), order.TotalCents)
	assert.Equal(t, int64(1000), order.CreditsTotal)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(5), order.Items[0].BonusAudioStars)
}

func TestCreateCheckoutUnknownPlan(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &stubProvider{name: "stripe", minimum: 50})

	_, err := svc.CreateCheckout(context.Background(), CheckoutInput{UserID: 1, PlanCode: "pack_9999"})
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestCreateCheckoutBelowProviderMinimum(t *testing.T) {
	repo := newFakeRepo()
	repo.plans["tiny"] = &models.Plan{Code: "tiny", Name: "Tiny", PriceCents: 30, Currency: "EUR", Credits: 10, IsActive: true}
	svc := newTestService(repo, &stubProvider{name: "stripe", minimum: 50})

	_, err := svc.CreateCheckout(context.Background(), CheckoutInput{UserID: 1, PlanCode: "tiny"})
	assert.ErrorIs(t, err, ErrBelowMinimumAmount)
}

func TestIngestWebhookDeduplicatesByEventID(t *testing.T) {
	repo := newFakeRepo()
	provider := &stubProvider{
		name:  "stripe",
		event: &ProviderEvent{ID: "evt_1", Type: "checkout.session.completed", Kind: EventCheckoutCompleted, SessionID: "cs_test_1"},
	}
	svc := newTestService(repo, provider)

	first, err := svc.IngestWebhook(context.Background(), "stripe", []byte("{}"), "sig")
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	require.NotNil(t, first.Event)

	second, err := svc.IngestWebhook(context.Background(), "stripe", []byte("{}"), "sig")
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Nil(t, second.Event)
	assert.Len(t, repo.events, 1)
}

func TestIngestWebhookRecordsRejectedDelivery(t *testing.T) {
	repo := newFakeRepo()
	provider := &stubProvider{name: "stripe", verifyErr: ErrInvalidSignature}
	svc := newTestService(repo, provider)

	result, err := svc.IngestWebhook(context.Background(), "stripe", []byte(`{"forged":true}`), "bad")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	require.NotNil(t, result)
	assert.False(t, result.SignatureValid)

	require.Len(t, repo.events, 1)
	assert.False(t, repo.events[0].SignatureValid)
	assert.Equal(t, `{"forged":true}`, repo.events[0].PayloadJSON)
}

func TestCheckoutCompletedSettlesAndFulfillsOnce(t *testing.T) {
	repo := newFakeRepo()
	order := seedOrder(repo, models.OrderStatusPendingPayment)
	svc := newTestService(repo, &stubProvider{name: "stripe"})

	event := &ProviderEvent{
		ID: "evt_1", Type: "checkout.session.completed", Kind: EventCheckoutCompleted,
		SessionID: "cs_test_1", PaymentID: "pi_1", AmountCents: 2990, HasAmount: true, Currency: "EUR",
	}
	require.NoError(t, svc.ProcessEvent(context.Background(), 1, "stripe", event))

	assert.Equal(t, models.OrderStatusPaid, order.Status)
	require.NotNil(t, order.PaidAt)

	balance, err := ledger.NewService(repo.led).Balance(context.Background(), ledger.KindCredits, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)

	stars, err := ledger.NewService(repo.led).Balance(context.Background(), ledger.KindAudioStars, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stars)

	// Replayed completion grants nothing more.
	require.NoError(t, svc.ProcessEvent(context.Background(), 2, "stripe", event))
	balance, err = ledger.NewService(repo.led).Balance(context.Background(), ledger.KindCredits, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)
	assert.Equal(t, 1, repo.led.countByType(ledger.KindCredits, models.LedgerEntryPurchase))
	assert.Len(t, repo.notifications, 1)
}

func TestCheckoutCompletedAmountMismatchFailsOrder(t *testing.T) {
	repo := newFakeRepo()
	order := seedOrder(repo, models.OrderStatusPendingPayment)
	svc := newTestService(repo, &stubProvider{name: "stripe"})

	event := &ProviderEvent{
		ID: "evt_1", Type: "checkout.session.completed", Kind: EventCheckoutCompleted,
		SessionID: "cs_test_1", PaymentID: "pi_1", AmountCents: 1990, HasAmount: true, Currency: "EUR",
	}
	err := svc.ProcessEvent(context.Background(), 1, "stripe", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount mismatch")

	assert.Equal(t, models.OrderStatusFailed, order.Status)
	require.Len(t, repo.payments, 1)
	assert.Equal(t, "amount_mismatch", repo.payments[0].FailureCode)

	balance, err := ledger.NewService(repo.led).Balance(context.Background(), ledger.KindCredits, 1)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestCheckoutCompletedZeroReportedAmountFailsOrder(t *testing.T) {
	repo := newFakeRepo()
	order := seedOrder(repo, models.OrderStatusPendingPayment)
	svc := newTestService(repo, &stubProvider{name: "stripe"})

	// Stripe checkout sessions always carry amount_total, so a reported zero
	// is a real discrepancy and must not fulfill the order.
	event := &ProviderEvent{
		ID: "evt_1", Type: "checkout.session.completed", Kind: EventCheckoutCompleted,
		SessionID: "cs_test_1", PaymentID: "pi_1", AmountCents: 0, HasAmount: true, Currency: "EUR",
	}
	err := svc.ProcessEvent(context.Background(), 1, "stripe", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount mismatch")
	assert.Equal(t, models.OrderStatusFailed, order.Status)

	balance, err := ledger.NewService(repo.led).Balance(context.Background(), ledger.KindCredits, 1)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestCheckoutCompletedWithoutReportedAmountSettles(t *testing.T) {
	repo := newFakeRepo()
	order := seedOrder(repo, models.OrderStatusPendingPayment)
	svc := newTestService(repo, &stubProvider{name: "barion"})
	order.Provider = "barion"

	// Barion callbacks may omit the total; reconciliation is skipped, not
	// failed, when no amount was sent.
	event := &ProviderEvent{
		ID: "evt_1", Type: "payment.succeeded", Kind: EventCheckoutCompleted,
		SessionID: "cs_test_1", PaymentID: "pay_1",
	}
	require.NoError(t, svc.ProcessEvent(context.Background(), 1, "barion", event))
	assert.Equal(t, models.OrderStatusPaid, order.Status)
}

func TestCheckoutCompletedToleratesOneMinorUnit(t *testing.T) {
	repo := newFakeRepo()
	order := seedOrder(repo, models.OrderStatusPendingPayment)
	svc := newTestService(repo, &stubProvider{name: "stripe"})

	event := &ProviderEvent{
		ID: "evt_1", Type: "checkout.session.completed", Kind: EventCheckoutCompleted,
		SessionID: "cs_test_1", PaymentID: "pi_1", AmountCents: 2991, HasAmount: true, Currency: "EUR",
	}
	require.NoError(t, svc.ProcessEvent(context.Background(), 1, "stripe", event))
	assert.Equal(t, models.OrderStatusPaid, order.Status)
}

func TestPaymentFailedKeepsOrderPending(t *testing.T) {
	repo := newFakeRepo()
	order := seedOrder(repo, models.OrderStatusPendingPayment)
	order.ProviderPaymentID = "pi_1"
	svc := newTestService(repo, &stubProvider{name: "stripe"})

	event := &ProviderEvent{
		ID: "evt_1", Type: "payment_intent.payment_failed", Kind: EventPaymentFailed,
		PaymentID: "pi_1", FailureCode: "card_declined", FailureMessage: "Your card was declined.",
	}
	require.NoError(t, svc.ProcessEvent(context.Background(), 1, "stripe", event))

	assert.Equal(t, models.OrderStatusPendingPayment, order.Status)
	require.Len(t, repo.payments, 1)
	assert.Equal(t, models.PaymentStatusFailed, repo.payments[0].Status)
	assert.Equal(t, "card_declined", repo.payments[0].FailureCode)
}

func TestCheckoutExpiredCancelsOrder(t *testing.T) {
	repo := newFakeRepo()
	order := seedOrder(repo, models.OrderStatusPendingPayment)
	svc := newTestService(repo, &stubProvider{name: "stripe"})

	event := &ProviderEvent{
		ID: "evt_1", Type: "checkout.session.expired", Kind: EventCheckoutExpired, SessionID: "cs_test_1",
	}
	require.NoError(t, svc.ProcessEvent(context.Background(), 1, "stripe", event))
	assert.Equal(t, models.OrderStatusCanceled, order.Status)
}

func TestLateEventsAfterPaidAreNoOps(t *testing.T) {
	repo := newFakeRepo()
	order := seedOrder(repo, models.OrderStatusPaid)
	svc := newTestService(repo, &stubProvider{name: "stripe"})

	for _, event := range []*ProviderEvent{
		{ID: "evt_1", Kind: EventCheckoutExpired, SessionID: "cs_test_1"},
		{ID: "evt_2", Kind: EventPaymentFailed, SessionID: "cs_test_1"},
	} {
		require.NoError(t, svc.ProcessEvent(context.Background(), 1, "stripe", event))
	}
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Empty(t, repo.payments)
}

func TestFulfillOrderRequiresPaidStatus(t *testing.T) {
	repo := newFakeRepo()
	order := seedOrder(repo, models.OrderStatusPendingPayment)
	svc := newTestService(repo, &stubProvider{name: "stripe"})

	err := svc.FulfillOrder(context.Background(), order.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only paid orders")
}

func TestComputeQuote(t *testing.T) {
	plan := &models.Plan{Code: "pack_2500", PriceCents: 5990, Currency: "EUR", Credits: 2500, BonusCredits: 250, BonusAudioStars: 15}

	quote, err := ComputeQuote(plan, nil, 2, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(11980), quote.TotalCents)
	assert.Equal(t, int64(5500), quote.CreditsTotal)
	assert.Equal(t, int64(30), quote.BonusAudioStars)
}

func TestComputeQuoteWithPercentCoupon(t *testing.T) {
	plan := &models.Plan{Code: "pack_250", PriceCents: 990, Currency: "EUR", Credits: 250}
	coupon := &models.Coupon{Code: "WELCOME10", PercentOff: 10, IsActive: true}

	quote, err := ComputeQuote(plan, coupon, 1, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(99), quote.DiscountCents)
	assert.Equal(t, int64(891), quote.TotalCents)
}

func TestComputeQuoteClampsOversizedDiscount(t *testing.T) {
	plan := &models.Plan{Code: "pack_250", PriceCents: 990, Currency: "EUR", Credits: 250}
	coupon := &models.Coupon{Code: "BIG", AmountOffCents: 5000, IsActive: true}

	quote, err := ComputeQuote(plan, coupon, 1, time.Now())
	require.NoError(t, err)
	assert.Zero(t, quote.TotalCents)
}

func TestComputeQuoteRejectsExpiredCoupon(t *testing.T) {
	plan := &models.Plan{Code: "pack_250", PriceCents: 990, Currency: "EUR", Credits: 250}
	past := time.Now().Add(-time.Hour)
	coupon := &models.Coupon{Code: "OLD", PercentOff: 10, IsActive: true, ValidUntil: &past}

	_, err := ComputeQuote(plan, coupon, 1, time.Now())
	assert.ErrorIs(t, err, ErrCouponInvalid)
}

func stripeSignatureHeader(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyStripeWebhookSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	header := stripeSignatureHeader(payload, "whsec_test", now)

	assert.True(t, VerifyStripeWebhookSignature(payload, header, "whsec_test", now))
	assert.False(t, VerifyStripeWebhookSignature(payload, header, "whsec_other", now))
	assert.False(t, VerifyStripeWebhookSignature([]byte(`{"id":"evt_2"}`), header, "whsec_test", now))
	// Outside the replay tolerance.
	assert.False(t, VerifyStripeWebhookSignature(payload, header, "whsec_test", now.Add(10*time.Minute)))
	assert.False(t, VerifyStripeWebhookSignature(payload, "", "whsec_test", now))
}

func TestStripeVerifyWebhookMarksCompletedAmountPresent(t *testing.T) {
	p := &StripeProvider{WebhookSecret: "whsec_test"}
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","amount_total":0,"currency":"eur"}}}`)
	header := stripeSignatureHeader(payload, "whsec_test", time.Now())

	event, err := p.VerifyWebhook(payload, header)
	require.NoError(t, err)
	assert.Equal(t, EventCheckoutCompleted, event.Kind)
	assert.True(t, event.HasAmount)
	assert.Zero(t, event.AmountCents)
}

func barionSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestBarionVerifyWebhookAmountPresence(t *testing.T) {
	p := &BarionProvider{CallbackSecret: "cbsecret"}

	withTotal := []byte(`{"PaymentId":"p1","Status":"Succeeded","Total":29.90,"Currency":"EUR"}`)
	event, err := p.VerifyWebhook(withTotal, barionSignature(withTotal, "cbsecret"))
	require.NoError(t, err)
	assert.True(t, event.HasAmount)
	assert.Equal(t, int64(2990), event.AmountCents)

	withoutTotal := []byte(`{"PaymentId":"p1","Status":"Succeeded"}`)
	event, err = p.VerifyWebhook(withoutTotal, barionSignature(withoutTotal, "cbsecret"))
	require.NoError(t, err)
	assert.False(t, event.HasAmount)
}

func TestVerifyBarionWebhookSignature(t *testing.T) {
	payload := []byte(`{"PaymentId":"p1","Status":"Succeeded"}`)
	mac := hmac.New(sha256.New, []byte("cbsecret"))
	mac.Write(payload)
	sig := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, VerifyBarionWebhookSignature(payload, sig, "cbsecret"))
	assert.False(t, VerifyBarionWebhookSignature(payload, sig, "wrong"))
	assert.False(t, VerifyBarionWebhookSignature(payload, "zz", "cbsecret"))
}
