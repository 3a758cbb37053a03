package payments

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erik-bogdan/barni-backend/app/models"
	"github.com/erik-bogdan/barni-backend/internal/pkg/ledger"
)

// Repository abstracts the order/payment persistence so the service can be
// tested against an in-memory implementation.
type Repository interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetActivePlanByCode(ctx context.Context, code string) (*models.Plan, error)
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)

	CreateOrderWithItems(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id uint) (*models.Order, error)
	// GetOrderByProviderRef resolves the order a webhook event refers to by
	// session id or payment id, whichever the provider sent.
	GetOrderByProviderRef(ctx context.Context, provider, sessionID, paymentID string) (*models.Order, error)
	UpdateOrderCheckoutRefs(ctx context.Context, orderID uint, sessionID, customerID, status string) error
	SetOrderPaid(ctx context.Context, orderID uint, providerPaymentID string, paidAt time.Time) error
	SetOrderStatus(ctx context.Context, orderID uint, status string) error
	SetOrderInvoiceID(ctx context.Context, orderID uint, invoiceID string) error

	CreatePayment(ctx context.Context, payment *models.Payment) error

	// CreateWebhookEventIfNotExists inserts the event and reports whether the
	// row is new. Duplicate (provider, provider_event_id) pairs are absorbed by
	// the unique index, never by a read-then-write check.
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.PaymentWebhookEvent) (bool, error)
	MarkWebhookProcessed(ctx context.Context, eventID uint, processingError string) error

	IncrementCouponRedemptions(ctx context.Context, code string) error
	CreateNotification(ctx context.Context, notification *models.Notification) error

	// Transaction runs fn with a repository and ledger service bound to one
	// database transaction.
	Transaction(ctx context.Context, fn func(repo Repository, led *ledger.Service) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates the GORM-backed repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetActivePlanByCode(ctx context.Context, code string) (*models.Plan, error) {
	return models.GetActivePlanByCode(r.db.WithContext(ctx), code)
}

func (r *gormRepository) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *gormRepository) CreateOrderWithItems(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *gormRepository) GetOrderByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormRepository) GetOrderByProviderRef(ctx context.Context, provider, sessionID, paymentID string) (*models.Order, error) {
	query := r.db.WithContext(ctx).Preload("Items").Where("provider = ?", provider)
	switch {
	case sessionID != "" && paymentID != "":
		query = query.Where("provider_session_id = ? OR provider_payment_id = ?", sessionID, paymentID)
	case sessionID != "":
		query = query.Where("provider_session_id = ?", sessionID)
	case paymentID != "":
		query = query.Where("provider_payment_id = ?", paymentID)
	default:
		return nil, gorm.ErrRecordNotFound
	}

	var order models.Order
	if err := query.First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormRepository) UpdateOrderCheckoutRefs(ctx context.Context, orderID uint, sessionID, customerID, status string) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Updates(map[string]interface{}{
		"provider_session_id":  sessionID,
		"provider_customer_id": customerID,
		"status":               status,
	}).Error
}

func (r *gormRepository) SetOrderPaid(ctx context.Context, orderID uint, providerPaymentID string, paidAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Updates(map[string]interface{}{
		"status":              models.OrderStatusPaid,
		"provider_payment_id": providerPaymentID,
		"paid_at":             paidAt,
	}).Error
}

func (r *gormRepository) SetOrderStatus(ctx context.Context, orderID uint, status string) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).
		Update("status", status).Error
}

func (r *gormRepository) SetOrderInvoiceID(ctx context.Context, orderID uint, invoiceID string) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).
		Update("invoice_id", invoiceID).Error
}

func (r *gormRepository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.PaymentWebhookEvent) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, eventID uint, processingError string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.PaymentWebhookEvent{}).Where("id = ?", eventID).Updates(map[string]interface{}{
		"processed_at":     now,
		"processing_error": processingError,
	}).Error
}

func (r *gormRepository) IncrementCouponRedemptions(ctx context.Context, code string) error {
	return r.db.WithContext(ctx).Model(&models.Coupon{}).Where("code = ?", code).
		UpdateColumn("redemptions", gorm.Expr("redemptions + 1")).Error
}

func (r *gormRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(repo Repository, led *ledger.Service) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx}, ledger.NewServiceFromDB(tx))
	})
}
