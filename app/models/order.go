package models

import "time"

// Order status machine. Transitions are driven exclusively by webhook
// processing, never by client requests.
const (
	OrderStatusCreated        = "created"
	OrderStatusPendingPayment = "pending_payment"
	OrderStatusPaid           = "paid"
	OrderStatusCanceled       = "canceled"
	OrderStatusFailed         = "failed"
	OrderStatusRefunded       = "refunded"
)

// Order holds an immutable price snapshot taken at checkout time. The money
// fields are never recomputed from live plan pricing after creation.
type Order struct {
	ID                 uint        `gorm:"primaryKey" json:"id"`
	UserID             uint        `gorm:"not null;index" json:"user_id"`
	Status             string      `gorm:"type:varchar(30);not null;default:'created';index" json:"status"`
	Provider           string      `gorm:"type:varchar(20);not null;index" json:"provider"`
	Currency           string      `gorm:"type:varchar(3);not null" json:"currency"`
	SubtotalCents      int64       `gorm:"not null" json:"subtotal_cents"`
	DiscountCents      int64       `gorm:"not null;default:0" json:"discount_cents"`
	TotalCents         int64       `gorm:"not null" json:"total_cents"`
	CreditsTotal       int64       `gorm:"not null" json:"credits_total"`
	CouponCode         string      `gorm:"type:varchar(50);default:''" json:"coupon_code,omitempty"`
	ProviderSessionID  string      `gorm:"type:varchar(191);default:'';index" json:"provider_session_id,omitempty"`
	ProviderPaymentID  string      `gorm:"type:varchar(191);default:'';index" json:"provider_payment_id,omitempty"`
	ProviderCustomerID string      `gorm:"type:varchar(191);default:''" json:"-"`
	InvoiceID          string      `gorm:"type:varchar(191);default:''" json:"invoice_id,omitempty"`
	PaidAt             *time.Time  `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt          time.Time   `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt          time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
	Items              []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}
