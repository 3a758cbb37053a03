package models

import "time"

const (
	PaymentStatusCreated        = "created"
	PaymentStatusRequiresAction = "requires_action"
	PaymentStatusSucceeded      = "succeeded"
	PaymentStatusFailed         = "failed"
	PaymentStatusRefunded       = "refunded"
)

// Payment is one attempt against an order; an order can accumulate several
// attempts when the user retries a declined card. Rows are append-mostly.
type Payment struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	OrderID           uint      `gorm:"not null;index" json:"order_id"`
	Provider          string    `gorm:"type:varchar(20);not null;index" json:"provider"`
	ProviderPaymentID string    `gorm:"type:varchar(191);default:'';index" json:"provider_payment_id,omitempty"`
	Status            string    `gorm:"type:varchar(30);not null;default:'created';index" json:"status"`
	AmountCents       int64     `gorm:"not null" json:"amount_cents"`
	Currency          string    `gorm:"type:varchar(3);not null" json:"currency"`
	FailureCode       string    `gorm:"type:varchar(100);default:''" json:"failure_code,omitempty"`
	FailureMessage    string    `gorm:"type:text" json:"failure_message,omitempty"`
	CreatedAt         time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
