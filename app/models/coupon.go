package models

import "time"

// Coupon applies either a percentage or a fixed discount to an order subtotal.
type Coupon struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Code           string     `gorm:"type:varchar(50);not null;uniqueIndex" json:"code"`
	PercentOff     int        `gorm:"not null;default:0" json:"percent_off"`
	AmountOffCents int64      `gorm:"not null;default:0" json:"amount_off_cents"`
	ValidFrom      *time.Time `gorm:"type:timestamp;default:null" json:"valid_from,omitempty"`
	ValidUntil     *time.Time `gorm:"type:timestamp;default:null" json:"valid_until,omitempty"`
	MaxRedemptions int        `gorm:"not null;default:0" json:"max_redemptions"` // 0 = unlimited
	Redemptions    int        `gorm:"not null;default:0" json:"redemptions"`
	IsActive       bool       `gorm:"default:true;index" json:"is_active"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsRedeemable reports whether the coupon can be applied at the given time.
func (c *Coupon) IsRedeemable(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return false
	}
	if c.MaxRedemptions > 0 && c.Redemptions >= c.MaxRedemptions {
		return false
	}
	return true
}

// DiscountFor returns the discount in cents for the given subtotal, clamped
// so the total never goes negative.
func (c *Coupon) DiscountFor(subtotalCents int64) int64 {
	var discount int64
	if c.PercentOff > 0 {
		discount = subtotalCents * int64(c.PercentOff) / 100
	} else {
		discount = c.AmountOffCents
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
