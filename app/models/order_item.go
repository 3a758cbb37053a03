package models

import "time"

// OrderItem snapshots the purchased plan at order-creation time so historical
// orders stay stable across later plan edits.
type OrderItem struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	OrderID         uint      `gorm:"not null;index" json:"order_id"`
	PlanCode        string    `gorm:"type:varchar(50);not null" json:"plan_code"`
	PlanName        string    `gorm:"type:varchar(150);not null" json:"plan_name"`
	UnitPriceCents  int64     `gorm:"not null" json:"unit_price_cents"`
	Quantity        int       `gorm:"not null;default:1" json:"quantity"`
	CreditsPerUnit  int64     `gorm:"not null" json:"credits_per_unit"`
	BonusCredits    int64     `gorm:"not null;default:0" json:"bonus_credits"`
	BonusAudioStars int64     `gorm:"not null;default:0" json:"bonus_audio_stars"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}
