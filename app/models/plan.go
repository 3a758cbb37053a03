package models

import (
	"time"

	"gorm.io/gorm"
)

// Plan is a purchasable credit pack. Orders never reference plans directly;
// checkout copies the relevant fields into an OrderItem snapshot.
type Plan struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Code            string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"code"`
	Name            string    `gorm:"type:varchar(150);not null" json:"name"`
	PriceCents      int64     `gorm:"not null" json:"price_cents"`
	Currency        string    `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`
	Credits         int64     `gorm:"not null" json:"credits"`
	BonusCredits    int64     `gorm:"not null;default:0" json:"bonus_credits"`
	BonusAudioStars int64     `gorm:"not null;default:0" json:"bonus_audio_stars"`
	IsActive        bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetActivePlanByCode loads an active plan for checkout.
func GetActivePlanByCode(db *gorm.DB, code string) (*Plan, error) {
	var plan Plan
	err := db.Where("code = ? AND is_active = ?", code, true).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// SeedDefaultPlans inserts the standard credit packs if the table is empty.
func SeedDefaultPlans(db *gorm.DB) error {
	var count int64
	if err := db.Model(&Plan{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	plans := []Plan{
		{Code: "pack_250", Name: "Starter Pack", PriceCents: 990, Currency: "EUR", Credits: 250},
		{Code: "pack_1000", Name: "Story Pack", PriceCents: 2990, Currency: "EUR", Credits: 1000, BonusAudioStars: 5},
		{Code: "pack_2500", Name: "Family Pack", PriceCents: 5990, Currency: "EUR", Credits: 2500, BonusCredits: 250, BonusAudioStars: 15},
	}
	return db.Create(&plans).Error
}
