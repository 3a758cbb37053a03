package models

import "time"

// LedgerEntryType classifies a signed ledger movement.
type LedgerEntryType string

const (
	LedgerEntryReserve  LedgerEntryType = "reserve"
	LedgerEntryRefund   LedgerEntryType = "refund"
	LedgerEntryPurchase LedgerEntryType = "purchase"
	LedgerEntryBonus    LedgerEntryType = "bonus"
	LedgerEntryManual   LedgerEntryType = "manual"
	LedgerEntrySpend    LedgerEntryType = "spend"
)

// LedgerEntry is the shared shape of one append-only balance movement.
// Entries are never updated or deleted; a user's balance is the sum of
// Amount over all of their entries.
type LedgerEntry struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"not null;index" json:"user_id"`
	OrderID   *uint           `gorm:"index" json:"order_id,omitempty"`
	StoryID   *uint           `gorm:"index" json:"story_id,omitempty"`
	Type      LedgerEntryType `gorm:"type:varchar(20);not null;index" json:"type"`
	Amount    int64           `gorm:"not null" json:"amount"` // negative = debit
	Reason    string          `gorm:"type:varchar(191);not null;default:''" json:"reason"`
	Source    string          `gorm:"type:varchar(191);not null;default:''" json:"source"`
	CreatedAt time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

// CreditLedgerEntry is a movement on the credit balance.
type CreditLedgerEntry struct {
	LedgerEntry
}

func (CreditLedgerEntry) TableName() string { return "credit_ledger_entries" }

// AudioStarLedgerEntry is a movement on the audio-star balance. The table is
// structurally identical to credit_ledger_entries on purpose.
type AudioStarLedgerEntry struct {
	LedgerEntry
}

func (AudioStarLedgerEntry) TableName() string { return "audio_star_ledger_entries" }
