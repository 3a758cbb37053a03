package ledger

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erik-bogdan/barni-backend/app/models"
)

// Repository provides DB operations used by the ledger service.
type Repository interface {
	// WithinUserLock runs fn inside a transaction that holds a row lock on
	// the user, serializing concurrent reservations for the same account.
	WithinUserLock(ctx context.Context, userID uint, fn func(Repository) error) error
	SumAmount(ctx context.Context, kind Kind, userID uint) (int64, error)
	InsertEntry(ctx context.Context, kind Kind, entry *models.LedgerEntry) error
	HasRefundFor(ctx context.Context, kind Kind, userID, storyID uint, reason, source string) (bool, error)
	HasEntryForOrder(ctx context.Context, kind Kind, orderID uint, entryType models.LedgerEntryType) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a ledger repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func tableName(kind Kind) string {
	if kind == KindAudioStars {
		return models.AudioStarLedgerEntry{}.TableName()
	}
	return models.CreditLedgerEntry{}.TableName()
}

func (r *gormRepository) WithinUserLock(ctx context.Context, userID uint, fn func(Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").First(&user, userID).Error; err != nil {
			return err
		}
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) SumAmount(ctx context.Context, kind Kind, userID uint) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).
		Table(tableName(kind)).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&balance).Error
	return balance, err
}

func (r *gormRepository) InsertEntry(ctx context.Context, kind Kind, entry *models.LedgerEntry) error {
	db := r.db.WithContext(ctx)
	if kind == KindAudioStars {
		return db.Create(&models.AudioStarLedgerEntry{LedgerEntry: *entry}).Error
	}
	return db.Create(&models.CreditLedgerEntry{LedgerEntry: *entry}).Error
}

func (r *gormRepository) HasRefundFor(ctx context.Context, kind Kind, userID, storyID uint, reason, source string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table(tableName(kind)).
		Where("user_id = ? AND story_id = ? AND type = ? AND reason = ? AND source = ?",
			userID, storyID, models.LedgerEntryRefund, reason, source).
		Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) HasEntryForOrder(ctx context.Context, kind Kind, orderID uint, entryType models.LedgerEntryType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table(tableName(kind)).
		Where("order_id = ? AND type = ?", orderID, entryType).
		Count(&count).Error
	return count > 0, err
}
