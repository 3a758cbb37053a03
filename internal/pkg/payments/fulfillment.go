package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/erik-bogdan/barni-backend/app/models"
	"github.com/erik-bogdan/barni-backend/internal/pkg/ledger"
)

// fulfillOrder grants the order's credits and bonuses. It is idempotent: a
// purchase entry tagged with the order id means the grants already happened,
// regardless of how the second attempt arrived (webhook replay, admin action).
func fulfillOrder(ctx context.Context, repo Repository, led *ledger.Service, order *models.Order) error {
	exists, err := led.HasEntryForOrder(ctx, ledger.KindCredits, order.ID, models.LedgerEntryPurchase)
	if err != nil {
		return err
	}
	if exists {
		log.Infof("[Payments] order %d already fulfilled, skipping grants", order.ID)
		return nil
	}

	orderID := order.ID
	for _, item := range order.Items {
		credits := item.CreditsPerUnit * int64(item.Quantity)
		if credits > 0 {
			if err := led.Grant(ctx, ledger.KindCredits, order.UserID, &orderID, credits,
				models.LedgerEntryPurchase, "plan "+item.PlanCode, "payments"); err != nil {
				return err
			}
		}
		if item.BonusCredits > 0 {
			if err := led.Grant(ctx, ledger.KindCredits, order.UserID, &orderID, item.BonusCredits,
				models.LedgerEntryBonus, "plan "+item.PlanCode+" bonus", "payments"); err != nil {
				return err
			}
		}
		if item.BonusAudioStars > 0 {
			if err := led.Grant(ctx, ledger.KindAudioStars, order.UserID, &orderID, item.BonusAudioStars,
				models.LedgerEntryBonus, "plan "+item.PlanCode+" bonus", "payments"); err != nil {
				return err
			}
		}
	}

	if order.CouponCode != "" {
		if err := repo.IncrementCouponRedemptions(ctx, order.CouponCode); err != nil {
			return err
		}
	}

	return repo.CreateNotification(ctx, &models.Notification{
		UserID:      order.UserID,
		Type:        models.NotificationTypePurchase,
		Content:     fmt.Sprintf("Your purchase of %d credits is complete.", order.CreditsTotal),
		ReferenceID: order.ID,
	})
}

// FulfillOrder re-runs fulfillment for a paid order. Admin escape hatch for
// the case where settlement committed but a grant needs to be replayed after
// manual ledger surgery; the idempotency guard keeps it safe to call blindly.
func (s *Service) FulfillOrder(ctx context.Context, orderID uint) error {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return err
	}
	if order.Status != models.OrderStatusPaid {
		return fmt.Errorf("order %d is %s, only paid orders can be fulfilled", order.ID, order.Status)
	}

	return s.repo.Transaction(ctx, func(repo Repository, led *ledger.Service) error {
		return fulfillOrder(ctx, repo, led, order)
	})
}
