package payments

import (
	"errors"
	"time"

	"github.com/erik-bogdan/barni-backend/app/models"
)

// AmountEpsilonCents is the tolerance used when reconciling the amount a
// provider reports against the order snapshot. Anything beyond one minor unit
// is treated as a real mismatch, not rounding.
const AmountEpsilonCents = 1

var ErrCouponInvalid = errors.New("coupon is not redeemable")

// Quote is the computed price and credit grant for a checkout, derived from
// the plan and coupon at a single point in time. The order stores these values
// as an immutable snapshot.
type Quote struct {
	Currency        string
	SubtotalCents   int64
	DiscountCents   int64
	TotalCents      int64
	CreditsTotal    int64
	BonusCredits    int64
	BonusAudioStars int64
}

// ComputeQuote prices quantity units of plan, applying coupon if present.
func ComputeQuote(plan *models.Plan, coupon *models.Coupon, quantity int, now time.Time) (*Quote, error) {
	if plan == nil {
		return nil, errors.New("plan is required")
	}
	if quantity < 1 {
		quantity = 1
	}

	qty := int64(quantity)
	subtotal := plan.PriceCents * qty

	var discount int64
	if coupon != nil {
		if !coupon.IsRedeemable(now) {
			return nil, ErrCouponInvalid
		}
		discount = coupon.DiscountFor(subtotal)
	}

	return &Quote{
		Currency:        plan.Currency,
		SubtotalCents:   subtotal,
		DiscountCents:   discount,
		TotalCents:      subtotal - discount,
		CreditsTotal:    (plan.Credits + plan.BonusCredits) * qty,
		BonusCredits:    plan.BonusCredits * qty,
		BonusAudioStars: plan.BonusAudioStars * qty,
	}, nil
}

// amountsMatch reports whether a provider-reported amount reconciles with the
// order total within AmountEpsilonCents.
func amountsMatch(expectedCents, reportedCents int64) bool {
	diff := expectedCents - reportedCents
	if diff < 0 {
		diff = -diff
	}
	return diff <= AmountEpsilonCents
}
