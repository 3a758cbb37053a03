package ledger

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/erik-bogdan/barni-backend/app/models"
)

// Kind selects which of the two structurally identical ledger tables an
// operation runs against.
type Kind string

const (
	KindCredits    Kind = "credits"
	KindAudioStars Kind = "audio_stars"
)

var (
	// ErrInsufficientBalance is the only domain-expected ledger error. It is
	// reported to the caller and never retried.
	ErrInsufficientBalance = errors.New("insufficient balance")

	ErrUnknownKind = errors.New("unknown ledger kind")
)

// Service provides the append-only balance ledger. Entries are never updated
// or deleted; balances are always recomputed from the log.
type Service struct {
	repo Repository
}

// NewService creates a ledger service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a ledger service from a GORM DB handle. Passing a
// transaction handle scopes every operation to that transaction, which is how
// callers combine a refund with their own status mutations atomically.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Balance returns the user's balance as the sum over all entries. No caching;
// the per-user log is small.
func (s *Service) Balance(ctx context.Context, kind Kind, userID uint) (int64, error) {
	if err := validKind(kind); err != nil {
		return 0, err
	}
	return s.repo.SumAmount(ctx, kind, userID)
}

// Reserve debits amount from the user's balance if it is covered. The balance
// check and the insert run inside one transaction holding a row lock on the
// user, so two concurrent reservations cannot both read a stale sum.
func (s *Service) Reserve(ctx context.Context, kind Kind, userID, storyID uint, amount int64, reason, source string) error {
	if err := validKind(kind); err != nil {
		return err
	}
	if amount <= 0 {
		return errors.New("reserve amount must be positive")
	}

	return s.repo.WithinUserLock(ctx, userID, func(r Repository) error {
		balance, err := r.SumAmount(ctx, kind, userID)
		if err != nil {
			return err
		}
		if balance < amount {
			return ErrInsufficientBalance
		}
		sid := storyID
		return r.InsertEntry(ctx, kind, &models.LedgerEntry{
			UserID:  userID,
			StoryID: &sid,
			Type:    models.LedgerEntryReserve,
			Amount:  -amount,
			Reason:  reason,
			Source:  source,
		})
	})
}

// Grant credits amount to the user (purchase, bonus, manual). Idempotency is
// the caller's responsibility; fulfillment checks for an existing purchase
// entry per order before calling this.
func (s *Service) Grant(ctx context.Context, kind Kind, userID uint, orderID *uint, amount int64, entryType models.LedgerEntryType, reason, source string) error {
	if err := validKind(kind); err != nil {
		return err
	}
	if amount <= 0 {
		return errors.New("grant amount must be positive")
	}
	return s.repo.InsertEntry(ctx, kind, &models.LedgerEntry{
		UserID:  userID,
		OrderID: orderID,
		Type:    entryType,
		Amount:  amount,
		Reason:  reason,
		Source:  source,
	})
}

// HasEntryForOrder reports whether an entry of the given type tagged with the
// order already exists. Fulfillment uses this as its idempotency guard.
func (s *Service) HasEntryForOrder(ctx context.Context, kind Kind, orderID uint, entryType models.LedgerEntryType) (bool, error) {
	if err := validKind(kind); err != nil {
		return false, err
	}
	return s.repo.HasEntryForOrder(ctx, kind, orderID, entryType)
}

// RefundOnce inserts a refund entry unless one matching (user, story, reason,
// source) already exists. It must run on a service bound to the same
// transaction as the status mutation that depends on it, otherwise two
// concurrent failure handlers can both pass the existence check.
func (s *Service) RefundOnce(ctx context.Context, kind Kind, userID, storyID uint, reason, source string, amount int64) (bool, error) {
	if err := validKind(kind); err != nil {
		return false, err
	}
	exists, err := s.repo.HasRefundFor(ctx, kind, userID, storyID, reason, source)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	sid := storyID
	return true, s.repo.InsertEntry(ctx, kind, &models.LedgerEntry{
		UserID:  userID,
		StoryID: &sid,
		Type:    models.LedgerEntryRefund,
		Amount:  amount,
		Reason:  reason,
		Source:  source,
	})
}

// RefundOnceAnyKind is RefundOnce for jobs whose reservation may live in
// either ledger (audio can be paid with credits or audio stars). The guard
// checks both tables before inserting into the ledger the reservation used.
func (s *Service) RefundOnceAnyKind(ctx context.Context, reservedKind Kind, userID, storyID uint, reason, source string, amount int64) (bool, error) {
	if err := validKind(reservedKind); err != nil {
		return false, err
	}
	for _, kind := range []Kind{KindCredits, KindAudioStars} {
		exists, err := s.repo.HasRefundFor(ctx, kind, userID, storyID, reason, source)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}
	sid := storyID
	return true, s.repo.InsertEntry(ctx, reservedKind, &models.LedgerEntry{
		UserID:  userID,
		StoryID: &sid,
		Type:    models.LedgerEntryRefund,
		Amount:  amount,
		Reason:  reason,
		Source:  source,
	})
}

func validKind(kind Kind) error {
	switch kind {
	case KindCredits, KindAudioStars:
		return nil
	default:
		return ErrUnknownKind
	}
}

// KindForPayMethod maps a story pay method to the ledger it debits.
func KindForPayMethod(payMethod string) (Kind, error) {
	switch payMethod {
	case models.PayMethodCredits:
		return KindCredits, nil
	case models.PayMethodAudioStars:
		return KindAudioStars, nil
	default:
		return "", ErrUnknownKind
	}
}
