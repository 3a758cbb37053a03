package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erik-bogdan/barni-backend/app/models"
)

// memoryRepository is an in-memory Repository for service-level tests. The
// user lock is a no-op because tests are single-goroutine.
type memoryRepository struct {
	entries map[Kind][]models.LedgerEntry
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{entries: map[Kind][]models.LedgerEntry{}}
}

func (m *memoryRepository) WithinUserLock(ctx context.Context, userID uint, fn func(Repository) error) error {
	return fn(m)
}

func (m *memoryRepository) SumAmount(ctx context.Context, kind Kind, userID uint) (int64, error) {
	var sum int64
	for _, e := range m.entries[kind] {
		if e.UserID == userID {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (m *memoryRepository) InsertEntry(ctx context.Context, kind Kind, entry *models.LedgerEntry) error {
	m.entries[kind] = append(m.entries[kind], *entry)
	return nil
}

func (m *memoryRepository) HasRefundFor(ctx context.Context, kind Kind, userID, storyID uint, reason, source string) (bool, error) {
	for _, e := range m.entries[kind] {
		if e.UserID == userID && e.StoryID != nil && *e.StoryID == storyID &&
			e.Type == models.LedgerEntryRefund && e.Reason == reason && e.Source == source {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepository) HasEntryForOrder(ctx context.Context, kind Kind, orderID uint, entryType models.LedgerEntryType) (bool, error) {
	for _, e := range m.entries[kind] {
		if e.OrderID != nil && *e.OrderID == orderID && e.Type == entryType {
			return true, nil
		}
	}
	return false, nil
}

func TestReserveInsufficientBalance(t *testing.T) {
	svc := NewService(newMemoryRepository())
	ctx := context.Background()

	err := svc.Reserve(ctx, KindCredits, 1, 10, 50, "story generation", "api")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	balance, err := svc.Balance(ctx, KindCredits, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance, "failed reserve must leave no entry behind")
}

func TestReserveThenRefundConservesBalance(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()

	orderID := uint(7)
	require.NoError(t, svc.Grant(ctx, KindCredits, 1, &orderID, 100, models.LedgerEntryPurchase, "pack_250", "webhook"))

	require.NoError(t, svc.Reserve(ctx, KindCredits, 1, 10, 40, "story generation", "api"))
	balance, err := svc.Balance(ctx, KindCredits, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(60), balance)

	created, err := svc.RefundOnce(ctx, KindCredits, 1, 10, "story generation", "worker", 40)
	require.NoError(t, err)
	assert.True(t, created)

	balance, err = svc.Balance(ctx, KindCredits, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance, "refund must restore the pre-reserve balance")
}

func TestRefundOnceIsIdempotent(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.RefundOnce(ctx, KindCredits, 1, 10, "story generation", "worker", 40)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.RefundOnce(ctx, KindCredits, 1, 10, "story generation", "worker", 40)
	require.NoError(t, err)
	assert.False(t, created, "second refund with same tags must be a no-op")

	assert.Len(t, repo.entries[KindCredits], 1)
}

func TestRefundOnceAnyKindChecksBothLedgers(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()

	// Refund already issued against the credit ledger.
	created, err := svc.RefundOnce(ctx, KindCredits, 1, 10, "audio narration", "worker", 5)
	require.NoError(t, err)
	require.True(t, created)

	// A second handler trying the audio-star ledger must still see it.
	created, err = svc.RefundOnceAnyKind(ctx, KindAudioStars, 1, 10, "audio narration", "worker", 5)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, repo.entries[KindAudioStars])
}

func TestRefundsForDistinctAttemptsAreIndependent(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.RefundOnceAnyKind(ctx, KindCredits, 1, 10, "audio narration failed (attempt-1)", "stories", 50)
	require.NoError(t, err)
	require.True(t, created)

	// A second failed attempt for the same story refunds under its own tag.
	created, err = svc.RefundOnceAnyKind(ctx, KindCredits, 1, 10, "audio narration failed (attempt-2)", "stories", 50)
	require.NoError(t, err)
	assert.True(t, created, "a distinct attempt must get its own refund")

	// Replaying one attempt still deduplicates.
	created, err = svc.RefundOnceAnyKind(ctx, KindCredits, 1, 10, "audio narration failed (attempt-2)", "stories", 50)
	require.NoError(t, err)
	assert.False(t, created)

	assert.Len(t, repo.entries[KindCredits], 2)
}

func TestReserveRejectsNonPositiveAmounts(t *testing.T) {
	svc := NewService(newMemoryRepository())
	ctx := context.Background()

	assert.Error(t, svc.Reserve(ctx, KindCredits, 1, 10, 0, "story generation", "api"))
	assert.Error(t, svc.Reserve(ctx, KindCredits, 1, 10, -5, "story generation", "api"))
}

func TestKindForPayMethod(t *testing.T) {
	kind, err := KindForPayMethod(models.PayMethodCredits)
	require.NoError(t, err)
	assert.Equal(t, KindCredits, kind)

	kind, err = KindForPayMethod(models.PayMethodAudioStars)
	require.NoError(t, err)
	assert.Equal(t, KindAudioStars, kind)

	_, err = KindForPayMethod("paypal")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
