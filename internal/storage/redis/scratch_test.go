package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/money"
	"github.com/xenking/kart-checkout/internal/domain/order"
)

func testSnapshot() *checkout.Snapshot {
	return &checkout.Snapshot{
		Items: []checkout.SnapshotItem{{
			VariantID: "v1", ProductID: "p1", Name: "Jacket", Quantity: 2,
			UnitPrice: money.MustParse("80"), LineTotal: money.MustParse("160"),
		}},
		Subtotal:        money.MustParse("160"),
		Discount:        money.MustParse("16"),
		ProductDiscount: money.MustParse("40"),
		FinalTotal:      money.MustParse("144"),
		Coupon:          &order.CouponRef{ID: "c1", Code: "TEN", Discount: money.MustParse("16")},
		MerchantOrderID: "m-1",
		OrderID:         "order-1",
		PaymentMethod:   checkout.PaymentOnline,
		AddressID:       "a1",
		CreatedAt:       time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestScratchStore_SurvivesClientResetAndReadsOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	want := testSnapshot()

	before := NewScratchStore(newClient(t, mr), time.Hour)
	require.NoError(t, before.Put(ctx, "sess-1", want))

	// A fresh client and store stand in for the process on the other side
	// of the redirect.
	after := NewScratchStore(newClient(t, mr), time.Hour)
	got, err := after.Take(ctx, "sess-1", "m-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = after.Take(ctx, "sess-1", "m-1")
	require.ErrorIs(t, err, checkout.ErrSnapshotNotFound)
}

func TestScratchStore_Key(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewScratchStore(client, 30*time.Minute)

	require.NoError(t, store.Put(context.Background(), "sess-1", testSnapshot()))
	assert.True(t, mr.Exists("checkout:scratch:sess-1:m-1"))
	assert.Equal(t, 30*time.Minute, mr.TTL("checkout:scratch:sess-1:m-1"))
}

func TestScratchStore_ScopedToBrowsingSession(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewScratchStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "sess-1", testSnapshot()))
	_, err := store.Take(ctx, "sess-2", "m-1")
	require.ErrorIs(t, err, checkout.ErrSnapshotNotFound)
}

func TestScratchStore_Expires(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewScratchStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "sess-1", testSnapshot()))
	mr.FastForward(2 * time.Hour)

	_, err := store.Take(ctx, "sess-1", "m-1")
	require.ErrorIs(t, err, checkout.ErrSnapshotNotFound)
}

func TestScratchStore_RequiresCorrelationID(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewScratchStore(client, time.Hour)

	snap := testSnapshot()
	snap.MerchantOrderID = ""
	require.Error(t, store.Put(context.Background(), "sess-1", snap))
}
