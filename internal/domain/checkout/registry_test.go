package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BeginReplaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.registry.Begin(ctx, "s1")
	require.NoError(t, first.SelectAddress("a1"))
	second := f.registry.Begin(ctx, "s1")

	got, ok := f.registry.Get("s1")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.NotEqual(t, first.Session().ID, second.Session().ID)
	assert.Empty(t, got.Session().SelectedAddressID)
}

func TestRegistry_StaleSessionDoesNotDiscardNewer(t *testing.T) {
	f := newFixture(t)
	f.seedCart("s1")
	old := f.readyForReview(t, "s1", PaymentCashOnDelivery)
	current := f.registry.Begin(context.Background(), "s1")

	_, err := old.Submit(context.Background())
	require.NoError(t, err)

	got, ok := f.registry.Get("s1")
	require.True(t, ok)
	assert.Same(t, current, got)
}

func TestRegistry_Discard(t *testing.T) {
	f := newFixture(t)
	f.registry.Begin(context.Background(), "s1")

	f.registry.Discard("s1")
	_, ok := f.registry.Get("s1")
	assert.False(t, ok)
}

func TestRegistry_Expiry(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	f.registry.deps.now = func() time.Time { return now }

	f.registry.Begin(context.Background(), "s1")
	f.registry.Begin(context.Background(), "s2")

	now = now.Add(30 * time.Minute)
	_, ok := f.registry.Get("s1")
	require.True(t, ok, "touching refreshes the session")

	now = now.Add(45 * time.Minute)
	assert.Equal(t, 1, f.registry.Sweep())
	_, ok = f.registry.Get("s1")
	assert.True(t, ok)
	_, ok = f.registry.Get("s2")
	assert.False(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok = f.registry.Get("s1")
	assert.False(t, ok)
}

func TestNewRegistry_DefaultMeterProvider(t *testing.T) {
	r, err := NewRegistry(Options{})
	require.NoError(t, err)

	orch := r.Begin(context.Background(), "s1")
	assert.Equal(t, StepAddress, orch.GoTo(context.Background(), StepAddress).Step)
}
