package checkout

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/money"
	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

// --- Mock implementations ---

type memCarts struct {
	mu      sync.Mutex
	carts   map[string]*cart.Cart
	cleared int
}

func newMemCarts() *memCarts {
	return &memCarts{carts: make(map[string]*cart.Cart)}
}

func (m *memCarts) Get(_ context.Context, sessionID string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[sessionID]
	if !ok {
		return cart.New(sessionID), nil
	}
	return c.Clone(), nil
}

func (m *memCarts) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, sessionID)
	m.cleared++
	return nil
}

func (m *memCarts) RemoveCoupon(_ context.Context, sessionID string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[sessionID]
	if !ok {
		return cart.New(sessionID), nil
	}
	c.RemoveCoupon()
	return c.Clone(), nil
}

func (m *memCarts) put(c *cart.Cart) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[c.SessionID] = c
}

func (m *memCarts) has(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.carts[sessionID]
	return ok
}

type fakeAddresses struct {
	addrs []order.Address
	err   error
}

func (f *fakeAddresses) ListAddresses(context.Context) ([]order.Address, error) {
	return f.addrs, f.err
}

type fakeOrders struct {
	createCalls   atomic.Int32
	initiateCalls atomic.Int32
	confirmCalls  atomic.Int32

	// release, when set, blocks backend calls until closed.
	release chan struct{}
	entered chan struct{}

	createErr   error
	initiate    *PaymentInitiation
	initiateErr error
	outcome     *PaymentOutcome
	confirmErr  error

	lastReq SubmissionRequest
}

func (f *fakeOrders) wait() {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
}

func (f *fakeOrders) CreateOrder(_ context.Context, req SubmissionRequest) (*CreatedOrder, error) {
	f.createCalls.Add(1)
	f.lastReq = req
	f.wait()
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &CreatedOrder{OrderID: "order-1"}, nil
}

func (f *fakeOrders) InitiatePayment(_ context.Context, req SubmissionRequest) (*PaymentInitiation, error) {
	f.initiateCalls.Add(1)
	f.lastReq = req
	f.wait()
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	return f.initiate, nil
}

func (f *fakeOrders) ConfirmPayment(_ context.Context, _ string) (*PaymentOutcome, error) {
	f.confirmCalls.Add(1)
	f.wait()
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	out := *f.outcome
	return &out, nil
}

type memScratch struct {
	mu     sync.Mutex
	data   map[string]Snapshot
	putErr error
}

func newMemScratch() *memScratch {
	return &memScratch{data: make(map[string]Snapshot)}
}

func (m *memScratch) Put(_ context.Context, browsingSessionID string, s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.data[browsingSessionID+":"+s.MerchantOrderID] = *s
	return nil
}

func (m *memScratch) Take(_ context.Context, browsingSessionID, correlationID string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := browsingSessionID + ":" + correlationID
	s, ok := m.data[key]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	delete(m.data, key)
	return &s, nil
}

func (m *memScratch) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// --- Helpers ---

type fixture struct {
	carts    *memCarts
	addrs    *fakeAddresses
	orders   *fakeOrders
	scratch  *memScratch
	registry *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		carts: newMemCarts(),
		addrs: &fakeAddresses{addrs: []order.Address{
			{ID: "a1", FullName: "Home"},
			{ID: "a2", FullName: "Work", IsDefault: true},
		}},
		orders:  &fakeOrders{},
		scratch: newMemScratch(),
	}
	r, err := NewRegistry(Options{
		Carts:          f.carts,
		Addresses:      f.addrs,
		Orders:         f.orders,
		Scratch:        f.scratch,
		MeterProvider:  noop.NewMeterProvider(),
		OnlinePayments: true,
		SessionTTL:     time.Hour,
	})
	require.NoError(t, err)
	f.registry = r
	return f
}

// seedCart stores a cart with a discounted 2x line (100 -> 80) and a
// plain 1x line at 50.
func (f *fixture) seedCart(sessionID string) {
	c := cart.New(sessionID)
	discount := money.MustParse("80")
	c.Add(pricing.Variant{
		ID: "v1", Size: "M", Price: money.MustParse("100"),
		DiscountActive: true, DiscountPrice: &discount, Stock: 3,
	}, "p1", "Jacket", 2)
	c.Add(pricing.Variant{ID: "v2", Price: money.MustParse("50"), Stock: 3}, "p2", "Scarf", 1)
	f.carts.put(c)
}

// readyForReview walks a new session through address and payment.
func (f *fixture) readyForReview(t *testing.T, sessionID string, method PaymentMethod) *Orchestrator {
	t.Helper()
	ctx := context.Background()
	o := f.registry.Begin(ctx, sessionID)
	require.NoError(t, o.SelectAddress("a1"))
	require.NoError(t, o.CompleteAddress(ctx))
	require.NoError(t, o.SelectPaymentMethod(method))
	require.NoError(t, o.CompletePayment(ctx))
	require.Equal(t, StepReview, o.Session().Step)
	return o
}
