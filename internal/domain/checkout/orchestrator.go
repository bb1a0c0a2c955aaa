// Package checkout drives the three step checkout wizard and the order
// submission that ends it.
package checkout

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/order"
)

// Orchestrator owns one checkout session of a browsing session.
type Orchestrator struct {
	deps    *deps
	onClose func()

	submitting atomic.Bool

	mu        sync.Mutex
	id        string
	browsing  string
	wizard    wizard
	addressID string
	method    PaymentMethod
	lastErr   string
	summary   *Snapshot
	createdAt time.Time
}

func newOrchestrator(d *deps, id, browsingSessionID string, onClose func()) *Orchestrator {
	return &Orchestrator{
		deps:      d,
		onClose:   onClose,
		id:        id,
		browsing:  browsingSessionID,
		wizard:    newWizard(),
		createdAt: d.now(),
	}
}

// Session returns a snapshot of the session state.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionLocked()
}

func (o *Orchestrator) sessionLocked() Session {
	s := Session{
		ID:                o.id,
		BrowsingSessionID: o.browsing,
		Step:              o.wizard.active,
		SelectedAddressID: o.addressID,
		PaymentMethod:     o.method,
		LastError:         o.lastErr,
		Summary:           o.summary,
		CreatedAt:         o.createdAt,
	}
	for i := range s.Completed {
		s.Completed[i] = o.wizard.completed(Step(i + 1))
	}
	return s
}

// GoTo moves the wizard to step. Unreachable steps leave the session
// unchanged.
func (o *Orchestrator) GoTo(ctx context.Context, step Step) Session {
	o.mu.Lock()
	defer o.mu.Unlock()

	from := o.wizard.active
	if err := o.wizard.goTo(step); err != nil {
		zctx.From(ctx).Debug("Ignoring checkout navigation",
			zap.String("checkout_id", o.id),
			zap.Stringer("from", from),
			zap.Stringer("to", step),
			zap.Error(err),
		)
	} else if from != step {
		o.deps.metrics.transition(ctx, step)
	}
	return o.sessionLocked()
}

// Addresses lists the buyer's addresses and preselects the default one when
// nothing is selected yet.
func (o *Orchestrator) Addresses(ctx context.Context) ([]order.Address, error) {
	addrs, err := o.deps.addresses.ListAddresses(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list addresses")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.addressID == "" {
		for _, a := range addrs {
			if a.IsDefault {
				o.addressID = a.ID
				break
			}
		}
	}
	return addrs, nil
}

// SelectAddress records the delivery address choice.
func (o *Orchestrator) SelectAddress(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.wizard.active == StepSubmitted {
		return ErrSessionClosed
	}
	o.addressID = id
	return nil
}

// SelectPaymentMethod records the payment method choice.
func (o *Orchestrator) SelectPaymentMethod(m PaymentMethod) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.wizard.active == StepSubmitted {
		return ErrSessionClosed
	}
	switch m {
	case "", PaymentCashOnDelivery:
	case PaymentOnline:
		if !o.deps.onlinePayments {
			return invalid("payment method not available")
		}
	default:
		return invalid("unknown payment method")
	}
	o.method = m
	return nil
}

// CompleteAddress finishes the address step and moves to payment.
func (o *Orchestrator) CompleteAddress(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.wizard.active == StepSubmitted {
		return ErrSessionClosed
	}
	if o.addressID == "" {
		return invalid("no address selected")
	}
	o.wizard.complete(StepAddress)
	o.deps.metrics.transition(ctx, o.wizard.active)
	return nil
}

// CompletePayment finishes the payment step and moves to review. The
// address step must be complete.
func (o *Orchestrator) CompletePayment(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.wizard.active == StepSubmitted {
		return ErrSessionClosed
	}
	if !o.wizard.completed(StepAddress) {
		return invalid("address step not completed")
	}
	if o.method == "" {
		return invalid("no payment method selected")
	}
	o.wizard.complete(StepPayment)
	o.deps.metrics.transition(ctx, o.wizard.active)
	return nil
}

// Submit places the order for the current cart. Cash on delivery creates
// the order and clears the cart. Online payment persists the order summary
// for the return trip and answers with the payment page to redirect to.
//
// A call made while another is outstanding fails with
// ErrSubmissionInProgress. Backend failures come back as *SubmissionError
// and leave the cart and wizard untouched.
func (o *Orchestrator) Submit(ctx context.Context) (*Result, error) {
	if !o.submitting.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInProgress
	}
	defer o.submitting.Store(false)

	o.mu.Lock()
	if o.wizard.active == StepSubmitted {
		o.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if !o.wizard.completed(StepAddress) || o.addressID == "" {
		o.mu.Unlock()
		return nil, invalid("address step not completed")
	}
	if !o.wizard.completed(StepPayment) || o.method == "" {
		o.mu.Unlock()
		return nil, invalid("payment step not completed")
	}
	req := SubmissionRequest{
		CheckoutID:    o.id,
		AddressID:     o.addressID,
		PaymentMethod: o.method,
	}
	o.mu.Unlock()

	c, err := o.deps.carts.Get(ctx, o.browsing)
	if err != nil {
		return nil, o.fail(ctx, req.PaymentMethod, &SubmissionError{Op: "load cart", Err: err})
	}
	if c.IsEmpty() {
		return nil, invalid("cart is empty")
	}
	if err := o.recheckCoupon(ctx, c); err != nil {
		return nil, err
	}

	totals := c.Totals()
	req.CouponDiscountValue = totals.CouponDiscount
	req.ProductDiscountTotal = totals.ProductDiscountTotal
	if c.Coupon != nil {
		req.CouponID = c.Coupon.ID
	}
	snap := newSnapshot(c, totals, req, o.deps.now())

	switch req.PaymentMethod {
	case PaymentCashOnDelivery:
		return o.submitCashOnDelivery(ctx, req, snap)
	case PaymentOnline:
		return o.submitOnline(ctx, req, snap)
	default:
		return nil, invalid("unknown payment method")
	}
}

// recheckCoupon detaches a coupon that expired or ran out of uses while it
// sat in the cart. The buyer sees the new totals before submitting again.
func (o *Orchestrator) recheckCoupon(ctx context.Context, c *cart.Cart) error {
	if c.Coupon == nil {
		return nil
	}
	err := c.Coupon.Check(c.TotalQuantity(), o.deps.now())
	if err == nil {
		return nil
	}
	lg := zctx.From(ctx).With(zap.String("coupon", c.Coupon.Code))
	lg.Info("Dropping coupon at submit", zap.Error(err))
	if _, rerr := o.deps.carts.RemoveCoupon(ctx, o.browsing); rerr != nil {
		lg.Error("Remove coupon", zap.Error(rerr))
	}

	verr := &ValidationError{Reason: "coupon " + c.Coupon.Code + " is no longer valid"}
	o.mu.Lock()
	o.lastErr = verr.Error()
	o.mu.Unlock()
	return verr
}

func (o *Orchestrator) submitCashOnDelivery(ctx context.Context, req SubmissionRequest, snap *Snapshot) (*Result, error) {
	created, err := o.deps.orders.CreateOrder(ctx, req)
	if err != nil {
		return nil, o.fail(ctx, req.PaymentMethod, &SubmissionError{Op: "create order", Err: err})
	}
	snap.OrderID = created.OrderID

	if err := o.deps.carts.Clear(ctx, o.browsing); err != nil {
		zctx.From(ctx).Error("Clear cart after order creation",
			zap.String("order_id", created.OrderID),
			zap.Error(err),
		)
	}

	o.succeed(ctx, req.PaymentMethod, snap)
	return &Result{OrderID: created.OrderID, Summary: snap}, nil
}

func (o *Orchestrator) submitOnline(ctx context.Context, req SubmissionRequest, snap *Snapshot) (*Result, error) {
	started, err := o.deps.orders.InitiatePayment(ctx, req)
	if err != nil {
		return nil, o.fail(ctx, req.PaymentMethod, &SubmissionError{Op: "initiate payment", Err: err})
	}
	if !started.Success || started.PaymentURL == "" || started.MerchantOrderID == "" {
		return nil, o.fail(ctx, req.PaymentMethod, &SubmissionError{Op: "initiate payment", Err: ErrPaymentRejected})
	}
	snap.MerchantOrderID = started.MerchantOrderID
	snap.OrderID = started.OrderID

	if err := o.deps.scratch.Put(ctx, o.browsing, snap); err != nil {
		return nil, o.fail(ctx, req.PaymentMethod, &SubmissionError{Op: "persist payment snapshot", Err: err})
	}

	o.succeed(ctx, req.PaymentMethod, snap)
	return &Result{
		OrderID: started.OrderID,
		Redirect: &Redirect{
			URL:           started.PaymentURL,
			CorrelationID: started.MerchantOrderID,
		},
	}, nil
}

func (o *Orchestrator) fail(ctx context.Context, method PaymentMethod, err *SubmissionError) error {
	o.mu.Lock()
	o.lastErr = err.Error()
	o.mu.Unlock()

	o.deps.metrics.submission(ctx, method, "failure")
	zctx.From(ctx).Warn("Checkout submission failed",
		zap.String("checkout_id", o.id),
		zap.String("op", err.Op),
		zap.Error(err.Err),
	)
	return err
}

func (o *Orchestrator) succeed(ctx context.Context, method PaymentMethod, snap *Snapshot) {
	o.mu.Lock()
	o.wizard.submitted()
	o.lastErr = ""
	o.summary = snap
	o.mu.Unlock()

	o.deps.metrics.submission(ctx, method, "success")
	o.deps.metrics.transition(ctx, StepSubmitted)
	zctx.From(ctx).Info("Checkout submitted",
		zap.String("checkout_id", o.id),
		zap.String("method", string(method)),
		zap.String("order_id", snap.OrderID),
		zap.Stringer("total", snap.FinalTotal),
	)
	if o.onClose != nil {
		o.onClose()
	}
}
