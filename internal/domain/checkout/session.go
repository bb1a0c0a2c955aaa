package checkout

import (
	"time"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/money"
	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

// PaymentMethod selects the submission path.
type PaymentMethod string

const (
	// PaymentCashOnDelivery creates the order synchronously.
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	// PaymentOnline hands the buyer to an external payment page.
	PaymentOnline PaymentMethod = "online"
)

// Session is a read-only view of a checkout session.
type Session struct {
	ID                string        `json:"id"`
	BrowsingSessionID string        `json:"-"`
	Step              Step          `json:"step"`
	Completed         [3]bool       `json:"completed"`
	SelectedAddressID string        `json:"selectedAddressId,omitempty"`
	PaymentMethod     PaymentMethod `json:"paymentMethod,omitempty"`
	LastError         string        `json:"lastError,omitempty"`
	Summary           *Snapshot     `json:"summary,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
}

// StepCompleted reports whether step s of the wizard is complete.
func (s Session) StepCompleted(step Step) bool {
	if step < StepAddress || step > StepReview {
		return false
	}
	return s.Completed[step-1]
}

// SubmissionRequest is the payload sent to create an order or start a
// payment.
type SubmissionRequest struct {
	CheckoutID           string        `json:"-"`
	AddressID            string        `json:"addressId"`
	CouponID             string        `json:"couponId,omitempty"`
	CouponDiscountValue  money.Money   `json:"couponDiscountValue"`
	ProductDiscountTotal money.Money   `json:"productDiscountTotal"`
	PaymentMethod        PaymentMethod `json:"paymentMethod"`
}

// CreatedOrder is the reply to a cash on delivery order creation.
type CreatedOrder struct {
	OrderID string `json:"orderId"`
}

// PaymentInitiation is the reply to starting an online payment.
type PaymentInitiation struct {
	Success         bool   `json:"success"`
	PaymentURL      string `json:"paymentUrl"`
	MerchantOrderID string `json:"merchantOrderId"`
	OrderID         string `json:"orderId"`
}

// PaymentStatus is the provider's verdict on an online payment.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentFailed  PaymentStatus = "failed"
)

// PaymentOutcome is the reply to a payment status check.
type PaymentOutcome struct {
	OrderID string        `json:"orderId"`
	Status  PaymentStatus `json:"status"`
	Message string        `json:"message,omitempty"`
}

// SnapshotItem is an ordered line frozen at submission.
type SnapshotItem struct {
	VariantID string      `json:"variantId"`
	ProductID string      `json:"productId"`
	Name      string      `json:"name"`
	Size      string      `json:"size,omitempty"`
	Quantity  int         `json:"quantity"`
	UnitPrice money.Money `json:"unitPrice"`
	LineTotal money.Money `json:"lineTotal"`
}

// Snapshot is the immutable order summary captured before the cart is
// cleared. For online payments it is also what crosses the redirect.
type Snapshot struct {
	Items           []SnapshotItem   `json:"items"`
	Subtotal        money.Money      `json:"subtotal"`
	Discount        money.Money      `json:"discount"`
	ProductDiscount money.Money      `json:"productDiscount"`
	FinalTotal      money.Money      `json:"finalTotal"`
	Coupon          *order.CouponRef `json:"coupon,omitempty"`
	MerchantOrderID string           `json:"merchantOrderId,omitempty"`
	OrderID         string           `json:"orderId,omitempty"`
	PaymentMethod   PaymentMethod    `json:"paymentMethod"`
	AddressID       string           `json:"addressId"`
	CreatedAt       time.Time        `json:"createdAt"`
}

func newSnapshot(c *cart.Cart, totals pricing.Totals, req SubmissionRequest, now time.Time) *Snapshot {
	items := make([]SnapshotItem, len(c.Lines))
	for i, l := range c.Lines {
		items[i] = SnapshotItem{
			VariantID: l.Variant.ID,
			ProductID: l.ProductID,
			Name:      l.Name,
			Size:      l.Variant.Size,
			Quantity:  l.Quantity,
			UnitPrice: pricing.EffectiveUnitPrice(l.Variant),
			LineTotal: pricing.LineTotal(pricing.Line{Variant: l.Variant, Quantity: l.Quantity}),
		}
	}
	s := &Snapshot{
		Items:           items,
		Subtotal:        totals.Subtotal,
		Discount:        totals.CouponDiscount,
		ProductDiscount: totals.ProductDiscountTotal,
		FinalTotal:      totals.FinalTotal,
		PaymentMethod:   req.PaymentMethod,
		AddressID:       req.AddressID,
		CreatedAt:       now,
	}
	if c.Coupon != nil {
		s.Coupon = &order.CouponRef{ID: c.Coupon.ID, Code: c.Coupon.Code, Discount: totals.CouponDiscount}
	}
	return s
}

// Result is the outcome of a successful Submit. Exactly one of Summary
// (cash on delivery) and Redirect (online) is set.
type Result struct {
	OrderID  string    `json:"orderId,omitempty"`
	Summary  *Snapshot `json:"summary,omitempty"`
	Redirect *Redirect `json:"redirect,omitempty"`
}

// Redirect is where the buyer must be sent to pay.
type Redirect struct {
	URL           string `json:"url"`
	CorrelationID string `json:"correlationId"`
}

// Confirmation is the outcome of returning from the payment page.
type Confirmation struct {
	Summary *Snapshot      `json:"summary"`
	Outcome PaymentOutcome `json:"outcome"`
}
