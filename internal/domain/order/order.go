// Package order models submitted orders and the lifecycle of their status
// as observed after submission. Status changes are decided by the commerce
// backend; this package only accepts or rejects what it observes.
package order

import (
	"time"

	"github.com/xenking/kart-checkout/internal/domain/money"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// nominal is the forward progression; cancelled sits outside it.
var nominal = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := s.Ordinal()
	return ok || s == StatusCancelled
}

// Ordinal returns the position of s in the progress indicator. Cancelled
// has no position.
func (s Status) Ordinal() (int, bool) {
	for i, n := range nominal {
		if n == s {
			return i, true
		}
	}
	return 0, false
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether to may directly follow from: the next
// nominal status, or cancelled from any non-terminal status.
func CanTransition(from, to Status) bool {
	if from.Terminal() || !to.Valid() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	fi, ok := from.Ordinal()
	if !ok {
		return false
	}
	ti, _ := to.Ordinal()
	return ti == fi+1
}

// Advances reports whether to lies strictly ahead of from, allowing skips.
func Advances(from, to Status) bool {
	if from.Terminal() || !to.Valid() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	fi, ok := from.Ordinal()
	if !ok {
		return false
	}
	ti, _ := to.Ordinal()
	return ti > fi
}

// TrackingApplicable reports whether tracking details mean anything yet.
func TrackingApplicable(s Status) bool {
	return s == StatusShipped || s == StatusDelivered
}

// DeliveredAtApplicable reports whether the delivery timestamp means
// anything yet.
func DeliveredAtApplicable(s Status) bool {
	return s == StatusDelivered
}

// Address is the delivery address snapshot taken when the order was placed.
type Address struct {
	ID         string `json:"id"`
	FullName   string `json:"fullName"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"isDefault,omitempty"`
}

// Item is an ordered line.
type Item struct {
	VariantID string      `json:"variantId"`
	ProductID string      `json:"productId,omitempty"`
	Name      string      `json:"name"`
	Size      string      `json:"size,omitempty"`
	Quantity  int         `json:"quantity"`
	UnitPrice money.Money `json:"unitPrice"`
}

// Tracking holds shipment details.
type Tracking struct {
	Number            string     `json:"number,omitempty"`
	Partner           string     `json:"partner,omitempty"`
	URL               string     `json:"url,omitempty"`
	ExpectedDate      *time.Time `json:"expectedDate,omitempty"`
	ActualDeliveredAt *time.Time `json:"actualDeliveredAt,omitempty"`
}

// CouponRef identifies the coupon an order was placed with.
type CouponRef struct {
	ID       string      `json:"id"`
	Code     string      `json:"code"`
	Discount money.Money `json:"discount"`
}

// Order is a submitted order. Address and items are immutable snapshots.
type Order struct {
	ID            string      `json:"id"`
	Status        Status      `json:"status"`
	Address       Address     `json:"address"`
	Items         []Item      `json:"items"`
	Coupon        *CouponRef  `json:"couponRef,omitempty"`
	TotalPrice    money.Money `json:"totalPrice"`
	PaymentMethod string      `json:"paymentMethod"`
	Tracking      *Tracking   `json:"tracking,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// View returns a copy of o without the fields its status does not make
// applicable yet.
func (o Order) View() Order {
	v := o
	if o.Tracking == nil || !TrackingApplicable(o.Status) {
		v.Tracking = nil
		return v
	}
	t := *o.Tracking
	if !DeliveredAtApplicable(o.Status) {
		t.ActualDeliveredAt = nil
	}
	v.Tracking = &t
	return v
}
