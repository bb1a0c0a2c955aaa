// Package cart holds the single-owner shopping cart of a browsing session.
package cart

import (
	"slices"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-checkout/internal/domain/coupon"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

var (
	// ErrLineNotFound is returned when a cart has no line for the variant.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrNotFound is returned by a Repository when a session has no cart.
	ErrNotFound = errors.New("cart not found")
)

// Line is a cart line: the variant snapshot captured when it was first
// added, plus the product it belongs to for display.
type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Variant   pricing.Variant `json:"variant"`
	Quantity  int             `json:"quantity"`
}

// Cart is the cart of one browsing session.
type Cart struct {
	SessionID string         `json:"session_id"`
	Lines     []Line         `json:"lines"`
	Coupon    *coupon.Coupon `json:"coupon,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// New returns an empty cart for the session.
func New(sessionID string) *Cart {
	return &Cart{SessionID: sessionID, Lines: []Line{}}
}

func (c *Cart) index(variantID string) int {
	return slices.IndexFunc(c.Lines, func(l Line) bool { return l.Variant.ID == variantID })
}

// Add puts qty units of the variant in the cart. A variant already present
// keeps its original snapshot and only grows in quantity. Quantities are
// clamped to the allowed range.
func (c *Cart) Add(v pricing.Variant, productID, name string, qty int) {
	if i := c.index(v.ID); i >= 0 {
		c.Lines[i].Quantity = pricing.ClampQuantity(c.Lines[i].Quantity + qty)
		return
	}
	c.Lines = append(c.Lines, Line{
		ProductID: productID,
		Name:      name,
		Variant:   v,
		Quantity:  pricing.ClampQuantity(qty),
	})
}

// SetQuantity replaces the quantity of a line, clamped to the allowed range.
func (c *Cart) SetQuantity(variantID string, qty int) error {
	i := c.index(variantID)
	if i < 0 {
		return ErrLineNotFound
	}
	c.Lines[i].Quantity = pricing.ClampQuantity(qty)
	c.dropIneligibleCoupon()
	return nil
}

// Remove deletes the line for the variant.
func (c *Cart) Remove(variantID string) error {
	i := c.index(variantID)
	if i < 0 {
		return ErrLineNotFound
	}
	c.Lines = slices.Delete(c.Lines, i, i+1)
	c.dropIneligibleCoupon()
	return nil
}

// ApplyCoupon attaches a validated coupon, replacing any previous one.
func (c *Cart) ApplyCoupon(cp *coupon.Coupon) { c.Coupon = cp }

// RemoveCoupon detaches the coupon.
func (c *Cart) RemoveCoupon() { c.Coupon = nil }

// Clear empties the cart and detaches the coupon.
func (c *Cart) Clear() {
	c.Lines = []Line{}
	c.Coupon = nil
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool { return len(c.Lines) == 0 }

// TotalQuantity sums the quantity of every line.
func (c *Cart) TotalQuantity() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// PricingLines returns the lines in the shape the pricing engine consumes.
func (c *Cart) PricingLines() []pricing.Line {
	out := make([]pricing.Line, len(c.Lines))
	for i, l := range c.Lines {
		out[i] = pricing.Line{Variant: l.Variant, Quantity: l.Quantity}
	}
	return out
}

// Totals computes the price breakdown of the cart.
func (c *Cart) Totals() pricing.Totals {
	return pricing.Compute(c.PricingLines(), c.Coupon)
}

// Clone returns a deep copy of the cart. The copy shares no memory with c.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Lines = slices.Clone(c.Lines)
	for i := range cp.Lines {
		v := &cp.Lines[i].Variant
		v.DiscountPrice = clonePtr(v.DiscountPrice)
		v.DiscountPercentage = clonePtr(v.DiscountPercentage)
	}
	cp.Coupon = c.Coupon.Clone()
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// A coupon whose minimum item count is no longer met is detached.
func (c *Cart) dropIneligibleCoupon() {
	if c.Coupon != nil && c.Coupon.MinItems > 0 && c.TotalQuantity() < c.Coupon.MinItems {
		c.Coupon = nil
	}
}
