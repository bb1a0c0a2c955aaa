// Package pricing computes line, cart and coupon totals from a cart
// snapshot. Every function is pure; amounts are exact integer cents and only
// percentages are rounded.
package pricing

import (
	"github.com/go-faster/errors"

	"github.com/xenking/kart-checkout/internal/domain/coupon"
	"github.com/xenking/kart-checkout/internal/domain/money"
)

// Quantity bounds for a single cart line.
const (
	MinQuantity = 1
	MaxQuantity = 10
)

var (
	// ErrInvalidQuantity is returned for a line quantity outside [MinQuantity, MaxQuantity].
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 10")
	// ErrDiscountAbovePrice is returned for an active discount priced above the list price.
	ErrDiscountAbovePrice = errors.New("discount price exceeds price")
)

// Variant is a purchasable size of a product as seen at add-to-cart time.
type Variant struct {
	ID                 string       `json:"id"`
	Size               string       `json:"size,omitempty"`
	Price              money.Money  `json:"price"`
	DiscountActive     bool         `json:"is_discount_active"`
	DiscountPrice      *money.Money `json:"discount_price,omitempty"`
	DiscountPercentage *int         `json:"discount_percentage,omitempty"`
	Stock              int          `json:"stock"`
}

// Validate checks the variant's price invariant.
func (v Variant) Validate() error {
	if v.hasDiscount() && *v.DiscountPrice > v.Price {
		return errors.Wrapf(ErrDiscountAbovePrice, "variant %s", v.ID)
	}
	return nil
}

func (v Variant) hasDiscount() bool {
	return v.DiscountActive && v.DiscountPrice != nil
}

// Line is a variant snapshot with the quantity ordered.
type Line struct {
	Variant  Variant `json:"variant"`
	Quantity int     `json:"quantity"`
}

// Totals is the derived price breakdown of a cart. Subtotal already reflects
// discounted unit prices; ProductDiscountTotal is informational.
type Totals struct {
	Subtotal             money.Money `json:"subtotal"`
	ProductDiscountTotal money.Money `json:"product_discount_total"`
	CouponDiscount       money.Money `json:"coupon_discount"`
	FinalTotal           money.Money `json:"final_total"`
}

// EffectiveUnitPrice returns the discount price when a discount is active
// and set, the list price otherwise.
func EffectiveUnitPrice(v Variant) money.Money {
	if v.hasDiscount() {
		return *v.DiscountPrice
	}
	return v.Price
}

// DiscountPercentage returns the percentage off the list price for display.
// A stored percentage wins over the derived one. It reports false when no
// discount is active or the list price is zero.
func DiscountPercentage(v Variant) (int, bool) {
	if !v.DiscountActive {
		return 0, false
	}
	if v.DiscountPercentage != nil {
		return *v.DiscountPercentage, true
	}
	if v.DiscountPrice == nil || v.Price <= 0 {
		return 0, false
	}
	off := int64(v.Price - *v.DiscountPrice)
	price := int64(v.Price)
	// round half-up of off*100/price in integers
	return int((off*200 + price) / (2 * price)), true
}

// LineTotal returns effective unit price times quantity.
func LineTotal(l Line) money.Money {
	return EffectiveUnitPrice(l.Variant).Mul(l.Quantity)
}

// Subtotal sums LineTotal over lines.
func Subtotal(lines []Line) money.Money {
	var sum money.Money
	for _, l := range lines {
		sum = sum.Add(LineTotal(l))
	}
	return sum
}

// ProductDiscountTotal sums (price - discount price) * quantity over lines
// with an active discount.
func ProductDiscountTotal(lines []Line) money.Money {
	var sum money.Money
	for _, l := range lines {
		if !l.Variant.hasDiscount() {
			continue
		}
		sum = sum.Add(l.Variant.Price.Sub(*l.Variant.DiscountPrice).Mul(l.Quantity))
	}
	return sum
}

// CouponDiscount returns the discount c grants on subtotal, zero for a nil
// coupon. It never exceeds subtotal.
func CouponDiscount(subtotal money.Money, c *coupon.Coupon) money.Money {
	if c == nil {
		return money.Zero
	}
	return c.Amount(subtotal)
}

// FinalTotal returns max(0, subtotal - couponDiscount).
func FinalTotal(subtotal, couponDiscount money.Money) money.Money {
	return subtotal.Sub(couponDiscount).FloorZero()
}

// Compute derives the full Totals for lines and an optional coupon.
func Compute(lines []Line, c *coupon.Coupon) Totals {
	subtotal := Subtotal(lines)
	discount := CouponDiscount(subtotal, c)
	return Totals{
		Subtotal:             subtotal,
		ProductDiscountTotal: ProductDiscountTotal(lines),
		CouponDiscount:       discount,
		FinalTotal:           FinalTotal(subtotal, discount),
	}
}

// ClampQuantity forces q into [MinQuantity, MaxQuantity].
func ClampQuantity(q int) int {
	return max(MinQuantity, min(q, MaxQuantity))
}

// ValidateQuantity rejects q outside [MinQuantity, MaxQuantity].
func ValidateQuantity(q int) error {
	if q < MinQuantity || q > MaxQuantity {
		return ErrInvalidQuantity
	}
	return nil
}
