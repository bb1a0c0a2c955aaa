package coupon

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/money"
)

var hundred = decimal.NewFromInt(100)

// Amount returns the discount this coupon grants on subtotal. It never
// exceeds subtotal. Unknown discount types yield zero; Check rejects them
// before a coupon reaches a cart.
func (c *Coupon) Amount(subtotal money.Money) money.Money {
	var amount money.Money
	switch c.DiscountType {
	case DiscountPercent:
		amount = money.FromDecimal(subtotal.Decimal().Mul(c.Value).Div(hundred))
	case DiscountFixed:
		amount = money.FromDecimal(c.Value)
	default:
		return money.Zero
	}
	return money.Min(amount.FloorZero(), subtotal)
}

// Check verifies that the coupon may be applied to a cart holding totalQty
// units at the given instant.
func (c *Coupon) Check(totalQty int, now time.Time) error {
	switch c.DiscountType {
	case DiscountPercent, DiscountFixed:
	default:
		return errors.Errorf("unsupported discount type: %q", c.DiscountType)
	}
	if c.Value.IsNegative() {
		return errors.Errorf("negative discount value: %s", c.Value)
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return ErrCouponExpired
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return ErrCouponExpired
	}
	if c.MaxUses > 0 && c.Uses >= c.MaxUses {
		return ErrCouponUsageLimitReached
	}
	if c.MinItems > 0 && totalQty < c.MinItems {
		return ErrInvalidCoupon
	}
	return nil
}
