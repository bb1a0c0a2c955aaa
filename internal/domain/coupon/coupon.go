package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercent takes a percentage of the cart subtotal.
	DiscountPercent DiscountType = "percent"
	// DiscountFixed takes a fixed amount, capped at the cart subtotal.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is not found or
	// the cart does not satisfy the coupon's minimum item requirement.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when a coupon is outside its valid time window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
)

// Coupon is a cart-level markdown applied once, after product discounts,
// against the cart subtotal.
type Coupon struct {
	ID           string          `json:"id"`
	Code         string          `json:"code"`
	DiscountType DiscountType    `json:"discount_type"`
	Value        decimal.Decimal `json:"discount_value"`
	MinItems     int             `json:"min_items,omitempty"`
	Description  string          `json:"description,omitempty"`
	ValidFrom    *time.Time      `json:"valid_from,omitempty"`
	ValidUntil   *time.Time      `json:"valid_until,omitempty"`
	MaxUses      int             `json:"max_uses,omitempty"`
	Uses         int             `json:"uses,omitempty"`
}

// Repository provides lookup of coupons by code.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
}

// Clone returns a copy of c that shares no memory with it. It is nil safe.
func (c *Coupon) Clone() *Coupon {
	if c == nil {
		return nil
	}
	cp := *c
	if c.ValidFrom != nil {
		t := *c.ValidFrom
		cp.ValidFrom = &t
	}
	if c.ValidUntil != nil {
		t := *c.ValidUntil
		cp.ValidUntil = &t
	}
	return &cp
}
