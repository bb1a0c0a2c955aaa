package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-checkout/internal/domain/coupon"
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	db DB
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(db DB) *CouponRepository {
	return &CouponRepository{db: db}
}

const findCouponByCode = `
SELECT id::text, code, discount_type, value, min_items, description,
       valid_from, valid_until, max_uses, uses
FROM coupons
WHERE UPPER(code) = UPPER($1) AND active`

// FindByCode looks up an active coupon by its code, ignoring case.
// Returns coupon.ErrInvalidCoupon when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	var (
		c        coupon.Coupon
		typ      string
		minItems int32
		maxUses  int32
		uses     int32
	)
	err := r.db.QueryRow(ctx, findCouponByCode, code).Scan(
		&c.ID, &c.Code, &typ, &c.Value, &minItems, &c.Description,
		&c.ValidFrom, &c.ValidUntil, &maxUses, &uses,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, errors.Wrapf(err, "find coupon by code %q", code)
	}

	c.DiscountType = coupon.DiscountType(typ)
	c.MinItems = int(minItems)
	c.MaxUses = int(maxUses)
	c.Uses = int(uses)
	return &c, nil
}

const upsertCoupon = `
INSERT INTO coupons (code, discount_type, value, min_items, description, valid_from, valid_until, max_uses)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT ((UPPER(code))) DO UPDATE SET
    discount_type = EXCLUDED.discount_type,
    value         = EXCLUDED.value,
    min_items     = EXCLUDED.min_items,
    description   = EXCLUDED.description,
    valid_from    = EXCLUDED.valid_from,
    valid_until   = EXCLUDED.valid_until,
    max_uses      = EXCLUDED.max_uses,
    active        = TRUE`

// Upsert creates or replaces the coupon with the same code.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	if _, err := r.db.Exec(ctx, upsertCoupon,
		c.Code, string(c.DiscountType), c.Value, int32(c.MinItems), c.Description,
		c.ValidFrom, c.ValidUntil, int32(c.MaxUses),
	); err != nil {
		return errors.Wrapf(err, "upsert coupon %q", c.Code)
	}
	return nil
}

const insertCodes = `
INSERT INTO coupons (code, discount_type, value, description, valid_until)
SELECT code, $2, $3, $4, $5 FROM unnest($1::text[]) AS code
ON CONFLICT ((UPPER(code))) DO NOTHING`

// InsertCodes bulk-inserts codes sharing one discount rule. Codes that
// already exist are left as they are. It returns the number inserted.
func (r *CouponRepository) InsertCodes(
	ctx context.Context,
	codes []string,
	typ coupon.DiscountType,
	value decimal.Decimal,
	description string,
	validUntil *time.Time,
) (int64, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, insertCodes, codes, string(typ), value, description, validUntil)
	if err != nil {
		return 0, errors.Wrap(err, "insert coupon codes")
	}
	return tag.RowsAffected(), nil
}
