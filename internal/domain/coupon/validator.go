package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Validator resolves a coupon code against the current cart size.
type Validator interface {
	Validate(ctx context.Context, code string, totalQty int) (*Coupon, error)
}

// RepoValidator implements Validator by looking up coupons from a Repository
// and checking them with Coupon.Check.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the coupon for the given code and checks temporal
// validity, usage limits and the minimum item count.
func (v *RepoValidator) Validate(ctx context.Context, code string, totalQty int) (*Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidCoupon
	}

	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if err := c.Check(totalQty, v.now()); err != nil {
		return nil, err
	}
	return c, nil
}
