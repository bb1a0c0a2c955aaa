package cart

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/domain/coupon"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

var (
	// ErrVariantNotFound is returned when the catalog has no such variant.
	ErrVariantNotFound = errors.New("variant not found")
	// ErrOutOfStock is returned when adding a variant with no stock.
	ErrOutOfStock = errors.New("variant out of stock")
)

// CatalogVariant is a variant as published by the catalog, with the product
// it belongs to.
type CatalogVariant struct {
	ProductID string
	Name      string
	Variant   pricing.Variant
}

// Catalog resolves variants at add-to-cart time.
type Catalog interface {
	GetVariant(ctx context.Context, variantID string) (*CatalogVariant, error)
}

// Repository persists carts per browsing session.
type Repository interface {
	// Get returns ErrNotFound when the session has no cart.
	Get(ctx context.Context, sessionID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, sessionID string) error
}

// Service applies cart mutations for browsing sessions. Mutations of the
// same session are serialised.
type Service struct {
	repo    Repository
	catalog Catalog
	coupons coupon.Validator
	locks   *keyedMutex
	now     func() time.Time
}

// NewService creates a cart Service.
func NewService(repo Repository, catalog Catalog, coupons coupon.Validator) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		coupons: coupons,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
}

// Get returns the session's cart, or an empty one if none is stored.
func (s *Service) Get(ctx context.Context, sessionID string) (*Cart, error) {
	c, err := s.repo.Get(ctx, sessionID)
	switch {
	case errors.Is(err, ErrNotFound):
		return New(sessionID), nil
	case err != nil:
		return nil, errors.Wrap(err, "load cart")
	}
	return c, nil
}

// AddItem adds qty units of a catalog variant.
func (s *Service) AddItem(ctx context.Context, sessionID, variantID string, qty int) (*Cart, error) {
	cv, err := s.catalog.GetVariant(ctx, variantID)
	if err != nil {
		return nil, errors.Wrap(err, "get variant")
	}
	if err := cv.Variant.Validate(); err != nil {
		return nil, err
	}
	if cv.Variant.Stock <= 0 {
		return nil, ErrOutOfStock
	}

	return s.mutate(ctx, sessionID, func(c *Cart) error {
		c.Add(cv.Variant, cv.ProductID, cv.Name, qty)
		return nil
	})
}

// SetQuantity replaces the quantity of a line.
func (s *Service) SetQuantity(ctx context.Context, sessionID, variantID string, qty int) (*Cart, error) {
	return s.mutate(ctx, sessionID, func(c *Cart) error {
		return c.SetQuantity(variantID, qty)
	})
}

// RemoveItem deletes a line.
func (s *Service) RemoveItem(ctx context.Context, sessionID, variantID string) (*Cart, error) {
	return s.mutate(ctx, sessionID, func(c *Cart) error {
		return c.Remove(variantID)
	})
}

// ApplyCoupon validates code against the cart and attaches the coupon.
func (s *Service) ApplyCoupon(ctx context.Context, sessionID, code string) (*Cart, error) {
	return s.mutate(ctx, sessionID, func(c *Cart) error {
		cp, err := s.coupons.Validate(ctx, code, c.TotalQuantity())
		if err != nil {
			return err
		}
		c.ApplyCoupon(cp)
		return nil
	})
}

// RemoveCoupon detaches the coupon.
func (s *Service) RemoveCoupon(ctx context.Context, sessionID string) (*Cart, error) {
	return s.mutate(ctx, sessionID, func(c *Cart) error {
		c.RemoveCoupon()
		return nil
	})
}

// Clear drops the session's cart.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return errors.Wrap(err, "delete cart")
	}
	zctx.From(ctx).Debug("Cart cleared", zap.String("session_id", sessionID))
	return nil
}

func (s *Service) mutate(ctx context.Context, sessionID string, fn func(c *Cart) error) (*Cart, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock acquires the key's mutex and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
