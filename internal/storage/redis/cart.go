package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/kart-checkout/internal/domain/cart"
)

// CartRepository implements cart.Repository. Every save refreshes the TTL,
// so an idle cart expires.
type CartRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ cart.Repository = (*CartRepository)(nil)

// NewCartRepository creates a CartRepository.
func NewCartRepository(client redis.UniversalClient, ttl time.Duration) *CartRepository {
	return &CartRepository{client: client, ttl: ttl}
}

func (r *CartRepository) Get(ctx context.Context, sessionID string) (*cart.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}

	var c cart.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "unmarshal cart")
	}
	return &c, nil
}

func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal cart")
	}
	if err := r.client.Set(ctx, cartKey(c.SessionID), data, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func (r *CartRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}
