package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/kart-checkout/internal/domain/checkout"
)

// ScratchStore implements checkout.ScratchStore. Snapshots are written
// before the payment redirect and removed by the read that consumes them.
type ScratchStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ checkout.ScratchStore = (*ScratchStore)(nil)

// NewScratchStore creates a ScratchStore whose entries live for ttl.
func NewScratchStore(client redis.UniversalClient, ttl time.Duration) *ScratchStore {
	return &ScratchStore{client: client, ttl: ttl}
}

// Put stores s under the browsing session and its merchant order id.
func (s *ScratchStore) Put(ctx context.Context, browsingSessionID string, snap *checkout.Snapshot) error {
	if snap.MerchantOrderID == "" {
		return errors.New("snapshot without merchant order id")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	if err := s.client.Set(ctx, scratchKey(browsingSessionID, snap.MerchantOrderID), data, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Take atomically reads and deletes the snapshot.
func (s *ScratchStore) Take(ctx context.Context, browsingSessionID, correlationID string) (*checkout.Snapshot, error) {
	data, err := s.client.GetDel(ctx, scratchKey(browsingSessionID, correlationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, checkout.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis getdel")
	}

	var snap checkout.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, "unmarshal snapshot")
	}
	return &snap, nil
}

func scratchKey(browsingSessionID, correlationID string) string {
	return fmt.Sprintf("checkout:scratch:%s:%s", browsingSessionID, correlationID)
}
