package order

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

var (
	// ErrInvalidTransition is returned when an observed status would skip
	// or regress from the last one seen.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnknownStatus is returned for a status outside the lifecycle.
	ErrUnknownStatus = errors.New("unknown order status")
	// ErrNotObserved is returned by a StatusRepository that has seen
	// nothing for an order.
	ErrNotObserved = errors.New("order status not observed")
)

// Observation is one status seen for an order.
type Observation struct {
	OrderID string    `json:"orderId"`
	Status  Status    `json:"status"`
	At      time.Time `json:"at"`
}

// StatusRepository keeps the status history observed per order.
type StatusRepository interface {
	// Latest returns ErrNotObserved when nothing was recorded for orderID.
	Latest(ctx context.Context, orderID string) (*Observation, error)
	Append(ctx context.Context, obs Observation) error
	// History returns observations oldest first.
	History(ctx context.Context, orderID string) ([]Observation, error)
}

// Tracker guards the observed status of orders against skips and
// regressions.
type Tracker struct {
	repo StatusRepository
	now  func() time.Time
	mu   sync.Mutex
}

// NewTracker creates a Tracker persisting through repo.
func NewTracker(repo StatusRepository) *Tracker {
	return &Tracker{repo: repo, now: time.Now}
}

// Observe records a pushed status. The first observation of an order is
// accepted as its baseline. Repeating the current status is a no-op. Any
// other change must be a valid single transition.
func (t *Tracker) Observe(ctx context.Context, obs Observation) error {
	if !obs.Status.Valid() {
		return errors.Wrapf(ErrUnknownStatus, "%q", obs.Status)
	}
	if obs.At.IsZero() {
		obs.At = t.now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	last, err := t.latest(ctx, obs.OrderID)
	if err != nil {
		return err
	}
	if last != nil {
		if last.Status == obs.Status {
			return nil
		}
		if !CanTransition(last.Status, obs.Status) {
			return errors.Wrapf(ErrInvalidTransition, "order %s: %s -> %s", obs.OrderID, last.Status, obs.Status)
		}
	}

	if err := t.repo.Append(ctx, obs); err != nil {
		return errors.Wrap(err, "append observation")
	}
	zctx.From(ctx).Info("Order status observed",
		zap.String("order_id", obs.OrderID),
		zap.String("status", string(obs.Status)),
	)
	return nil
}

// Reconcile aligns a freshly fetched order with what was observed before.
// A fetched status ahead of the last observation is recorded; one that
// would regress is replaced by the last observed status.
func (t *Tracker) Reconcile(ctx context.Context, o *Order) (*Order, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, err := t.latest(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	switch {
	case last != nil && last.Status == o.Status:
		return o, nil
	case last == nil || Advances(last.Status, o.Status):
		if !o.Status.Valid() {
			return nil, errors.Wrapf(ErrUnknownStatus, "order %s: %q", o.ID, o.Status)
		}
		if err := t.repo.Append(ctx, Observation{OrderID: o.ID, Status: o.Status, At: t.now()}); err != nil {
			return nil, errors.Wrap(err, "append observation")
		}
		return o, nil
	default:
		zctx.From(ctx).Warn("Ignoring regressed order status",
			zap.String("order_id", o.ID),
			zap.String("fetched", string(o.Status)),
			zap.String("observed", string(last.Status)),
		)
		fixed := *o
		fixed.Status = last.Status
		return &fixed, nil
	}
}

func (t *Tracker) latest(ctx context.Context, orderID string) (*Observation, error) {
	last, err := t.repo.Latest(ctx, orderID)
	switch {
	case errors.Is(err, ErrNotObserved):
		return nil, nil
	case err != nil:
		return nil, errors.Wrap(err, "latest observation")
	}
	return last, nil
}

// History returns the statuses observed for an order, oldest first.
func (t *Tracker) History(ctx context.Context, orderID string) ([]Observation, error) {
	h, err := t.repo.History(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "status history")
	}
	return h, nil
}
