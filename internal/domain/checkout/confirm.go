package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Confirmer resolves online payments when the buyer returns from the
// payment page. It needs no live checkout session.
type Confirmer struct {
	deps  *deps
	group singleflight.Group
}

// Confirm takes the pending snapshot for correlationID and asks the backend
// for the payment outcome. A paid outcome clears the cart. A pending
// outcome or a failed call puts the snapshot back so the buyer can retry.
// Concurrent confirms of the same payment share one backend call.
func (c *Confirmer) Confirm(ctx context.Context, browsingSessionID, correlationID string) (*Confirmation, error) {
	key := browsingSessionID + ":" + correlationID
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.confirm(ctx, browsingSessionID, correlationID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Confirmation), nil
}

func (c *Confirmer) confirm(ctx context.Context, browsingSessionID, correlationID string) (*Confirmation, error) {
	lg := zctx.From(ctx).With(zap.String("merchant_order_id", correlationID))

	snap, err := c.deps.scratch.Take(ctx, browsingSessionID, correlationID)
	if err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, errors.Wrap(err, "take payment snapshot")
	}

	outcome, err := c.deps.orders.ConfirmPayment(ctx, snap.MerchantOrderID)
	if err != nil {
		c.restore(ctx, browsingSessionID, snap)
		c.deps.metrics.confirm(ctx, "error")
		return nil, &SubmissionError{Op: "confirm payment", Err: err}
	}
	if outcome.OrderID == "" {
		outcome.OrderID = snap.OrderID
	}
	c.deps.metrics.confirm(ctx, string(outcome.Status))

	switch outcome.Status {
	case PaymentPaid:
		if err := c.deps.carts.Clear(ctx, browsingSessionID); err != nil {
			lg.Error("Clear cart after payment", zap.Error(err))
		}
		lg.Info("Payment confirmed", zap.String("order_id", outcome.OrderID))
	case PaymentPending:
		c.restore(ctx, browsingSessionID, snap)
	default:
		lg.Warn("Payment not completed", zap.String("status", string(outcome.Status)))
	}

	return &Confirmation{Summary: snap, Outcome: *outcome}, nil
}

func (c *Confirmer) restore(ctx context.Context, browsingSessionID string, snap *Snapshot) {
	if err := c.deps.scratch.Put(ctx, browsingSessionID, snap); err != nil {
		zctx.From(ctx).Error("Restore payment snapshot",
			zap.String("merchant_order_id", snap.MerchantOrderID),
			zap.Error(err),
		)
	}
}
