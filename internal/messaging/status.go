package messaging

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/domain/order"
)

// StatusObserver records pushed order statuses.
type StatusObserver interface {
	Observe(ctx context.Context, obs order.Observation) error
}

// StatusHandler decodes {orderId, status, at} messages and feeds them to
// the observer. Malformed messages and rejected transitions are logged and
// skipped so they are committed. Storage failures are returned so the
// consumer retries the message.
func StatusHandler(observer StatusObserver) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		lg := zctx.From(ctx).With(zap.Int64("offset", msg.Offset))

		var obs order.Observation
		if err := json.Unmarshal(msg.Value, &obs); err != nil {
			lg.Warn("Skipping malformed status message", zap.Error(err))
			return nil
		}
		if obs.OrderID == "" {
			obs.OrderID = string(msg.Key)
		}
		if obs.OrderID == "" {
			lg.Warn("Skipping status message without order id")
			return nil
		}

		err := observer.Observe(ctx, obs)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, order.ErrInvalidTransition), errors.Is(err, order.ErrUnknownStatus):
			lg.Warn("Rejected order status",
				zap.String("order_id", obs.OrderID),
				zap.String("status", string(obs.Status)),
				zap.Error(err),
			)
			return nil
		default:
			return errors.Wrap(err, "observe status")
		}
	}
}
