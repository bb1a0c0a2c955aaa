package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/xenking/kart-checkout/internal/domain/checkout"

type metrics struct {
	submissions metric.Int64Counter
	transitions metric.Int64Counter
	confirms    metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	var (
		m   metrics
		err error
	)
	if m.submissions, err = meter.Int64Counter("checkout.submissions",
		metric.WithDescription("Checkout submissions by payment method and outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "submissions counter")
	}
	if m.transitions, err = meter.Int64Counter("checkout.step_transitions",
		metric.WithDescription("Checkout wizard step changes"),
	); err != nil {
		return nil, errors.Wrap(err, "transitions counter")
	}
	if m.confirms, err = meter.Int64Counter("checkout.payment_confirmations",
		metric.WithDescription("Payment confirmations by resulting status"),
	); err != nil {
		return nil, errors.Wrap(err, "confirms counter")
	}
	return &m, nil
}

func (m *metrics) submission(ctx context.Context, method PaymentMethod, outcome string) {
	m.submissions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", string(method)),
		attribute.String("outcome", outcome),
	))
}

func (m *metrics) transition(ctx context.Context, to Step) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("step", to.String())))
}

func (m *metrics) confirm(ctx context.Context, status string) {
	m.confirms.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
