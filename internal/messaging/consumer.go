// Package messaging consumes order status changes pushed by the commerce
// backend over Kafka.
package messaging

import (
	"context"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Reader is the part of *kafka.Reader the Consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler processes one message. A returned error is retried with backoff
// and the message is not committed until the handler succeeds.
type Handler func(ctx context.Context, msg kafka.Message) error

// ReaderConfig configures NewReader.
type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewReader creates a consumer group reader.
func NewReader(cfg ReaderConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 1 << 20,
	})
}

// Consumer fetches, handles and commits messages one at a time.
type Consumer struct {
	reader  Reader
	topic   string
	groupID string
	tracer  trace.Tracer
	backOff func() backoff.BackOff
}

// Option configures a Consumer.
type Option func(c *Consumer)

// WithBackOff sets the retry policy for failed messages. The policy is
// created afresh for every message.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(c *Consumer) { c.backOff = f }
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// NewConsumer creates a Consumer reading from reader.
func NewConsumer(reader Reader, topic, groupID string, tp trace.TracerProvider, opts ...Option) *Consumer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	c := &Consumer{
		reader:  reader,
		topic:   topic,
		groupID: groupID,
		tracer:  tp.Tracer("github.com/xenking/kart-checkout/internal/messaging"),
		backOff: defaultBackOff,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Consume runs until ctx is done or the reader fails. A failing message is
// retried in place, so later messages wait behind it. It returns nil when
// ctx was cancelled.
func (c *Consumer) Consume(ctx context.Context, handle Handler) error {
	lg := zctx.From(ctx).With(zap.String("topic", c.topic))
	lg.Info("Consuming")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "fetch message")
		}

		if err := c.handle(ctx, lg, msg, handle); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrapf(err, "handle message at offset %d", msg.Offset)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "commit message")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, lg *zap.Logger, msg kafka.Message, handle Handler) error {
	var attempt int
	return backoff.RetryNotify(
		func() error { return c.process(ctx, msg, handle) },
		backoff.WithContext(c.backOff(), ctx),
		func(err error, delay time.Duration) {
			attempt++
			lg.Warn("Retrying message",
				zap.Int64("offset", msg.Offset),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		},
	)
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message, handle Handler) error {
	parent := otel.GetTextMapPropagator().Extract(ctx, NewMessageCarrier(&msg))

	ctx, span := c.tracer.Start(parent, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
		),
	)
	defer span.End()

	if err := handle(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
