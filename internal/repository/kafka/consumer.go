package kafka

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Heartbeat/internal/obs"
	"github.com/NordCoder/Heartbeat/internal/obs/retry"
)

var consumed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "heartbeat",
	Name:      "kafka_messages_consumed_total",
	Help:      "Messages taken off the event topic by outcome (ok, malformed).",
}, []string{"topic", "result"})

// Handler processes one message. Returning an error wrapping ErrBadEvent
// drops the message; any other error makes the consumer retry it.
type Handler func(ctx context.Context, key, value []byte) error

type Consumer struct {
	reader *kafka.Reader
	log    *zap.Logger
	cfg    *ConsumerConfig
	policy retry.Policy
}

type ConsumerConfig struct {
	Brokers       []string
	GroupID       string
	Topic         string
	Partitions    int
	FromBeginning bool
	Logger        *zap.Logger
}

func NewConsumer(cfg *ConsumerConfig) *Consumer {
	if cfg.Logger == nil {
		cfg.Logger = zap.L()
	}

	start := kafka.LastOffset
	if cfg.FromBeginning {
		start = kafka.FirstOffset
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:               cfg.Brokers,
		GroupID:               cfg.GroupID,
		Topic:                 cfg.Topic,
		StartOffset:           start,
		WatchPartitionChanges: true,

		MinBytes:          1,
		MaxBytes:          1e6,
		MaxWait:           500 * time.Millisecond,
		SessionTimeout:    10 * time.Second,
		RebalanceTimeout:  15 * time.Second,
		HeartbeatInterval: 3 * time.Second,
	})

	c := &Consumer{reader: r, cfg: cfg}
	return c.WithLogger(cfg.Logger)
}

func (c *Consumer) WithLogger(l *zap.Logger) *Consumer {
	if l == nil {
		return c
	}
	cp := *c
	cp.log = l.With(
		zap.String("component", "kafka.consumer"),
		zap.String("topic", c.cfg.Topic),
		zap.String("group", c.cfg.GroupID),
	)
	cp.policy = retry.Policy{
		Name:      "kafka_handle",
		Attempts:  5,
		Backoff:   retry.ExpoJitter{Base: 250 * time.Millisecond, Max: 5 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool { return !errors.Is(err, ErrBadEvent) },
	}
	return &cp
}

// Consume fetches messages one at a time and commits each only after h has
// accepted it or rejected it as malformed. Delivery is at-least-once.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	log := c.log
	log.Info("consumer started")

	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("consumer stopped")
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				log.Debug("fetch EOF; retry", zap.Duration("backoff", backoff))
			} else {
				log.Warn("fetch failed; retry", zap.Error(err), zap.Duration("backoff", backoff))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond

		if err := c.process(ctx, h, msg); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// process keeps handing msg to h until it is accepted or dropped as
// malformed. Only a cancelled ctx makes it give up.
func (c *Consumer) process(ctx context.Context, h Handler, msg kafka.Message) error {
	for {
		err := retry.Do(ctx, func() error { return c.handle(ctx, h, msg) }, c.policy)
		switch {
		case err == nil:
			consumed.WithLabelValues(c.cfg.Topic, "ok").Inc()
			return nil
		case errors.Is(err, ErrBadEvent):
			consumed.WithLabelValues(c.cfg.Topic, "malformed").Inc()
			c.log.Error("dropping malformed message",
				zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		}
		c.log.Error("handler keeps failing; retrying",
			zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
	}
}

// handle continues the producer's trace carried in the message headers.
func (c *Consumer) handle(ctx context.Context, h Handler, msg kafka.Message) error {
	ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier{hs: &msg.Headers})
	ctx, span := otel.Tracer("kafka.consumer").Start(ctx, "kafka.consume "+c.cfg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(c.cfg.Topic),
			semconv.MessagingOperationReceive,
			attribute.Int("messaging.kafka.destination.partition", msg.Partition),
			attribute.Int64("messaging.kafka.message.offset", msg.Offset),
		),
	)
	defer span.End()

	err := h(ctx, msg.Key, msg.Value)
	obs.SpanError(span, err)
	return err
}

func (c *Consumer) Close() error { return c.reader.Close() }
