package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"

	"github.com/NordCoder/Heartbeat/internal/domain/kafka"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
	"github.com/NordCoder/Heartbeat/internal/domain/outbox"
	"github.com/NordCoder/Heartbeat/internal/obs"
	"github.com/NordCoder/Heartbeat/internal/obs/retry"
)

var (
	outboxHandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_handler_latency_seconds",
		Help:    "Latency of outbox handlers (publish, http, etc.)",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	outboxHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_handler_errors_total",
		Help: "Errors in outbox handlers (after retries).",
	}, []string{"kind"})
)

// Enqueuer is the write side of the outbox used by the state-changing paths.
type Enqueuer interface {
	Enqueue(ctx context.Context, key string, kind outbox.Kind, data []byte) error
}

// NewCheckEvent stamps a fresh event id.
func NewCheckEvent(checkID int64, checkName string, kind notification.Kind, at time.Time) notification.Event {
	return notification.Event{
		ID:        uuid.NewString(),
		CheckID:   checkID,
		CheckName: checkName,
		Kind:      kind,
		At:        at.UTC(),
	}
}

// EnqueueCheckEvent stores ev under its id. Call it with the transaction
// context of the state change it describes.
func EnqueueCheckEvent(ctx context.Context, q Enqueuer, ev notification.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal check event: %w", err)
	}
	return q.Enqueue(ctx, ev.ID, outbox.KindCheckEvent, data)
}

func instrument(kind string, h outbox.KindHandler, pol retry.Policy) outbox.KindHandler {
	tr := otel.Tracer("outbox.handler")
	if pol.Name == "" {
		pol.Name = "outbox_" + kind
	}
	wrapped := WrapKindHandler(h, pol)
	return func(ctx context.Context, data []byte) error {
		ctx, span := tr.Start(ctx, "outbox.handle")
		defer span.End()

		start := time.Now()
		err := wrapped(ctx, data)
		outboxHandlerLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			obs.SpanError(span, err)
			outboxHandlerErrors.WithLabelValues(kind).Inc()
		}
		return err
	}
}

func MakeGlobalOutboxHandler(pub kafka.CheckEvents, pol retry.Policy) outbox.GlobalHandler {
	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		switch kind {
		case outbox.KindCheckEvent:
			base := func(ctx context.Context, data []byte) error {
				var ev notification.Event
				if err := json.Unmarshal(data, &ev); err != nil {
					return retry.Permanent(fmt.Errorf("unmarshal check event: %w", err))
				}
				return pub.PublishCheckEvent(ctx, ev)
			}
			return instrument("check_event", base, pol), nil
		default:
			return nil, fmt.Errorf("unsupported outbox kind: %d", kind)
		}
	}
}
