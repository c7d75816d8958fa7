package outbox

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NordCoder/Heartbeat/internal/domain/outbox"
	"github.com/NordCoder/Heartbeat/internal/obs"
)

var (
	mRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "heartbeat",
		Name:      "outbox_relayed_total",
		Help:      "Outbox rows handed to their handler, by kind and result.",
	}, []string{"kind", "result"})
	mPickErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "heartbeat",
		Name:      "outbox_pick_errors_total",
		Help:      "Failed attempts to claim or settle a batch.",
	})
	mTickDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "heartbeat",
		Name:      "outbox_tick_duration_seconds",
		Help:      "Time to claim, relay and settle one batch.",
		Buckets:   prometheus.DefBuckets,
	})
	mLag = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "heartbeat",
		Name:      "outbox_lag_seconds",
		Help:      "Age of the oldest row in the last claimed batch.",
	})
)

// Runner relays outbox rows to their handlers. Rows whose handler fails stay
// IN_PROGRESS and are picked up again once inProgressTTL has passed.
type Runner struct {
	log      *zap.Logger
	repo     outbox.Repository
	dispatch outbox.GlobalHandler

	workers       int
	batchSize     int
	waitTime      time.Duration
	inProgressTTL time.Duration
}

func NewOutboxRunner(
	log *zap.Logger,
	repo outbox.Repository,
	dispatch outbox.GlobalHandler,
	workers int,
	batchSize int,
	waitTime time.Duration,
	inProgressTTL time.Duration,
) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		log:           log.With(zap.String("component", "outbox.runner")),
		repo:          repo,
		dispatch:      dispatch,
		workers:       max(workers, 1),
		batchSize:     max(batchSize, 1),
		waitTime:      waitTime,
		inProgressTTL: inProgressTTL,
	}
}

// Run blocks until ctx is done and every worker has returned.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("outbox relay started",
		zap.Int("workers", r.workers), zap.Int("batch", r.batchSize), zap.Duration("wait", r.waitTime))

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < r.workers; i++ {
		g.Go(func() error { return r.worker(ctx) })
	}
	return g.Wait()
}

func (r *Runner) worker(ctx context.Context) error {
	ticker := time.NewTicker(r.waitTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// drain quickly while batches come back full
			for r.tick(ctx) == r.batchSize && ctx.Err() == nil {
			}
		}
	}
}

// tick relays one batch and reports how many rows it claimed.
func (r *Runner) tick(ctx context.Context) int {
	start := time.Now()
	defer func() { mTickDur.Observe(time.Since(start).Seconds()) }()

	tr := otel.Tracer("outbox.runner")
	ctx, span := tr.Start(ctx, "outbox.tick", trace.WithAttributes(attribute.Int("batch.limit", r.batchSize)))
	defer span.End()

	messages, err := r.repo.PickBatch(ctx, r.batchSize, r.inProgressTTL)
	if err != nil {
		obs.SpanError(span, err)
		mPickErrors.Inc()
		obs.WithTrace(ctx, r.log).Error("outbox pick", zap.Error(err))
		return 0
	}
	if len(messages) == 0 {
		mLag.Set(0)
		return 0
	}
	mLag.Set(time.Since(messages[0].CreatedAt).Seconds())
	span.SetAttributes(attribute.Int("batch.size", len(messages)))

	okKeys := make([]string, 0, len(messages))
	for _, m := range messages {
		if r.relay(ctx, tr, m) {
			okKeys = append(okKeys, m.IdempotencyKey)
		}
	}
	if len(okKeys) == 0 {
		return len(messages)
	}
	if err := r.repo.MarkSuccess(ctx, okKeys); err != nil {
		obs.SpanError(span, err)
		mPickErrors.Inc()
		obs.WithTrace(ctx, r.log).Error("outbox mark success", zap.Int("rows", len(okKeys)), zap.Error(err))
	}
	return len(messages)
}

// relay hands m to its handler under the trace that enqueued it.
func (r *Runner) relay(ctx context.Context, tr trace.Tracer, m outbox.Message) bool {
	parent := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{
		"traceparent": m.Traceparent,
		"tracestate":  m.Tracestate,
		"baggage":     m.Baggage,
	})
	ctx, span := tr.Start(parent, "outbox.dispatch",
		trace.WithLinks(trace.LinkFromContext(ctx)),
		trace.WithAttributes(
			attribute.String("outbox.key", m.IdempotencyKey),
			attribute.String("outbox.kind", m.Kind.String()),
		),
	)
	defer span.End()
	log := obs.WithTrace(ctx, r.log).With(zap.String("key", m.IdempotencyKey), zap.Stringer("kind", m.Kind))

	handler, err := r.dispatch(m.Kind)
	if err == nil {
		err = handler(ctx, m.Data)
	}
	if err != nil {
		obs.SpanError(span, err)
		mRelayed.WithLabelValues(m.Kind.String(), "error").Inc()
		log.Error("outbox relay failed", zap.Error(err))
		return false
	}
	mRelayed.WithLabelValues(m.Kind.String(), "ok").Inc()
	return true
}
