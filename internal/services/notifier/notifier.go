package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
	"github.com/NordCoder/Heartbeat/internal/domain/subscriber"
	"github.com/NordCoder/Heartbeat/internal/obs"
)

var ErrUnknownChannel = errors.New("no delivery channel")

var (
	mDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_deliveries_total",
		Help: "Deliveries by channel and status.",
	}, []string{"channel", "status"})
	mDeliveryDur = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notifier_delivery_duration_seconds",
		Help:    "Time spent in a single delivery.",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel"})
)

// Outcome is the result of one delivery; Err is nil on success.
type Outcome struct {
	Subscriber *subscriber.Subscriber
	Err        error
	At         time.Time
}

// Notifier fans an event out to subscribers. Deliveries run concurrently,
// each under its own timeout; one failing subscriber never affects another.
type Notifier struct {
	channels    map[subscriber.Channel]notification.Channel
	timeout     time.Duration
	concurrency int
	clock       notification.Clock
	log         *zap.Logger
}

func New(channels map[subscriber.Channel]notification.Channel, timeout time.Duration, concurrency int, clock notification.Clock, log *zap.Logger) *Notifier {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		channels:    channels,
		timeout:     timeout,
		concurrency: concurrency,
		clock:       clock,
		log:         log.With(zap.String("component", "notifier")),
	}
}

// Notify returns one outcome per subscriber, in the order given.
func (n *Notifier) Notify(ctx context.Context, chk *check.Check, kind notification.Kind, subs []*subscriber.Subscriber) []Outcome {
	ctx, span := otel.Tracer("notifier").Start(ctx, "notifier.notify",
		trace.WithAttributes(
			attribute.Int64("check.id", chk.ID),
			attribute.String("event.kind", string(kind)),
			attribute.Int("subscribers", len(subs)),
		))
	defer span.End()

	out := make([]Outcome, len(subs))
	var g errgroup.Group
	g.SetLimit(n.concurrency)
	for i, s := range subs {
		g.Go(func() error {
			out[i] = n.deliver(ctx, s, chk, kind)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (n *Notifier) NotifyFailure(ctx context.Context, chk *check.Check, subs []*subscriber.Subscriber) []Outcome {
	return n.Notify(ctx, chk, notification.KindFailed, subs)
}

func (n *Notifier) deliver(ctx context.Context, s *subscriber.Subscriber, chk *check.Check, kind notification.Kind) Outcome {
	ch, ok := n.channels[s.Channel]
	if !ok || ch == nil {
		mDeliveries.WithLabelValues(string(s.Channel), string(notification.StatusFailed)).Inc()
		return Outcome{Subscriber: s, Err: fmt.Errorf("%w: %q", ErrUnknownChannel, s.Channel), At: n.clock.Now()}
	}

	dctx := ctx
	if n.timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	start := time.Now()
	err := ch.Send(dctx, s, chk, kind)
	mDeliveryDur.WithLabelValues(string(s.Channel)).Observe(time.Since(start).Seconds())

	status := notification.StatusSent
	if err != nil {
		status = notification.StatusFailed
		obs.WithTrace(ctx, n.log).Warn("delivery failed",
			zap.Int64("check_id", chk.ID),
			zap.Int64("subscriber_id", s.ID),
			zap.String("channel", string(s.Channel)),
			zap.Error(err))
	}
	mDeliveries.WithLabelValues(string(s.Channel), string(status)).Inc()
	return Outcome{Subscriber: s, Err: err, At: n.clock.Now()}
}
