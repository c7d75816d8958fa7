package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
	"github.com/NordCoder/Heartbeat/internal/domain/subscriber"
	"github.com/NordCoder/Heartbeat/internal/obs"
	"github.com/NordCoder/Heartbeat/internal/services/notifier/repo"
)

type CheckReader interface {
	GetByID(ctx context.Context, id int64) (*check.Check, error)
}

type SubscriberFinder interface {
	FindSubscribersFor(ctx context.Context, tags check.Tags) ([]*subscriber.Subscriber, error)
}

type Deliverer interface {
	Notify(ctx context.Context, chk *check.Check, kind notification.Kind, subs []*subscriber.Subscriber) []Outcome
}

// OutcomeStore keeps one row per delivery attempt. SentTo lets a redelivered
// event skip subscribers that were already notified.
type OutcomeStore interface {
	Create(ctx context.Context, n *notification.Notification) error
	SentTo(ctx context.Context, eventID string) ([]int64, error)
}

var (
	mConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_events_consumed_total",
		Help: "Check events consumed.",
	}, []string{"kind"})
	mSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_events_skipped_total",
		Help: "Check events dropped without delivery.",
	}, []string{"reason"})
)

type Handler struct {
	Checks   CheckReader
	Registry SubscriberFinder
	Notifier Deliverer
	Store    OutcomeStore
	Log      *zap.Logger
}

// Handle delivers one check event. Delivery failures are recorded, not
// returned; an error means the event could not be processed at all.
func (h *Handler) Handle(ctx context.Context, ev notification.Event) error {
	mConsumed.WithLabelValues(string(ev.Kind)).Inc()
	log := obs.WithTrace(ctx, h.Log).With(
		zap.String("event_id", ev.ID),
		zap.Int64("check_id", ev.CheckID),
		zap.String("kind", string(ev.Kind)),
	)

	chk, err := h.Checks.GetByID(ctx, ev.CheckID)
	if errors.Is(err, repo.ErrNotFound) {
		mSkipped.WithLabelValues("missing").Inc()
		log.Warn("event for unknown check")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get check: %w", err)
	}
	if reason := skipReason(chk, ev); reason != "" {
		mSkipped.WithLabelValues(reason).Inc()
		log.Info("event skipped", zap.String("reason", reason))
		return nil
	}

	subs, err := h.Registry.FindSubscribersFor(ctx, chk.Tags)
	if err != nil {
		return fmt.Errorf("find subscribers: %w", err)
	}
	if len(subs) == 0 {
		log.Info("no subscribers for check")
		return nil
	}
	subs, err = h.pending(ctx, ev.ID, subs)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		mSkipped.WithLabelValues("duplicate").Inc()
		log.Info("event already delivered")
		return nil
	}

	for _, o := range h.Notifier.Notify(ctx, chk, ev.Kind, subs) {
		rec := &notification.Notification{
			EventID:      ev.ID,
			CheckID:      chk.ID,
			SubscriberID: o.Subscriber.ID,
			Channel:      o.Subscriber.Channel,
			Kind:         ev.Kind,
			Status:       notification.StatusSent,
			SentAt:       o.At,
		}
		if o.Err != nil {
			rec.Status = notification.StatusFailed
			rec.Error = o.Err.Error()
		}
		if err := h.Store.Create(ctx, rec); errors.Is(err, repo.ErrConflict) {
			log.Warn("delivery already recorded", zap.Int64("subscriber_id", o.Subscriber.ID))
		} else if err != nil {
			log.Error("record delivery outcome", zap.Int64("subscriber_id", o.Subscriber.ID), zap.Error(err))
		}
	}
	log.Info("event delivered", zap.Int("subscribers", len(subs)))
	return nil
}

// pending drops subscribers that already have a successful delivery for
// eventID. Subscribers whose earlier attempt failed are tried again.
func (h *Handler) pending(ctx context.Context, eventID string, subs []*subscriber.Subscriber) ([]*subscriber.Subscriber, error) {
	sent, err := h.Store.SentTo(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load sent notifications: %w", err)
	}
	if len(sent) == 0 {
		return subs, nil
	}
	done := make(map[int64]struct{}, len(sent))
	for _, id := range sent {
		done[id] = struct{}{}
	}
	out := make([]*subscriber.Subscriber, 0, len(subs))
	for _, s := range subs {
		if _, ok := done[s.ID]; !ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// skipReason names why ev should not be delivered, or returns "".
// A failure is stale once the check signaled after it; a recovery is stale
// once the check failed again.
func skipReason(chk *check.Check, ev notification.Event) string {
	switch {
	case chk.Deleted():
		return "deleted"
	case !chk.Active:
		return "inactive"
	case ev.Kind == notification.KindFailed && !chk.Failed &&
		chk.LastSignalAt != nil && chk.LastSignalAt.After(ev.At):
		return "stale"
	case ev.Kind == notification.KindRecovered && chk.Failed:
		return "stale"
	}
	return ""
}
