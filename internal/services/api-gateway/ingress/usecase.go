package ingress

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
	"github.com/NordCoder/Heartbeat/internal/obs"
	outboxsvc "github.com/NordCoder/Heartbeat/internal/outbox"
)

type CheckStore interface {
	GetOrCreateForUpdate(ctx context.Context, c *check.Check) (*check.Check, bool, error)
	Update(ctx context.Context, c *check.Check) error
}

type EventQueue interface {
	EnqueueEvent(ctx context.Context, ev notification.Event) error
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

var mSignals = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingress_signals_total",
	Help: "Signals received, by outcome.",
}, []string{"result"})

// Signal is the state of a check right after a ping was stored.
type Signal struct {
	CheckID      int64
	Name         string
	LastSignalAt time.Time
	DueAt        time.Time
	Created      bool
	Recovered    bool
}

type Usecase struct {
	Checks         CheckStore
	Events         EventQueue
	Tx             Transactor
	Clock          notification.Clock
	NotifyRecovery bool
	Log            *zap.Logger
}

func NewUC(checks CheckStore, events EventQueue, tx Transactor, clock notification.Clock, notifyRecovery bool, log *zap.Logger) *Usecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{
		Checks: checks, Events: events, Tx: tx, Clock: clock,
		NotifyRecovery: notifyRecovery, Log: log.With(zap.String("component", "ingress")),
	}
}

// RecordSignal stores a ping for name, creating the check on the default
// schedule when it does not exist yet. The row stays locked for the whole
// transaction so a concurrent sweep sees either the old or the new signal.
func (u *Usecase) RecordSignal(ctx context.Context, name string) (*Signal, error) {
	ctx, span := otel.Tracer("ingress.uc").Start(ctx, "ingress.record_signal")
	defer span.End()
	span.SetAttributes(attribute.String("check.name", name))

	if !check.ValidName(name) {
		mSignals.WithLabelValues("invalid").Inc()
		return nil, &check.ValidationError{Field: "name", Reason: "must be a URL-safe slug"}
	}

	var out Signal
	err := u.Tx.WithTx(ctx, func(ctx context.Context) error {
		now := u.Clock.Now()
		c, created, err := u.Checks.GetOrCreateForUpdate(ctx, check.NewDefault(name, true, now))
		if err != nil {
			return fmt.Errorf("load check %q: %w", name, err)
		}
		wasFailed := c.RecordSignal(now)
		if err := u.Checks.Update(ctx, c); err != nil {
			return fmt.Errorf("store signal for %q: %w", name, err)
		}
		if wasFailed && u.NotifyRecovery {
			ev := outboxsvc.NewCheckEvent(c.ID, c.Name, notification.KindRecovered, now)
			if err := u.Events.EnqueueEvent(ctx, ev); err != nil {
				return fmt.Errorf("enqueue recovery of %q: %w", name, err)
			}
		}
		out = Signal{
			CheckID:      c.ID,
			Name:         c.Name,
			LastSignalAt: now,
			DueAt:        c.DueAt(now),
			Created:      created,
			Recovered:    wasFailed,
		}
		return nil
	})
	if err != nil {
		mSignals.WithLabelValues("error").Inc()
		obs.SpanError(span, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	switch {
	case out.Created:
		mSignals.WithLabelValues("created").Inc()
		obs.WithTrace(ctx, u.Log).Info("check registered by first signal", zap.String("check", name), zap.Int64("check_id", out.CheckID))
	case out.Recovered:
		mSignals.WithLabelValues("recovered").Inc()
		obs.WithTrace(ctx, u.Log).Info("check recovered", zap.String("check", name), zap.Bool("notify", u.NotifyRecovery))
	default:
		mSignals.WithLabelValues("recorded").Inc()
	}
	return &out, nil
}
