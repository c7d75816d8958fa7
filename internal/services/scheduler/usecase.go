package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
	"github.com/NordCoder/Heartbeat/internal/lock"
	"github.com/NordCoder/Heartbeat/internal/obs"
	outboxsvc "github.com/NordCoder/Heartbeat/internal/outbox"
	"github.com/NordCoder/Heartbeat/internal/services/scheduler/repo"
)

type CheckStore interface {
	LoadActive(ctx context.Context) ([]*check.Check, error)
	GetForUpdate(ctx context.Context, id int64) (*check.Check, error)
	Update(ctx context.Context, c *check.Check) error
}

type EventQueue interface {
	EnqueueEvent(ctx context.Context, ev notification.Event) error
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Result summarizes one sweep. Overdue counts checks found past their
// deadline in the snapshot, Failed only the fresh false->true transitions.
type Result struct {
	Scanned int
	Overdue int
	Failed  int
	Skipped int
	Errors  int
}

type Usecase struct {
	Checks  CheckStore
	Events  EventQueue
	Tx      Transactor
	Locks   *lock.Keyed
	Clock   notification.Clock
	Workers int
	Log     *zap.Logger
}

func NewUC(checks CheckStore, events EventQueue, tx Transactor, locks *lock.Keyed, clock notification.Clock, workers int, log *zap.Logger) *Usecase {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{
		Checks: checks, Events: events, Tx: tx, Locks: locks, Clock: clock,
		Workers: workers, Log: log.With(zap.String("component", "scheduler.sweep")),
	}
}

type counters struct {
	failed, skipped, errs atomic.Int64
}

// Sweep marks every overdue active check as failed and queues exactly one
// failure event per transition. A failing check never stops the others; only
// a failed load aborts the cycle.
func (u *Usecase) Sweep(ctx context.Context) (Result, error) {
	tr := otel.Tracer("scheduler.uc")
	ctx, span := tr.Start(ctx, "scheduler.sweep")
	defer span.End()

	now := u.Clock.Now()
	list, err := u.Checks.LoadActive(ctx)
	if err != nil {
		obs.SpanError(span, err)
		return Result{}, fmt.Errorf("load active: %w", err)
	}

	res := Result{Scanned: len(list)}
	var cnt counters

	var g errgroup.Group
	g.SetLimit(u.Workers)
	for _, c := range list {
		if ctx.Err() != nil {
			break
		}
		if !c.Active || c.Deleted() || !c.IsOverdue(now) {
			continue
		}
		res.Overdue++
		if c.Failed {
			continue
		}
		id := c.ID
		g.Go(func() error {
			u.evaluate(ctx, id, &cnt)
			return nil
		})
	}
	_ = g.Wait()

	res.Failed = int(cnt.failed.Load())
	res.Skipped = int(cnt.skipped.Load())
	res.Errors = int(cnt.errs.Load())

	span.SetAttributes(
		attribute.Int("sweep.scanned", res.Scanned),
		attribute.Int("sweep.overdue", res.Overdue),
		attribute.Int("sweep.failed", res.Failed),
		attribute.Int("sweep.skipped", res.Skipped),
		attribute.Int("sweep.errors", res.Errors),
	)
	return res, nil
}

var errBusy = errors.New("check is being evaluated")

func (u *Usecase) evaluate(ctx context.Context, id int64, cnt *counters) {
	ctx, span := otel.Tracer("scheduler.uc").Start(ctx, "scheduler.evaluate",
		trace.WithAttributes(attribute.Int64("check.id", id)))
	defer span.End()

	var transitioned bool
	ok, err := u.Locks.Do(lock.CheckKey(id), func() error {
		return u.Tx.WithTx(ctx, func(ctx context.Context) error {
			var err error
			transitioned, err = u.markFailed(ctx, id)
			return err
		})
	})
	if !ok {
		err = errBusy
	}

	log := obs.WithTrace(ctx, u.Log).With(zap.Int64("check_id", id))
	switch {
	case errors.Is(err, errBusy):
		cnt.skipped.Add(1)
		log.Debug("check locked, skipped")
	case err != nil:
		cnt.errs.Add(1)
		obs.SpanError(span, err)
		log.Error("evaluate check", zap.Error(err))
	case transitioned:
		cnt.failed.Add(1)
		log.Info("check failed")
	default:
		cnt.skipped.Add(1)
	}
}

// markFailed re-reads the locked row and judges it against the current clock,
// since the snapshot may be stale by now.
func (u *Usecase) markFailed(ctx context.Context, id int64) (bool, error) {
	c, err := u.Checks.GetForUpdate(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get for update: %w", err)
	}

	now := u.Clock.Now()
	if !c.Active || c.Deleted() || !c.IsOverdue(now) {
		return false, nil
	}
	if !c.MarkFailed() {
		return false, nil
	}
	if err := u.Checks.Update(ctx, c); err != nil {
		return false, fmt.Errorf("update check: %w", err)
	}
	ev := outboxsvc.NewCheckEvent(c.ID, c.Name, notification.KindFailed, now)
	if err := u.Events.EnqueueEvent(ctx, ev); err != nil {
		return false, fmt.Errorf("enqueue failure event: %w", err)
	}
	return true, nil
}
