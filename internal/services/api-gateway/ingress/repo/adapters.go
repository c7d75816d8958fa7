package repo

import (
	"context"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
	outboxsvc "github.com/NordCoder/Heartbeat/internal/outbox"
)

type CheckRepo struct{ R check.Repo }
type Events struct{ Q outboxsvc.Enqueuer }

func (a CheckRepo) GetOrCreateForUpdate(ctx context.Context, c *check.Check) (*check.Check, bool, error) {
	return a.R.GetOrCreateForUpdate(ctx, c)
}

func (a CheckRepo) Update(ctx context.Context, c *check.Check) error {
	return a.R.Update(ctx, c)
}

func (e Events) EnqueueEvent(ctx context.Context, ev notification.Event) error {
	return outboxsvc.EnqueueCheckEvent(ctx, e.Q, ev)
}
