package repo

import (
	"context"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
	outboxsvc "github.com/NordCoder/Heartbeat/internal/outbox"
	pg "github.com/NordCoder/Heartbeat/internal/repository/postgres"
)

var ErrNotFound = pg.ErrNotFound

type CheckRepo struct{ R check.Repo }
type Events struct{ Q outboxsvc.Enqueuer }

func (a CheckRepo) LoadActive(ctx context.Context) ([]*check.Check, error) {
	return a.R.LoadActive(ctx)
}

func (a CheckRepo) GetForUpdate(ctx context.Context, id int64) (*check.Check, error) {
	return a.R.GetForUpdate(ctx, id)
}

func (a CheckRepo) Update(ctx context.Context, c *check.Check) error {
	return a.R.Update(ctx, c)
}

func (e Events) EnqueueEvent(ctx context.Context, ev notification.Event) error {
	return outboxsvc.EnqueueCheckEvent(ctx, e.Q, ev)
}
