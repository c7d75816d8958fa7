package repo

import (
	"context"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
	"github.com/NordCoder/Heartbeat/internal/domain/subscriber"
	pg "github.com/NordCoder/Heartbeat/internal/repository/postgres"
)

var (
	ErrNotFound = pg.ErrNotFound
	ErrConflict = pg.ErrConflict
)

type CheckReader struct{ R check.Repo }
type SubscriberLister struct{ R subscriber.Repo }
type NotificationRepo struct{ R notification.Repo }

func (a CheckReader) GetByID(ctx context.Context, id int64) (*check.Check, error) {
	return a.R.GetByID(ctx, id)
}

func (a SubscriberLister) ListActive(ctx context.Context) ([]*subscriber.Subscriber, error) {
	return a.R.ListActive(ctx)
}

func (a NotificationRepo) Create(ctx context.Context, n *notification.Notification) error {
	return a.R.Create(ctx, n)
}

func (a NotificationRepo) SentTo(ctx context.Context, eventID string) ([]int64, error) {
	return a.R.SentTo(ctx, eventID)
}
