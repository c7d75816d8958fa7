package notification

import "context"

type Repo interface {
	Create(ctx context.Context, n *Notification) error
	ListByCheck(ctx context.Context, checkID int64, limit int) ([]*Notification, error)
	// SentTo returns the subscribers that already have a successful delivery
	// for the event.
	SentTo(ctx context.Context, eventID string) ([]int64, error)
}
