package subscriber

import "context"

type Repo interface {
	Create(ctx context.Context, s *Subscriber) error
	GetByID(ctx context.Context, id int64) (*Subscriber, error)
	List(ctx context.Context) ([]*Subscriber, error)
	ListActive(ctx context.Context) ([]*Subscriber, error)
	SetActive(ctx context.Context, id int64, active bool) error
	SoftDelete(ctx context.Context, id int64) error
}
