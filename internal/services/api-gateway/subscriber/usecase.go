package subscriber

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/subscriber"
	pg "github.com/NordCoder/Heartbeat/internal/repository/postgres"
)

type Store interface {
	Create(ctx context.Context, s *subscriber.Subscriber) error
	GetByID(ctx context.Context, id int64) (*subscriber.Subscriber, error)
	List(ctx context.Context) ([]*subscriber.Subscriber, error)
	SetActive(ctx context.Context, id int64, active bool) error
	SoftDelete(ctx context.Context, id int64) error
}

type CreateInput struct {
	Name      string   `json:"name"`
	Channel   string   `json:"channel"`
	Address   string   `json:"address"`
	Secret    string   `json:"secret"`
	TagFilter []string `json:"tag_filter"`
	Active    *bool    `json:"active"`
}

// Usecase manages subscribers. The notifier caches the active set for its
// registry TTL, so changes reach deliveries after at most that long.
type Usecase struct {
	repo Store
	log  *zap.Logger
}

func NewUsecase(repo Store, log *zap.Logger) *Usecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{repo: repo, log: log.With(zap.String("component", "admin.subscriber"))}
}

func (u *Usecase) Create(ctx context.Context, in CreateInput) (*subscriber.Subscriber, error) {
	s := &subscriber.Subscriber{
		Name:      strings.TrimSpace(in.Name),
		Channel:   subscriber.Channel(strings.ToLower(strings.TrimSpace(in.Channel))),
		Address:   strings.TrimSpace(in.Address),
		Secret:    in.Secret,
		TagFilter: check.NewTags(in.TagFilter...),
		Active:    true,
	}
	if in.Active != nil {
		s.Active = *in.Active
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := u.repo.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create subscriber %q: %w", s.Name, err)
	}
	u.log.Info("subscriber created", zap.Int64("id", s.ID), zap.String("channel", string(s.Channel)))
	return s, nil
}

func (u *Usecase) Get(ctx context.Context, id int64) (*subscriber.Subscriber, error) {
	s, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.DeletedAt != nil {
		return nil, pg.ErrNotFound
	}
	return s, nil
}

func (u *Usecase) List(ctx context.Context) ([]*subscriber.Subscriber, error) {
	return u.repo.List(ctx)
}

func (u *Usecase) SetActive(ctx context.Context, id int64, active bool) (*subscriber.Subscriber, error) {
	if err := u.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	return u.Get(ctx, id)
}

func (u *Usecase) Delete(ctx context.Context, id int64) error {
	if err := u.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	u.log.Info("subscriber deleted", zap.Int64("id", id))
	return nil
}
