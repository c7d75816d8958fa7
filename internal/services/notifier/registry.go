package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/subscriber"
)

type SubscriberLister interface {
	ListActive(ctx context.Context) ([]*subscriber.Subscriber, error)
}

const activeKey = "subscribers:active"

// Registry answers which subscribers care about a set of tags. The active
// subscriber list is cached for ttl; a zero ttl reads through every time.
type Registry struct {
	src   SubscriberLister
	cache *cache.Cache
}

func NewRegistry(src SubscriberLister, ttl time.Duration) *Registry {
	r := &Registry{src: src}
	if ttl > 0 {
		r.cache = cache.New(ttl, 2*ttl)
	}
	return r
}

func (r *Registry) FindSubscribersFor(ctx context.Context, tags check.Tags) ([]*subscriber.Subscriber, error) {
	all, err := r.active(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*subscriber.Subscriber, 0, len(all))
	for _, s := range all {
		if s.Matches(tags) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *Registry) Invalidate() {
	if r.cache != nil {
		r.cache.Delete(activeKey)
	}
}

func (r *Registry) active(ctx context.Context) ([]*subscriber.Subscriber, error) {
	if r.cache != nil {
		if v, ok := r.cache.Get(activeKey); ok {
			return v.([]*subscriber.Subscriber), nil
		}
	}
	list, err := r.src.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active subscribers: %w", err)
	}
	if r.cache != nil {
		r.cache.Set(activeKey, list, cache.DefaultExpiration)
	}
	return list, nil
}
