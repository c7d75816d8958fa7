package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
	"github.com/NordCoder/Heartbeat/internal/domain/subscriber"
	"github.com/NordCoder/Heartbeat/internal/services/notifier/repo"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type sendCall struct {
	SubscriberID int64
	CheckName    string
	Kind         notification.Kind
}

// recChannel records calls; fail maps a subscriber id to the error it gets.
type recChannel struct {
	mu    sync.Mutex
	calls []sendCall
	fail  map[int64]error
	block map[int64]bool
}

func (c *recChannel) Send(ctx context.Context, sub *subscriber.Subscriber, chk *check.Check, kind notification.Kind) error {
	if c.block[sub.ID] {
		<-ctx.Done()
		return ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, sendCall{SubscriberID: sub.ID, CheckName: chk.Name, Kind: kind})
	return c.fail[sub.ID]
}

func (c *recChannel) got() []sendCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sendCall(nil), c.calls...)
}

type memSubscribers struct {
	mu    sync.Mutex
	list  []*subscriber.Subscriber
	calls int
	err   error
}

func (m *memSubscribers) ListActive(context.Context) ([]*subscriber.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	var out []*subscriber.Subscriber
	for _, s := range m.list {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

type memChecks map[int64]*check.Check

func (m memChecks) GetByID(_ context.Context, id int64) (*check.Check, error) {
	c, ok := m[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

type memOutcomes struct {
	mu   sync.Mutex
	rows []*notification.Notification
	err  error
}

func (m *memOutcomes) SentTo(_ context.Context, eventID string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var ids []int64
	for _, r := range m.rows {
		if r.EventID == eventID && r.Status == notification.StatusSent {
			ids = append(ids, r.SubscriberID)
		}
	}
	return ids, nil
}

func (m *memOutcomes) Create(_ context.Context, n *notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, n)
	return nil
}

func sub(id int64, ch subscriber.Channel, filter ...string) *subscriber.Subscriber {
	return &subscriber.Subscriber{
		ID:        id,
		Name:      "s",
		Channel:   ch,
		Address:   "ops@example.com",
		TagFilter: check.NewTags(filter...),
		Active:    true,
	}
}
