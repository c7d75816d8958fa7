package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
	"github.com/NordCoder/Heartbeat/internal/domain/subscriber"
)

type handlerFixture struct {
	checks memChecks
	subs   *memSubscribers
	email  *recChannel
	hook   *recChannel
	store  *memOutcomes
	h      *Handler
}

func newHandlerFixture(subs ...*subscriber.Subscriber) *handlerFixture {
	f := &handlerFixture{
		checks: memChecks{},
		subs:   &memSubscribers{list: subs},
		email:  &recChannel{},
		hook:   &recChannel{},
		store:  &memOutcomes{},
	}
	n := New(map[subscriber.Channel]notification.Channel{
		subscriber.ChannelEmail:   f.email,
		subscriber.ChannelWebhook: f.hook,
	}, time.Second, 4, fixedClock{now}, zap.NewNop())
	f.h = &Handler{
		Checks:   f.checks,
		Registry: NewRegistry(f.subs, 0),
		Notifier: n,
		Store:    f.store,
		Log:      zap.NewNop(),
	}
	return f
}

func failedCheck(id int64, name string, tags ...string) *check.Check {
	last := now.Add(-2*time.Hour - 6*time.Minute)
	c := check.NewDefault(name, true, last)
	c.ID = id
	c.Tags = check.NewTags(tags...)
	c.Frequency = check.UnitHour
	c.FrequencyValue = 2
	c.RecordSignal(last)
	c.MarkFailed()
	return c
}

func failedEvent(c *check.Check) notification.Event {
	return notification.Event{ID: "ev-1", CheckID: c.ID, CheckName: c.Name, Kind: notification.KindFailed, At: now}
}

func TestHandle_DeliversToMatchingSubscribersOnce(t *testing.T) {
	f := newHandlerFixture(
		sub(1, subscriber.ChannelEmail, "data"),
		sub(2, subscriber.ChannelWebhook, "web"),
		sub(3, subscriber.ChannelWebhook),
	)
	c := failedCheck(10, "etl", "data")
	f.checks[c.ID] = c

	require.NoError(t, f.h.Handle(context.Background(), failedEvent(c)))

	assert.Equal(t, []sendCall{{SubscriberID: 1, CheckName: "etl", Kind: notification.KindFailed}}, f.email.got())
	assert.Equal(t, []sendCall{{SubscriberID: 3, CheckName: "etl", Kind: notification.KindFailed}}, f.hook.got())

	require.Len(t, f.store.rows, 2)
	for _, r := range f.store.rows {
		assert.Equal(t, "ev-1", r.EventID)
		assert.Equal(t, int64(10), r.CheckID)
		assert.Equal(t, notification.StatusSent, r.Status)
		assert.Equal(t, now, r.SentAt)
	}
}

func TestHandle_RecordsFailedDeliveryWithoutError(t *testing.T) {
	f := newHandlerFixture(sub(1, subscriber.ChannelEmail), sub(2, subscriber.ChannelSNS))
	f.email.fail = map[int64]error{1: errors.New("550 no such user")}
	c := failedCheck(10, "etl")
	f.checks[c.ID] = c

	require.NoError(t, f.h.Handle(context.Background(), failedEvent(c)))

	require.Len(t, f.store.rows, 2)
	byID := map[int64]*notification.Notification{}
	for _, r := range f.store.rows {
		byID[r.SubscriberID] = r
	}
	assert.Equal(t, notification.StatusFailed, byID[1].Status)
	assert.Equal(t, "550 no such user", byID[1].Error)
	assert.Equal(t, notification.StatusFailed, byID[2].Status)
	assert.Contains(t, byID[2].Error, "no delivery channel")
}

func TestHandle_Skips(t *testing.T) {
	deleted := failedCheck(1, "gone")
	at := now
	deleted.DeletedAt = &at

	inactive := failedCheck(2, "off")
	inactive.Active = false

	recovered := failedCheck(3, "back")
	recovered.RecordSignal(now.Add(time.Minute))

	refailed := failedCheck(4, "again")

	cases := map[string]notification.Event{
		"deleted":        failedEvent(deleted),
		"inactive":       failedEvent(inactive),
		"missing":        {ID: "x", CheckID: 99, Kind: notification.KindFailed, At: now},
		"stale failure":  failedEvent(recovered),
		"stale recovery": {ID: "y", CheckID: 4, Kind: notification.KindRecovered, At: now},
	}
	for name, ev := range cases {
		t.Run(name, func(t *testing.T) {
			f := newHandlerFixture(sub(1, subscriber.ChannelEmail))
			for _, c := range []*check.Check{deleted, inactive, recovered, refailed} {
				f.checks[c.ID] = c
			}
			require.NoError(t, f.h.Handle(context.Background(), ev))
			assert.Empty(t, f.email.got())
			assert.Empty(t, f.store.rows)
		})
	}
}

func TestHandle_RecoveryDelivered(t *testing.T) {
	f := newHandlerFixture(sub(1, subscriber.ChannelEmail))
	c := failedCheck(5, "etl")
	c.RecordSignal(now)
	f.checks[c.ID] = c

	ev := notification.Event{ID: "r", CheckID: 5, Kind: notification.KindRecovered, At: now}
	require.NoError(t, f.h.Handle(context.Background(), ev))
	assert.Equal(t, []sendCall{{SubscriberID: 1, CheckName: "etl", Kind: notification.KindRecovered}}, f.email.got())
}

func TestHandle_RegistryErrorReturned(t *testing.T) {
	f := newHandlerFixture()
	f.subs.err = errors.New("db down")
	c := failedCheck(1, "etl")
	f.checks[c.ID] = c

	assert.Error(t, f.h.Handle(context.Background(), failedEvent(c)))
}

func TestHandle_RedeliveredEventNotifiesOnce(t *testing.T) {
	f := newHandlerFixture(sub(1, subscriber.ChannelEmail), sub(2, subscriber.ChannelWebhook))
	c := failedCheck(10, "etl")
	f.checks[c.ID] = c
	ev := failedEvent(c)

	require.NoError(t, f.h.Handle(context.Background(), ev))
	require.NoError(t, f.h.Handle(context.Background(), ev))

	assert.Len(t, f.email.got(), 1)
	assert.Len(t, f.hook.got(), 1)
	assert.Len(t, f.store.rows, 2)
}

func TestHandle_RedeliveryRetriesOnlyFailedSubscribers(t *testing.T) {
	f := newHandlerFixture(sub(1, subscriber.ChannelEmail), sub(2, subscriber.ChannelWebhook))
	f.hook.fail = map[int64]error{2: errors.New("502 bad gateway")}
	c := failedCheck(10, "etl")
	f.checks[c.ID] = c
	ev := failedEvent(c)

	require.NoError(t, f.h.Handle(context.Background(), ev))
	f.hook.mu.Lock()
	f.hook.fail = nil
	f.hook.mu.Unlock()
	require.NoError(t, f.h.Handle(context.Background(), ev))

	assert.Len(t, f.email.got(), 1)
	assert.Len(t, f.hook.got(), 2)

	var hookStatuses []notification.Status
	for _, r := range f.store.rows {
		if r.SubscriberID == 2 {
			hookStatuses = append(hookStatuses, r.Status)
		}
	}
	assert.Equal(t, []notification.Status{notification.StatusFailed, notification.StatusSent}, hookStatuses)
}

func TestHandle_SentLookupErrorReturned(t *testing.T) {
	f := newHandlerFixture(sub(1, subscriber.ChannelEmail))
	f.store.err = errors.New("db down")
	c := failedCheck(10, "etl")
	f.checks[c.ID] = c

	assert.Error(t, f.h.Handle(context.Background(), failedEvent(c)))
	assert.Empty(t, f.email.got())
}
