package notification

import (
	"context"
	"time"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/subscriber"
)

type Kind string

const (
	KindFailed    Kind = "failed"
	KindRecovered Kind = "recovered"
)

func (k Kind) Valid() bool { return k == KindFailed || k == KindRecovered }

// Event is a recorded state transition of a check, carried through the
// outbox and the event topic to the notifier.
type Event struct {
	ID        string    `json:"id"`
	CheckID   int64     `json:"check_id"`
	CheckName string    `json:"check_name"`
	Kind      Kind      `json:"kind"`
	At        time.Time `json:"at"`
}

type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Notification is the delivery outcome for one subscriber.
type Notification struct {
	ID           int64              `json:"id"`
	EventID      string             `json:"event_id"`
	CheckID      int64              `json:"check_id"`
	SubscriberID int64              `json:"subscriber_id"`
	Channel      subscriber.Channel `json:"channel"`
	Kind         Kind               `json:"kind"`
	Status       Status             `json:"status"`
	Error        string             `json:"error,omitempty"`
	SentAt       time.Time          `json:"sent_at"`
}

// Channel delivers one event to one subscriber.
type Channel interface {
	Send(ctx context.Context, sub *subscriber.Subscriber, chk *check.Check, kind Kind) error
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
