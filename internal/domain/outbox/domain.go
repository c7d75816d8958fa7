package outbox

import (
	"context"
	"time"
)

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
)

// Kind selects the relay handler for a row. Values are stored, never renumber.
type Kind int

const (
	KindCheckEvent Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindCheckEvent:
		return "check_event"
	}
	return "unknown"
}

// Message is one outbox row. The trace fields carry the W3C context of the
// transaction that wrote it.
type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Tracestate     string
	Traceparent    string
	Baggage        string
}

type Repository interface {
	// Enqueue is a no-op for a key that already exists.
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error
	// PickBatch claims up to batch rows that are new or whose claim is older
	// than inProgressTTL, oldest first.
	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)
	MarkSuccess(ctx context.Context, keys []string) error
}

type KindHandler func(ctx context.Context, data []byte) error

type GlobalHandler func(kind Kind) (KindHandler, error)
