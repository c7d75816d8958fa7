package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NordCoder/Heartbeat/internal/domain/kafka"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
)

type CheckEventsKafka struct {
	p *Producer
}

func NewCheckEventsKafka(p *Producer) *CheckEventsKafka { return &CheckEventsKafka{p: p} }

var _ kafka.CheckEvents = (*CheckEventsKafka)(nil)

// PublishCheckEvent keys the message by check id so every transition of one
// check lands on the same partition in order.
func (e *CheckEventsKafka) PublishCheckEvent(ctx context.Context, ev notification.Event) error {
	msg, err := EncodeCheckEvent(ev)
	if err != nil {
		return err
	}
	return e.p.PublishProto(ctx, KeyFromInt64(ev.CheckID), msg)
}

var ErrBadEvent = errors.New("malformed check event")

// EncodeCheckEvent renders the event as a protobuf Struct. Ids travel as
// decimal strings and the timestamp as RFC 3339 so no precision is lost.
func EncodeCheckEvent(ev notification.Event) (*structpb.Struct, error) {
	if !ev.Kind.Valid() {
		return nil, fmt.Errorf("%w: kind %q", ErrBadEvent, ev.Kind)
	}
	return structpb.NewStruct(map[string]any{
		"id":         ev.ID,
		"check_id":   strconv.FormatInt(ev.CheckID, 10),
		"check_name": ev.CheckName,
		"kind":       string(ev.Kind),
		"at":         ev.At.UTC().Format(time.RFC3339Nano),
	})
}

func DecodeCheckEvent(s *structpb.Struct) (notification.Event, error) {
	f := s.GetFields()
	str := func(k string) string { return f[k].GetStringValue() }

	var ev notification.Event
	ev.ID = str("id")
	if ev.ID == "" {
		return ev, fmt.Errorf("%w: missing id", ErrBadEvent)
	}
	id, err := strconv.ParseInt(str("check_id"), 10, 64)
	if err != nil {
		return ev, fmt.Errorf("%w: check_id: %v", ErrBadEvent, err)
	}
	ev.CheckID = id
	ev.CheckName = str("check_name")
	ev.Kind = notification.Kind(str("kind"))
	if !ev.Kind.Valid() {
		return ev, fmt.Errorf("%w: kind %q", ErrBadEvent, ev.Kind)
	}
	at, err := time.Parse(time.RFC3339Nano, str("at"))
	if err != nil {
		return ev, fmt.Errorf("%w: at: %v", ErrBadEvent, err)
	}
	ev.At = at
	return ev, nil
}

// CheckEventHandler adapts a typed event callback to a consumer Handler.
func CheckEventHandler(handle func(context.Context, notification.Event) error) Handler {
	return ProtoHandler(func() *structpb.Struct { return &structpb.Struct{} },
		func(ctx context.Context, _ []byte, s *structpb.Struct) error {
			ev, err := DecodeCheckEvent(s)
			if err != nil {
				return err
			}
			return handle(ctx, ev)
		})
}
