package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NordCoder/Heartbeat/internal/domain/notification"
)

func TestCheckEventHandler_WireRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 4, 5, 123456789, time.UTC)
	in := notification.Event{
		ID:        "0b7f8a1c-2c2e-4c36-9a57-7a5b2f0e1a11",
		CheckID:   9007199254740993, // above float64 integer precision
		CheckName: "nightly-backup",
		Kind:      notification.KindFailed,
		At:        at,
	}

	msg, err := EncodeCheckEvent(in)
	require.NoError(t, err)
	raw, err := proto.Marshal(msg)
	require.NoError(t, err)

	var got notification.Event
	h := CheckEventHandler(func(_ context.Context, ev notification.Event) error {
		got = ev
		return nil
	})
	require.NoError(t, h(context.Background(), KeyFromInt64(in.CheckID), raw))

	assert.Equal(t, in.ID, got.ID)
	assert.Equal(t, in.CheckID, got.CheckID)
	assert.Equal(t, in.CheckName, got.CheckName)
	assert.Equal(t, in.Kind, got.Kind)
	assert.True(t, at.Equal(got.At))
}

func TestEncodeCheckEvent_RejectsUnknownKind(t *testing.T) {
	_, err := EncodeCheckEvent(notification.Event{ID: "x", Kind: "paused"})
	assert.ErrorIs(t, err, ErrBadEvent)
}

func TestDecodeCheckEvent_Malformed(t *testing.T) {
	cases := map[string]map[string]any{
		"missing id":   {"check_id": "1", "kind": "failed", "at": "2024-01-01T00:00:00Z"},
		"bad check id": {"id": "e", "check_id": "one", "kind": "failed", "at": "2024-01-01T00:00:00Z"},
		"bad kind":     {"id": "e", "check_id": "1", "kind": "late", "at": "2024-01-01T00:00:00Z"},
		"bad time":     {"id": "e", "check_id": "1", "kind": "recovered", "at": "yesterday"},
	}
	for name, fields := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := structpb.NewStruct(fields)
			require.NoError(t, err)
			_, err = DecodeCheckEvent(s)
			assert.ErrorIs(t, err, ErrBadEvent)
		})
	}
}

func TestCheckEventHandler_GarbagePayload(t *testing.T) {
	h := CheckEventHandler(func(context.Context, notification.Event) error {
		t.Fatal("must not be called")
		return nil
	})
	assert.ErrorIs(t, h(context.Background(), nil, []byte{0xff, 0xff, 0xff}), ErrBadEvent)
}
