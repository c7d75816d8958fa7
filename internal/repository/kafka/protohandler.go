package kafka

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// ProtoHandler decodes the message value into a fresh M before calling handle.
// Undecodable payloads are reported wrapped in ErrBadEvent.
func ProtoHandler[M proto.Message](ctor func() M, handle func(context.Context, []byte, M) error) Handler {
	return func(ctx context.Context, key, value []byte) error {
		msg := ctor()
		if err := proto.Unmarshal(value, msg); err != nil {
			return fmt.Errorf("%w: %v", ErrBadEvent, err)
		}
		return handle(ctx, key, msg)
	}
}
