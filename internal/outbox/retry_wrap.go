package outbox

import (
	"context"

	"github.com/NordCoder/Heartbeat/internal/domain/outbox"
	"github.com/NordCoder/Heartbeat/internal/obs/retry"
)

// WrapKindHandler retries h under p. Retries reuse the same payload.
func WrapKindHandler(h outbox.KindHandler, p retry.Policy) outbox.KindHandler {
	return func(ctx context.Context, data []byte) error {
		return retry.Do(ctx, func() error { return h(ctx, data) }, p)
	}
}
