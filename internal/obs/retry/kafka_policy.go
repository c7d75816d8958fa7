package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// PublishPolicy retries event publication from the outbox relay. A row whose
// publish is exhausted stays in the outbox and is picked again later.
func PublishPolicy(log *zap.Logger) Policy {
	if log == nil {
		log = zap.NewNop()
	}
	return Policy{
		Name:     "outbox_publish",
		Attempts: 6,
		Backoff:  ExpoJitter{Base: 200 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
		OnAttempt: func(i int, err error) {
			log.Warn("event publish failed", zap.Int("attempt", i+1), zap.Error(err))
		},
		OnExhaust: func(err error) {
			if !errors.Is(err, context.Canceled) {
				log.Error("event publish gave up", zap.Error(err))
			}
		},
	}
}
