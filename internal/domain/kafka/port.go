package kafka

import (
	"context"

	"github.com/NordCoder/Heartbeat/internal/domain/notification"
)

type CheckEvents interface {
	PublishCheckEvent(ctx context.Context, ev notification.Event) error
}
