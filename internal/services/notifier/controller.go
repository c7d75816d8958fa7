package notifier

import (
	"context"

	"go.uber.org/zap"

	kafkax "github.com/NordCoder/Heartbeat/internal/repository/kafka"
)

type Controller struct {
	Log *zap.Logger
	Sub *kafkax.Consumer
	UC  *Handler
}

func (c *Controller) Run(ctx context.Context) error {
	c.Log.Info("consuming check events")
	return c.Sub.Consume(ctx, kafkax.CheckEventHandler(c.UC.Handle))
}
