package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"
)

func BootstrapConsumer(ctx context.Context, cfg *ConsumerConfig, logger *zap.Logger) *Consumer {
	if err := EnsureTopic(ctx, cfg.Brokers, TopicSpec{
		Name:              cfg.Topic,
		NumPartitions:     cfg.Partitions,
		ReplicationFactor: 1,
		MaxWait:           5 * time.Second,
	}, logger); err != nil {
		logger.Warn("ensure topic", zap.Error(err))
	}

	cfg.Logger = logger
	return NewConsumer(cfg)
}
