package main

import (
	"context"

	"go.uber.org/zap"

	config "github.com/NordCoder/Heartbeat/internal/config/api-gateway"
	"github.com/NordCoder/Heartbeat/internal/obs"
)

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
}

func initOTel(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	closer, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		return nil, err
	}
	return closer.Shutdown, nil
}
