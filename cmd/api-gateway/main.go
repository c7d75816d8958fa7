package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	config "github.com/NordCoder/Heartbeat/internal/config/api-gateway"
	"github.com/NordCoder/Heartbeat/internal/obs/retry"
	"github.com/NordCoder/Heartbeat/internal/outbox"
	kafkaRepo "github.com/NordCoder/Heartbeat/internal/repository/kafka"
	pg "github.com/NordCoder/Heartbeat/internal/repository/postgres"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to api-gateway.yaml")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting api-gateway",
		zap.String("env", cfg.App.Env),
		zap.String("ver", cfg.App.Version),
		zap.Bool("notify_recovery", cfg.Ingress.NotifyRecovery),
		zap.String("org", cfg.Access.Org),
	)

	otelShutdown, err := initOTel(rootCtx, cfg)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := initDB(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// recovery events leave through the outbox like the scheduler's
	if err := kafkaRepo.EnsureTopic(rootCtx, cfg.Kafka.Brokers, kafkaRepo.TopicSpec{
		Name:          cfg.Kafka.Topic,
		NumPartitions: cfg.Kafka.Partitions,
	}, logger); err != nil {
		logger.Warn("ensure topic", zap.Error(err))
	}
	prod := kafkaRepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic).WithLogger(logger)
	defer func() { _ = prod.Close() }()

	outboxRepo := pg.NewOutboxRepo(db)
	relay := outbox.NewOutboxRunner(logger, outboxRepo,
		outbox.MakeGlobalOutboxHandler(kafkaRepo.NewCheckEventsKafka(prod), retry.PublishPolicy(logger)),
		cfg.Outbox.Workers, cfg.Outbox.BatchSize, cfg.Outbox.WaitTime, cfg.Outbox.InProgressTTL)
	relayErrCh := make(chan error, 1)
	go func() { relayErrCh <- relay.Run(rootCtx) }()

	grpcServer, hs, grpcLn, err := buildGRPCServer(cfg)
	if err != nil {
		logger.Fatal("build grpc", zap.Error(err))
	}
	grpcErrCh := make(chan error, 1)
	go func() { grpcErrCh <- serveGRPC(grpcServer, grpcLn, cfg, logger) }()

	httpSrv, err := buildHTTPServer(cfg, logger, db, outboxRepo, hs)
	if err != nil {
		logger.Fatal("build http", zap.Error(err))
	}
	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, cfg, logger) }()

	var runErr error
	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal", zap.String("reason", "context canceled"))
	case runErr = <-grpcErrCh:
		if runErr != nil {
			logger.Error("grpc serve", zap.Error(runErr))
		}
	case runErr = <-httpErrCh:
		if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(runErr))
		}
	case runErr = <-relayErrCh:
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			logger.Error("outbox relay", zap.Error(runErr))
		}
	}
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	_ = httpSrv.Shutdown(shCtx)
	gracefulStopGRPC(grpcServer, hs)
	logger.Info("bye")
}
