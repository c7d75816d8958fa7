package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	config "github.com/NordCoder/Heartbeat/internal/config/scheduler"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
	"github.com/NordCoder/Heartbeat/internal/lock"
	"github.com/NordCoder/Heartbeat/internal/obs"
	"github.com/NordCoder/Heartbeat/internal/obs/retry"
	"github.com/NordCoder/Heartbeat/internal/outbox"
	kafkaRepo "github.com/NordCoder/Heartbeat/internal/repository/kafka"
	pg "github.com/NordCoder/Heartbeat/internal/repository/postgres"
	"github.com/NordCoder/Heartbeat/internal/services/scheduler"
	"github.com/NordCoder/Heartbeat/internal/services/scheduler/repo"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to scheduler.yaml")
	flag.Parse()

	// init
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting scheduler",
		zap.Any("kafka_out", cfg.Kafka),
		zap.Duration("tick", cfg.Sched.Tick),
		zap.String("metrics_addr", cfg.Sched.MetricsAddr),
	)

	// otel
	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.NewDB(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// kafka
	if err := kafkaRepo.EnsureTopic(ctx, cfg.Kafka.Brokers, kafkaRepo.TopicSpec{
		Name:          cfg.Kafka.Topic,
		NumPartitions: cfg.Kafka.Partitions,
	}, l); err != nil {
		l.Warn("ensure topic", zap.Error(err))
	}
	kafkaProd := kafkaRepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic).WithLogger(l)
	defer func() { _ = kafkaProd.Close() }()
	publisher := kafkaRepo.NewCheckEventsKafka(kafkaProd)

	// run metrics server
	ms := obs.BootstrapMetricsServer(cfg.Sched.MetricsAddr, db.Ping, l)

	// wiring
	outboxRepo := pg.NewOutboxRepo(db)
	uc := scheduler.NewUC(
		repo.CheckRepo{R: pg.NewCheckRepo(db)},
		repo.Events{Q: outboxRepo},
		pg.NewTransactor(db, l),
		lock.New(lock.Config{MaxRetry: 1, MaxDelay: 1e6, BaseDelay: 1e5, Factor: 2, Jitter: 0.1}),
		notification.SystemClock{},
		cfg.Sched.Workers,
		l,
	)
	runner := scheduler.New(l, uc, &cfg.Sched)
	relay := outbox.NewOutboxRunner(l, outboxRepo,
		outbox.MakeGlobalOutboxHandler(publisher, retry.PublishPolicy(l)),
		cfg.Outbox.Workers, cfg.Outbox.BatchSize, cfg.Outbox.WaitTime, cfg.Outbox.InProgressTTL)

	// run
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error { return relay.Run(gctx) })

	l.Info("scheduler started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		l.Error("runner error", zap.Error(err))
	}

	// graceful shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
