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

	config "github.com/NordCoder/Heartbeat/internal/config/notifier"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
	"github.com/NordCoder/Heartbeat/internal/domain/subscriber"
	"github.com/NordCoder/Heartbeat/internal/obs"
	"github.com/NordCoder/Heartbeat/internal/repository/kafka"
	pg "github.com/NordCoder/Heartbeat/internal/repository/postgres"
	"github.com/NordCoder/Heartbeat/internal/services/notifier"
	"github.com/NordCoder/Heartbeat/internal/services/notifier/repo"
)

func channels(cfg *config.Config, l *zap.Logger) map[subscriber.Channel]notification.Channel {
	clock := notification.SystemClock{}
	out := map[subscriber.Channel]notification.Channel{
		subscriber.ChannelEmail:   notifier.NewMailer(cfg.SMTP).WithLogger(l),
		subscriber.ChannelWebhook: notifier.NewWebhook(cfg.Webhook.Timeout, cfg.Webhook.Attempts, clock, l),
	}
	api, err := notifier.NewSNSClient(cfg.SNS)
	if err != nil {
		l.Warn("sns channel disabled", zap.Error(err))
		return out
	}
	out[subscriber.ChannelSNS] = notifier.NewSNS(api)
	return out
}

func wiring(db *pg.DB, cfg *config.Config, cons *kafka.Consumer, l *zap.Logger) *notifier.Controller {
	uc := &notifier.Handler{
		Checks:   repo.CheckReader{R: pg.NewCheckRepo(db)},
		Registry: notifier.NewRegistry(repo.SubscriberLister{R: pg.NewSubscriberRepo(db)}, cfg.Registry.CacheTTL),
		Notifier: notifier.New(channels(cfg, l), cfg.Delivery.Timeout, cfg.Delivery.Concurrency, notification.SystemClock{}, l),
		Store:    repo.NotificationRepo{R: pg.NewNotificationRepo(db)},
		Log:      l,
	}
	return &notifier.Controller{Log: l, Sub: cons, UC: uc}
}

func main() {
	cfgPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to notifier.yaml")
	flag.Parse()

	// init
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
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

	l.Info("starting notifier",
		zap.Any("kafka_in", cfg.Kafka),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
		zap.String("smtp_addr", cfg.SMTP.Addr),
		zap.Duration("registry_ttl", cfg.Registry.CacheTTL),
	)

	// otel
	otelCloser, err := obs.SetupOTel(rootCtx, cfg.OTEL.AsOTELConfig(cfg.App))
	if err != nil {
		l.Warn("otel init", zap.Error(err))
	} else {
		defer func() { _ = otelCloser.Shutdown(context.Background()) }()
	}

	// db
	db, err := pg.NewDB(rootCtx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	l.Info("db connected")

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, db.Ping, l)

	// kafka
	cons := kafka.BootstrapConsumer(rootCtx, cfg.Kafka.AsConsumerConfig(), l).WithLogger(l)
	defer func() { _ = cons.Close() }()
	l.Info("kafka consumer initialized",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("group_id", cfg.Kafka.GroupID),
		zap.String("topic", cfg.Kafka.Topic),
	)

	// start
	ctrl := wiring(db, cfg, cons, l)
	errCh := make(chan error, 1)
	go func() {
		errCh <- ctrl.Run(rootCtx)
	}()

	select {
	case <-rootCtx.Done():
		l.Info("shutdown signal")
		// the consumer sees the cancelled context; let the event in flight
		// finish its writes before the deferred closes run
		if err := awaitStop(errCh, cfg.Server.ShutdownGrace); err != nil {
			l.Warn("consumer did not stop cleanly", zap.Error(err))
		}
	case runErr := <-errCh:
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			l.Error("controller error", zap.Error(runErr))
		}
	}

	// graceful metrics server shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}

var errStopTimeout = errors.New("consumer stop timed out")

// awaitStop waits for the consumer goroutine to report back. Cancellation is
// the expected result and is not an error.
func awaitStop(errCh <-chan error, grace time.Duration) error {
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case <-t.C:
		return errStopTimeout
	}
}
