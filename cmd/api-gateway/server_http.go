package main

import (
	"context"
	"net/http"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	config "github.com/NordCoder/Heartbeat/internal/config/api-gateway"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
	"github.com/NordCoder/Heartbeat/internal/obs"
	"github.com/NordCoder/Heartbeat/internal/outbox"
	pg "github.com/NordCoder/Heartbeat/internal/repository/postgres"
	"github.com/NordCoder/Heartbeat/internal/services/api-gateway/access"
	checksvc "github.com/NordCoder/Heartbeat/internal/services/api-gateway/check"
	"github.com/NordCoder/Heartbeat/internal/services/api-gateway/ingress"
	ingressrepo "github.com/NordCoder/Heartbeat/internal/services/api-gateway/ingress/repo"
	subsvc "github.com/NordCoder/Heartbeat/internal/services/api-gateway/subscriber"
)

func buildHTTPServer(cfg *config.Config, logger *zap.Logger, db *pg.DB, outboxRepo outbox.Enqueuer, hs *health.Server) (*http.Server, error) {
	clock := notification.SystemClock{}
	tx := pg.NewTransactor(db, logger)
	checks := pg.NewCheckRepo(db)

	guard := &access.Guard{
		Authn: access.NewStaticTokens(cfg.Access.Tokens),
		Gate:  access.OrgGate{Org: cfg.Access.Org},
		Log:   logger,
	}
	if len(cfg.Access.Tokens) == 0 {
		logger.Warn("no operator tokens configured, admin api will refuse every request")
	}

	mux := runtime.NewServeMux()

	ping := &ingress.Controller{
		UC: ingress.NewUC(ingressrepo.CheckRepo{R: checks}, ingressrepo.Events{Q: outboxRepo}, tx, clock,
			cfg.Ingress.NotifyRecovery, logger),
		Log: logger,
	}
	if err := ping.Register(mux); err != nil {
		return nil, err
	}

	checkCtrl := &checksvc.Controller{
		UC:      checksvc.NewUsecase(checks, pg.NewNotificationRepo(db), tx, clock, logger),
		Clock:   clock,
		BaseURL: cfg.Server.PublicURL,
		Log:     logger,
	}
	if err := checkCtrl.Register(mux, guard.Require); err != nil {
		return nil, err
	}

	subCtrl := &subsvc.Controller{UC: subsvc.NewUsecase(pg.NewSubscriberRepo(db), logger), Log: logger}
	if err := subCtrl.Register(mux, guard.Require); err != nil {
		return nil, err
	}

	root := http.NewServeMux()
	root.Handle("/", otelhttp.NewHandler(mux, "api-gateway"))
	root.Handle("/metrics", obs.MetricsHandler())
	root.Handle("/healthz", obs.HealthHandler(func(ctx context.Context) error {
		err := db.Ping(ctx)
		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", status)
		return err
	}))

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           root,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}, nil
}

func serveHTTP(srv *http.Server, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
	return srv.ListenAndServe()
}
