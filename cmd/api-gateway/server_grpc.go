package main

import (
	"net"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	config "github.com/NordCoder/Heartbeat/internal/config/api-gateway"
	"github.com/NordCoder/Heartbeat/internal/obs"
)

// buildGRPCServer exposes the standard health service; its status follows
// the database probe run by the HTTP /healthz handler.
func buildGRPCServer(cfg *config.Config) (*grpc.Server, *health.Server, net.Listener, error) {
	grpcMetrics := grpcprometheus.NewServerMetrics()
	grpcMetrics.EnableHandlingTimeHistogram()

	opts := obs.GRPCServerOpts()
	opts = append(opts,
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	grpcServer := grpc.NewServer(opts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	ln, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return nil, nil, nil, err
	}
	return grpcServer, hs, ln, nil
}

func serveGRPC(s *grpc.Server, ln net.Listener, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("grpc listening", zap.String("addr", cfg.Server.GRPCAddr))
	return s.Serve(ln)
}

func gracefulStopGRPC(s *grpc.Server, hs *health.Server) {
	hs.Shutdown()
	s.GracefulStop()
}
