// Package grpc serves the gRPC health protocol for the archive server.
// Store reachability is checked periodically and published per store, so
// orchestrators can tell which backend is down.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/archivia/internal/logging"
)

type GRPCServer struct {
	address string
	logger  logging.Logger
	health  *health.Server
	checker *HealthChecker
}

func NewGRPCServer(a string, l logging.Logger, checker *HealthChecker) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		health:  checker.health,
		checker: checker,
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.recoveryInterceptor, s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	go s.checker.Run(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
