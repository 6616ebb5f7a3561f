// Package server hosts the widget bridge over gRPC.
package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/solatis/cpq/internal/core/config"
)

// GRPCServer manages gRPC server lifecycle.
type GRPCServer struct {
	server   *grpc.Server
	listener net.Listener
	config   *config.Config
	health   *health.Server
	service  *BridgeService
}

// NewGRPCServer creates gRPC server with origin interceptors and service registration.
func NewGRPCServer(cfg *config.Config, service *BridgeService) (*GRPCServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			UnaryOriginInterceptor(service.handler),
		),
		grpc.ChainStreamInterceptor(
			StreamOriginInterceptor(service.handler),
		),
	}

	server := grpc.NewServer(opts...)
	server.RegisterService(&bridgeServiceDesc, service)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &GRPCServer{
		server:  server,
		config:  cfg,
		health:  healthServer,
		service: service,
	}, nil
}

// Start binds listener and serves gRPC requests.
// Context is provided for API consistency but Serve blocks until Shutdown is called.
func (s *GRPCServer) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.BridgeHost, fmt.Sprint(s.config.BridgePort))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve serves on an existing listener.
func (s *GRPCServer) Serve(listener net.Listener) error {
	s.listener = listener
	return s.server.Serve(listener)
}

// Shutdown gracefully stops server with 30-second timeout.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()
	s.service.close()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(30 * time.Second):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}
