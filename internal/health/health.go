// Package health exposes the daemon readiness over the standard gRPC health
// checking protocol.
package health

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
)

// Server reports NOT_SERVING until SetServing(true). A nil *Server ignores
// every call, so callers need not check whether the endpoint is enabled.
type Server struct {
	grpc    *grpc.Server
	health  *health.Server
	lis     net.Listener
	service string
	log     *slog.Logger
	done    chan struct{}
}

// Listen binds addr and starts serving in the background.
func Listen(addr, service string, logger *slog.Logger) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("health: listen %s: %w", addr, err)
	}
	s := New(lis, service, logger)
	go s.serve()
	return s, nil
}

// New registers the health service on a new gRPC server bound to lis. The
// caller starts it with Serve.
func New(lis net.Listener, service string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthgrpc.RegisterHealthServer(grpcServer, healthServer)

	s := &Server{
		grpc:    grpcServer,
		health:  healthServer,
		lis:     lis,
		service: service,
		log:     logger.With("component", "health", "service", service),
		done:    make(chan struct{}),
	}
	s.SetServing(false)
	return s
}

// Serve blocks until the server stops.
func (s *Server) Serve() error {
	defer close(s.done)
	s.log.Info("health endpoint listening", "addr", s.lis.Addr().String())
	if err := s.grpc.Serve(s.lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("health: serve: %w", err)
	}
	return nil
}

func (s *Server) serve() {
	if err := s.Serve(); err != nil {
		s.log.Error("health endpoint terminated", "error", err)
	}
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	if s == nil {
		return nil
	}
	return s.lis.Addr()
}

// SetServing updates both the overall and the per-service status.
func (s *Server) SetServing(serving bool) {
	if s == nil {
		return
	}
	status := healthgrpc.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthgrpc.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.service, status)
}

// Stop marks the daemon NOT_SERVING and stops the server, forcing it after
// timeout.
func (s *Server) Stop(timeout time.Duration) {
	if s == nil {
		return
	}
	s.SetServing(false)
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(timeout):
		s.log.Warn("graceful stop timed out, forcing stop")
		s.grpc.Stop()
	}
}
