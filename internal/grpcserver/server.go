// Package grpcserver exposes the standard gRPC health service so
// orchestrators can tell whether the acquisition process has a live link.
package grpcserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the health service name reporting the byte source state.
const Service = "daq.acquisition"

type Server struct {
	srv    *grpc.Server
	health *health.Server
	logger *slog.Logger
}

func New(lg *slog.Logger) *Server {
	if lg == nil {
		lg = slog.Default()
	}
	s := &Server{
		srv:    grpc.NewServer(),
		health: health.NewServer(),
		logger: lg.With("component", "grpcserver"),
	}
	healthpb.RegisterHealthServer(s.srv, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(Service, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// SetSourceActive reports Service as SERVING while a byte source is active.
func (s *Server) SetSourceActive(active bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if active {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(Service, st)
}

// ListenAndServe blocks serving on addr until Stop.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("grpcserver: serving", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}
