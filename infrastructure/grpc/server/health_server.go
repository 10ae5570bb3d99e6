package server

import (
	"chat-relay/contract"
	"context"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// RelayService is the name operators probe with grpc.health.v1.Health/Check.
const RelayService = "chatrelay.Relay"

var _ contract.Worker = (*HealthServer)(nil)

// HealthServer exposes the relay status over the standard gRPC health protocol.
type HealthServer struct {
	log      *slog.Logger
	listener net.Listener
	server   *grpc.Server
	health   *health.Server
}

func NewHealthServer(log *slog.Logger, listener net.Listener) *HealthServer {
	s := grpc.NewServer()
	h := health.NewServer()
	h.SetServingStatus(RelayService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, h)
	return &HealthServer{log: log, listener: listener, server: s, health: h}
}

// SetServing flips both the relay service and the server-wide status.
func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(RelayService, status)
	s.health.SetServingStatus("", status)
}

// Run serves until ctx ends, then stops gracefully.
// The relay keeps running if the admin endpoint fails.
func (s *HealthServer) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting admin gRPC server", "address", s.listener.Addr().String())
		if err := s.server.Serve(s.listener); err != nil && err != grpc.ErrServerStopped {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.SetServing(false)
		s.server.GracefulStop()
		return ctx.Err()
	case err, ok := <-errChan:
		// A grpc.Server cannot serve twice, so a failure here is not worth a restart.
		if ok {
			s.log.Error("Admin gRPC server failed", "error", err)
		}
		return nil
	}
}
