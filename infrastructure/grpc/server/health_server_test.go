package server

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

func newHealthClient(t *testing.T, listener *bufconn.Listener) healthpb.HealthClient {
	t.Helper()
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthServer_Reports_Relay_Status(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	listener := bufconn.Listen(bufSize)
	srv := NewHealthServer(log, listener)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- srv.Run(ctx) }()

	client := newHealthClient(t, listener)

	// Given a relay not serving yet
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, RelayService))

	// When the relay starts serving
	srv.SetServing(true)

	// Then both the relay service and the server are reported as serving
	req.Equal(healthpb.HealthCheckResponse_SERVING, check(t, client, RelayService))
	req.Equal(healthpb.HealthCheckResponse_SERVING, check(t, client, ""))

	// When the context ends, the server stops gracefully
	cancel()
	select {
	case err := <-stopped:
		req.ErrorIs(err, context.Canceled)
	case <-time.After(2 * time.Second):
		req.Fail("Health server did not stop")
	}
}

func TestHealthServer_Serve_Failure_Is_Not_Restarted(t *testing.T) {
	listener := bufconn.Listen(bufSize)
	require.NoError(t, listener.Close())

	srv := NewHealthServer(slog.Default(), listener)

	// A closed listener makes Serve fail at once, Run reports a clean end
	require.NoError(t, srv.Run(context.Background()))
}
