// Package e2e drives a relay from the outside, over its chat and admin endpoints.
package e2e

import (
	"bufio"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

type BaseRelaySuite struct {
	suite.Suite
	Config  Config
	stop    context.CancelFunc
	stopped chan error
}

// SetupSuite loads the environment configuration and starts a local relay when none is targeted.
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.RelayAddr == "" {
		s.startLocalRelay()
	}
}

func (s *BaseRelaySuite) TearDownSuite() {
	if s.stop == nil {
		return
	}
	s.stop()
	select {
	case err := <-s.stopped:
		s.Require().NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("Local relay did not stop")
	}
}

func (s *BaseRelaySuite) startLocalRelay() {
	adminPort := s.freePort()
	relay := runtime.NewRelay(logs.GetLoggerFromLevel(slog.LevelInfo), runtime.RelayConfig{
		Host:            "127.0.0.1",
		Port:            0,
		BufferSize:      256,
		OverflowPolicy:  workers.Block,
		WriteTimeout:    time.Second,
		RestartInterval: 50 * time.Millisecond,
		AdminPort:       adminPort,
	})
	s.Require().NoError(relay.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.stopped = make(chan error, 1)
	go func() { s.stopped <- relay.Start(ctx) }()

	s.Config.RelayAddr = relay.Addr().String()
	s.Config.AdminAddr = net.JoinHostPort("127.0.0.1", strconv.Itoa(adminPort))
}

func (s *BaseRelaySuite) freePort() int {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

// Header prints a colorized step title in the test logs
func (s *BaseRelaySuite) Header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// GrpcConn dials addr with every unary call traced in the test log.
func (s *BaseRelaySuite) GrpcConn(t *testing.T, name string, addr string) *grpc.ClientConn {
	s.Header(t, name)
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.traceCalls(t)),
	)
	s.Require().NoError(err, "Failed to connect to gRPC server at "+addr)
	return conn
}

// traceCalls logs method, status code and latency, plus both bodies as JSON when E2E_DEBUG_JSON is set.
func (s *BaseRelaySuite) traceCalls(t *testing.T) grpc.UnaryClientInterceptor {
	asJSON := protojson.MarshalOptions{UseProtoNames: true, Multiline: true, EmitUnpopulated: true}

	return func(ctx context.Context, method string, req, reply any,
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		started := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)

		var trace strings.Builder
		fmt.Fprintf(&trace, "GRPC %s [%s] in %v", method, status.Code(err), time.Since(started))
		if s.Config.DebugJSON {
			if msg, ok := req.(proto.Message); ok {
				fmt.Fprintf(&trace, "\nREQUEST:\n%s", asJSON.Format(msg))
			}
			if msg, ok := reply.(proto.Message); ok && err == nil {
				fmt.Fprintf(&trace, "\nRESPONSE:\n%s", asJSON.Format(msg))
			}
			if err != nil {
				fmt.Fprintf(&trace, "\nERROR: %v", err)
			}
		}
		t.Log(trace.String())
		return err
	}
}

// WithHealth provides a health client on the relay admin endpoint within a contextual test step
func (s *BaseRelaySuite) WithHealth(name string, fn func(ctx context.Context, client healthpb.HealthClient)) {
	if s.Config.AdminAddr == "" {
		s.T().Skip("ADMIN_ADDR not set")
	}
	conn := s.GrpcConn(s.T(), name, s.Config.AdminAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fn(ctx, healthpb.NewHealthClient(conn))
}

// Peer is a raw TCP participant speaking the line protocol.
type Peer struct {
	Name   string
	conn   net.Conn
	reader *bufio.Reader
}

// Join dials the relay and announces name.
func (s *BaseRelaySuite) Join(name string) *Peer {
	s.Header(s.T(), "Join "+name)
	conn, err := net.Dial("tcp", s.Config.RelayAddr)
	s.Require().NoError(err)
	_, err = fmt.Fprintln(conn, name)
	s.Require().NoError(err)
	return &Peer{Name: name, conn: conn, reader: bufio.NewReader(conn)}
}

func (p *Peer) Say(text string) error {
	_, err := fmt.Fprintln(p.conn, text)
	return err
}

// ReadLine waits up to timeout for the next broadcast line.
func (p *Peer) ReadLine(timeout time.Duration) (string, error) {
	if err := p.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	line, err := p.reader.ReadString('\n')
	return strings.TrimRight(line, "\n"), err
}

func (p *Peer) Leave() error {
	return p.conn.Close()
}
