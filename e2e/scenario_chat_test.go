package e2e

import (
	"bytes"
	"chat-relay/client"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type testChatSuite struct {
	BaseRelaySuite
}

func TestChatSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("e2e scenario skipped in short mode")
	}
	suite.Run(t, &testChatSuite{})
}

type screen struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *screen) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *screen) Contains(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Contains(s.buf.String(), text)
}

// readUntil skips lines until one contains text.
func (s *testChatSuite) readUntil(p *Peer, text string) string {
	for {
		line, err := p.ReadLine(2 * time.Second)
		s.Require().NoError(err, "%s never received %q", p.Name, text)
		if strings.Contains(line, text) {
			return line
		}
	}
}

// sync repeats a probe from sender until seen reports it arrived,
// so later messages are known to reach a registered peer.
func (s *testChatSuite) sync(sender *Peer, seen func(token string) bool) {
	for attempt := 0; attempt < 50; attempt++ {
		token := "sync-" + uuid.NewString()
		s.Require().NoError(sender.Say(token))
		deadline := time.Now().Add(100 * time.Millisecond)
		for time.Now().Before(deadline) {
			if seen(token) {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
	s.FailNow("peers never saw each other")
}

func (s *testChatSuite) seenBy(p *Peer) func(string) bool {
	return func(token string) bool {
		for {
			line, err := p.ReadLine(20 * time.Millisecond)
			if err != nil {
				return false
			}
			if strings.Contains(line, token) {
				return true
			}
		}
	}
}

func (s *testChatSuite) TestFullChatFlow() {
	// --- STEP 0: HEALTH ---
	s.Run("Step 0: Relay reports serving", func() {
		s.WithHealth("Checking relay health", func(ctx context.Context, health healthpb.HealthClient) {
			s.Require().Eventually(func() bool {
				resp, err := health.Check(ctx, &healthpb.HealthCheckRequest{Service: "chatrelay.Relay"})
				return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
			}, 5*time.Second, 50*time.Millisecond)
		})
	})

	alice := s.Join("alice")
	defer alice.Leave()
	bob := s.Join("bob")
	defer bob.Leave()

	// --- STEP 1: BROADCAST ---
	s.Run("Step 1: A message reaches the other peer only", func() {
		s.sync(alice, s.seenBy(bob))
		s.sync(bob, s.seenBy(alice))

		text := "hello " + uuid.NewString()
		s.Require().NoError(alice.Say(text))

		line := s.readUntil(bob, text)
		s.Regexp(`^\[\d{2}:\d{2}:\d{2}\] alice > `+text+`$`, line)

		_, err := alice.ReadLine(200 * time.Millisecond)
		s.Error(err, "the sender must not receive its own message")
	})

	// --- STEP 2: A CLIENT JOINS AND LEAVES ---
	s.Run("Step 2: The relay keeps serving after a peer leaves", func() {
		stdin, typing := io.Pipe()
		out := &screen{}
		carol := client.New(logs.GetLoggerFromLevel(slog.LevelInfo),
			client.Config{ServerAddress: s.Config.RelayAddr, Colours: s.Config.Colours}, stdin, out)

		done := make(chan int, 1)
		go func() {
			code, _ := carol.Run(context.Background())
			done <- code
		}()
		_, err := io.WriteString(typing, "carol\n")
		s.Require().NoError(err)
		s.sync(bob, out.Contains)

		// When carol's input ends, the client exits cleanly
		s.Require().NoError(typing.Close())
		select {
		case code := <-done:
			s.Equal(client.ExitOK, code)
		case <-time.After(5 * time.Second):
			s.FailNow("client did not exit")
		}

		// Then the remaining peers still talk
		text := "still here " + uuid.NewString()
		s.Require().NoError(bob.Say(text))
		s.Contains(s.readUntil(alice, text), "bob > "+text)
	})
}
