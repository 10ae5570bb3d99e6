package workers

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

var _ contract.Worker = (*AcceptorWorker)(nil)

const maxAcceptBackoff = 1 * time.Second

// AcceptorWorker admits new connections.
// Admission is published on the event queue before the ingestion loop is spawned,
// so a connection's Disconnected can never reach the dispatcher before its admission.
type AcceptorWorker struct {
	log         *slog.Logger
	listener    net.Listener
	publisher   contract.Publisher
	idleTimeout time.Duration
	loops       sync.WaitGroup
}

func NewAcceptorWorker(log *slog.Logger, listener net.Listener,
	publisher contract.Publisher, idleTimeout time.Duration) *AcceptorWorker {
	return &AcceptorWorker{
		log:         log,
		listener:    listener,
		publisher:   publisher,
		idleTimeout: idleTimeout,
	}
}

func (w *AcceptorWorker) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = w.listener.Close()
	})
	defer stop()

	var backoff time.Duration
	for {
		conn, err := w.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				w.log.Debug("Stopping acceptor")
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return errors.Fatal(fmt.Errorf("listener closed: %w", err))
			}
			backoff = nextBackoff(backoff)
			w.log.Warn("Accept failed, retrying", "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		if err := w.admit(ctx, conn); err != nil {
			w.log.Warn("Adding client failed", "error", err)
			_ = conn.Close()
		}
	}
}

// admit registers conn then starts its ingestion loop.
func (w *AcceptorWorker) admit(ctx context.Context, conn net.Conn) error {
	address, err := peerAddress(conn)
	if err != nil {
		return err
	}
	w.log.Debug("Connection accepted", "address", address, "state", domain.Connecting)

	admitted := event.ConnectionAdmitted{Connection: domain.Connection{
		Address:    address,
		Outbound:   conn,
		AdmittedAt: time.Now(),
	}}
	if err := w.publisher.Publish(ctx, admitted); err != nil {
		return fmt.Errorf("admission of %s: %w", address, err)
	}

	ingestion := NewIngestionWorker(w.log, address, conn, w.publisher, w.idleTimeout)
	w.loops.Add(1)
	go func() {
		defer w.loops.Done()
		_ = ingestion.Run(ctx)
	}()
	return nil
}

// Wait blocks until every ingestion loop spawned by this acceptor has returned.
func (w *AcceptorWorker) Wait() {
	w.loops.Wait()
}

// Addr is the bound listening address.
func (w *AcceptorWorker) Addr() net.Addr {
	return w.listener.Addr()
}

func peerAddress(conn net.Conn) (domain.Address, error) {
	remote := conn.RemoteAddr()
	if remote == nil || remote.String() == "" {
		return "", fmt.Errorf("%w: peer address unavailable", errors.ErrTransport)
	}
	return domain.Address(remote.String()), nil
}

func nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return 5 * time.Millisecond
	}
	current *= 2
	if current > maxAcceptBackoff {
		return maxAcceptBackoff
	}
	return current
}
