package workers

import (
	"bufio"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"io"
	"log/slog"
	"net"
	"time"
)

var _ contract.Worker = (*IngestionWorker)(nil)

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// IngestionWorker reads one connection for its whole lifetime.
// The first line is the display name, every following line becomes a MessagePosted.
// A read failure or end of stream produces exactly one Disconnected and ends the worker.
type IngestionWorker struct {
	log         *slog.Logger
	address     domain.Address
	conn        io.Reader
	publisher   contract.Publisher
	idleTimeout time.Duration
}

func NewIngestionWorker(log *slog.Logger, address domain.Address, conn io.Reader,
	publisher contract.Publisher, idleTimeout time.Duration) *IngestionWorker {
	return &IngestionWorker{
		log:         log.With("address", address),
		address:     address,
		conn:        conn,
		publisher:   publisher,
		idleTimeout: idleTimeout,
	}
}

func (w *IngestionWorker) Run(ctx context.Context) error {
	reader := bufio.NewReader(w.conn)

	raw, err := w.readLine(reader)
	if err != nil {
		return w.disconnect(ctx, err)
	}
	name := domain.TrimLine(raw)
	w.log.Debug("Name received", "name", name, "state", domain.Active)

	for {
		raw, err = w.readLine(reader)
		// A last line without terminator is still a message.
		if len(raw) > 0 {
			evt := event.NewMessagePosted(w.address, name, domain.TrimLine(raw))
			if pubErr := w.publisher.Publish(ctx, evt); pubErr != nil {
				if ctx.Err() != nil {
					return nil
				}
				if !errors.Is(pubErr, errors.ErrQueueFull) {
					w.log.Error("Unable to publish message", "error", pubErr)
				}
			}
		}
		if err != nil {
			return w.disconnect(ctx, err)
		}
	}
}

func (w *IngestionWorker) readLine(reader *bufio.Reader) (string, error) {
	if d, ok := w.conn.(readDeadliner); ok && w.idleTimeout > 0 {
		_ = d.SetReadDeadline(time.Now().Add(w.idleTimeout))
	}
	return reader.ReadString('\n')
}

func (w *IngestionWorker) disconnect(ctx context.Context, cause error) error {
	reason := disconnectReason(cause)
	w.log.Debug("Stream ended", "reason", reason)
	if err := w.publisher.Publish(ctx, event.NewDisconnected(w.address, reason)); err != nil && ctx.Err() == nil {
		w.log.Error("Unable to publish disconnect", "error", err)
	}
	return nil
}

func disconnectReason(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		return "eof"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "idle timeout"
	default:
		return err.Error()
	}
}
