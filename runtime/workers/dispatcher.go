package workers

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

var _ contract.Worker = (*DispatcherWorker)(nil)

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// DispatcherWorker is the single owner of the registry.
// It applies one event at a time, in the order they were queued, which is
// what gives every recipient the same message order.
type DispatcherWorker struct {
	log          *slog.Logger
	registry     contract.IRegistry
	events       <-chan event.DomainEvent
	censor       contract.Censor
	writeTimeout time.Duration
	now          func() time.Time

	connected    atomic.Int64
	delivered    atomic.Uint64
	failedWrites atomic.Uint64
}

type DispatcherOption func(*DispatcherWorker)

// WithCensor rewrites message text before broadcast.
func WithCensor(censor contract.Censor) DispatcherOption {
	return func(w *DispatcherWorker) { w.censor = censor }
}

// WithWriteTimeout bounds each peer write when the outbound supports deadlines.
func WithWriteTimeout(d time.Duration) DispatcherOption {
	return func(w *DispatcherWorker) { w.writeTimeout = d }
}

// WithClock replaces time.Now for the timestamp of broadcast lines.
func WithClock(now func() time.Time) DispatcherOption {
	return func(w *DispatcherWorker) { w.now = now }
}

func NewDispatcherWorker(log *slog.Logger, registry contract.IRegistry,
	events <-chan event.DomainEvent, opts ...DispatcherOption) *DispatcherWorker {
	w := &DispatcherWorker{
		log:      log,
		registry: registry,
		events:   events,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.connected.Store(int64(registry.Len()))
	return w
}

func (w *DispatcherWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.closeAll()
			w.log.Debug("Stopping dispatcher")
			return ctx.Err()
		case evt, ok := <-w.events:
			if !ok {
				w.log.Error("Event channel closed, dispatcher cannot continue")
				w.closeAll()
				return errors.Fatal(errors.ErrEventChannelClosed)
			}
			w.Apply(evt)
		}
	}
}

// Apply processes a single event to completion.
func (w *DispatcherWorker) Apply(evt event.DomainEvent) {
	switch e := evt.(type) {
	case event.ConnectionAdmitted:
		w.admit(e)
	case event.MessagePosted:
		w.broadcast(e)
	case event.Disconnected:
		w.disconnect(e)
	default:
		w.log.Warn(fmt.Sprintf("Unknown event %T ignored", evt))
	}
	w.connected.Store(int64(w.registry.Len()))
}

func (w *DispatcherWorker) admit(e event.ConnectionAdmitted) {
	if !w.registry.Admit(e.Connection) {
		w.log.Warn("Duplicate admission ignored", "address", e.Connection.Address)
		return
	}
	w.log.Info("Client connected", "address", e.Connection.Address, "state", domain.Registered)
}

// broadcast writes the formatted line to every peer except the sender.
// Write failures are swallowed, removal only ever follows a Disconnected event.
func (w *DispatcherWorker) broadcast(e event.MessagePosted) {
	text := e.Text
	if w.censor != nil {
		text, _ = w.censor.Censor(text)
	}
	line := []byte(domain.FormatLine(w.now(), e.Name, text))

	for _, conn := range w.registry.Recipients(e.Sender) {
		if err := w.write(conn, line); err != nil {
			w.failedWrites.Add(1)
			w.log.Debug("Write to peer failed", "address", conn.Address, "message", e.ID, "error", err)
			continue
		}
		w.delivered.Add(1)
	}
}

func (w *DispatcherWorker) write(conn domain.Connection, line []byte) error {
	if conn.Outbound == nil {
		return errors.ErrNilConnection
	}
	if d, ok := conn.Outbound.(writeDeadliner); ok && w.writeTimeout > 0 {
		_ = d.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	}
	_, err := conn.Outbound.Write(line)
	return err
}

func (w *DispatcherWorker) disconnect(e event.Disconnected) {
	conn, ok := w.registry.Remove(e.Address)
	if !ok {
		w.log.Debug("Disconnect for unknown address ignored", "address", e.Address)
		return
	}
	if conn.Outbound != nil {
		_ = conn.Outbound.Close()
	}
	attrs := []any{"address", e.Address, "reason", e.Reason, "state", domain.Disconnected}
	if !conn.AdmittedAt.IsZero() {
		attrs = append(attrs, "connected_for", e.At.Sub(conn.AdmittedAt).Round(time.Millisecond).String())
	}
	w.log.Info("Client disconnected", attrs...)
}

func (w *DispatcherWorker) closeAll() {
	for _, conn := range w.registry.Drain() {
		if conn.Outbound != nil {
			_ = conn.Outbound.Close()
		}
	}
	w.connected.Store(0)
}

// Connected is the registry size after the last applied event, safe to read from any goroutine.
func (w *DispatcherWorker) Connected() int {
	return int(w.connected.Load())
}

func (w *DispatcherWorker) Delivered() uint64 {
	return w.delivered.Load()
}

func (w *DispatcherWorker) FailedWrites() uint64 {
	return w.failedWrites.Load()
}
