// Package runtime wires the relay: listener, event queue, dispatcher and telemetry.
// It orchestrates the system without containing protocol rules.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/moderation"
	"chat-relay/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RelayConfig holds everything the relay needs once the process configuration is parsed.
type RelayConfig struct {
	Host            string
	Port            int
	BufferSize      int
	OverflowPolicy  workers.OverflowPolicy
	IdleTimeout     time.Duration
	WriteTimeout    time.Duration
	RestartInterval time.Duration
	MetricInterval  time.Duration
	WarnPercent     int
	ModerationDir   string
	CharReplacement rune
	AdminPort       int
}

func (c RelayConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type Relay struct {
	mu         sync.Mutex
	log        *slog.Logger
	config     RelayConfig
	supervisor *workers.Supervisor
	registry   *Registry
	queue      *workers.EventQueue
	listener   net.Listener
	acceptor   *workers.AcceptorWorker
	dispatcher *workers.DispatcherWorker
	health     *server.HealthServer
}

func NewRelay(log *slog.Logger, config RelayConfig) *Relay {
	return &Relay{
		log:        log,
		config:     config,
		supervisor: workers.NewSupervisor(log, config.RestartInterval),
		registry:   NewRegistry(),
		queue:      workers.NewEventQueue(log, config.BufferSize, config.OverflowPolicy),
	}
}

// Listen binds the chat endpoint, and the admin endpoint when configured.
// A bind failure means the relay cannot serve at all.
func (r *Relay) Listen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener != nil {
		return nil
	}

	address := r.config.Address()
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	if r.config.AdminPort > 0 {
		adminAddress := net.JoinHostPort(r.config.Host, strconv.Itoa(r.config.AdminPort))
		adminListener, err := net.Listen("tcp", adminAddress)
		if err != nil {
			_ = listener.Close()
			return fmt.Errorf("failed to listen on %s: %w", adminAddress, err)
		}
		r.health = server.NewHealthServer(r.log, adminListener)
	}

	r.listener = listener
	r.log.Info("Listening", "address", listener.Addr().String())
	return nil
}

// Start prepares every worker and blocks until the relay stops.
// It returns the fatal error that stopped the relay, nil on a requested shutdown.
func (r *Relay) Start(ctx context.Context) error {
	// 1. Preparation phase (No Lock)
	censor, err := r.prepareModeration()
	if err != nil {
		return err
	}
	if err := r.Listen(); err != nil {
		return err
	}

	// 2. Critical Section (Short Lock)
	r.mu.Lock()
	var opts []workers.DispatcherOption
	if censor != nil {
		opts = append(opts, workers.WithCensor(censor))
	}
	opts = append(opts, workers.WithWriteTimeout(r.config.WriteTimeout))
	r.dispatcher = workers.NewDispatcherWorker(r.log, r.registry, r.queue.Events(), opts...)
	r.acceptor = workers.NewAcceptorWorker(r.log, r.listener, r.queue, r.config.IdleTimeout)

	r.supervisor.Add(r.dispatcher, r.acceptor)
	if r.config.MetricInterval > 0 {
		r.supervisor.Add(
			workers.NewChannelCapacityWorker(r.log,
				[]workers.NamedChannel{{Name: "events", Channel: r.queue.Channel()}},
				r.config.MetricInterval, r.config.WarnPercent),
			workers.NewHeartbeatWorker(r.log, r.dispatcher, r.config.MetricInterval),
		)
	}
	if r.health != nil {
		r.supervisor.Add(r.health)
		r.health.SetServing(true)
	}
	acceptor := r.acceptor
	r.mu.Unlock()

	// 3. Execution phase (No Lock)
	r.log.Info("Starting relay and all supervised workers")
	runErr := r.supervisor.Run(ctx)

	if r.health != nil {
		r.health.SetServing(false)
	}
	r.drain()
	r.closeRegistered()
	acceptor.Wait()
	r.log.Info("Relay stopped")
	return runErr
}

// prepareModeration loads censored words when a moderation directory is configured.
func (r *Relay) prepareModeration() (contract.Censor, error) {
	if r.config.ModerationDir == "" {
		return nil, nil
	}
	loader := moderation.NewCensoredLoader(os.DirFS(r.config.ModerationDir))
	data, err := loader.LoadAll(".")
	if err != nil {
		return nil, fmt.Errorf("loading censored words: %w", err)
	}

	r.log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))
	r.log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))

	moderator, err := moderation.NewModerator(data.Words, r.config.CharReplacement, r.log)
	if err != nil {
		return nil, err
	}
	return moderator, nil
}

// drain closes connections whose admission was still queued when the dispatcher stopped.
func (r *Relay) drain() {
	for {
		select {
		case evt := <-r.queue.Events():
			if admitted, ok := evt.(event.ConnectionAdmitted); ok && admitted.Connection.Outbound != nil {
				_ = admitted.Connection.Outbound.Close()
			}
		default:
			return
		}
	}
}

// closeRegistered closes what the dispatcher left registered. The dispatcher normally
// empties the registry on exit, but not when it was cancelled while waiting for a restart.
func (r *Relay) closeRegistered() {
	for _, conn := range r.registry.Drain() {
		if conn.Outbound != nil {
			_ = conn.Outbound.Close()
		}
	}
}

// Addr is the bound chat address, nil before Listen.
func (r *Relay) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Connected is the number of registered peers as last seen by the dispatcher.
func (r *Relay) Connected() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dispatcher == nil {
		return 0
	}
	return r.dispatcher.Connected()
}

// Stop initiates a graceful shutdown: workers are cancelled and every connection is closed.
func (r *Relay) Stop() {
	r.log.Info("Requesting relay shutdown")
	r.supervisor.Stop()
}
