package workers

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultRestartInterval = 200 * time.Millisecond

var _ contract.ISupervisor = (*Supervisor)(nil)

// Supervisor keeps a set of workers alive for the lifetime of a context.
// A worker returning nil is done for good. A worker failing or panicking is restarted
// after restartInterval. A worker failing with ErrFatal takes every other worker down with it.
type Supervisor struct {
	mu              sync.Mutex
	Cancel          context.CancelFunc
	wg              sync.WaitGroup
	log             *slog.Logger
	workers         []contract.Worker
	restartInterval time.Duration
	fatal           error
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	if restartInterval <= 0 {
		restartInterval = defaultRestartInterval
	}
	return &Supervisor{log: log, restartInterval: restartInterval}
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Run blocks until every worker has returned and reports the fatal error, if any.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.Cancel = cancel
	s.mu.Unlock()

	for _, worker := range s.workers {
		s.Start(ctx, worker)
	}
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

// Start supervises a single worker in its own goroutine.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.supervise(ctx, worker)
	}()
}

func (s *Supervisor) supervise(ctx context.Context, worker contract.Worker) {
	log := s.log.With("name", contract.GetWorkerName(worker))

	for ctx.Err() == nil {
		err := runOnce(ctx, log, worker)
		switch {
		case err == nil:
			log.Info("Worker finished")
			return
		case ctx.Err() != nil:
			log.Info("Worker stopped")
			return
		case errors.Is(err, errors.ErrFatal):
			log.Error("Worker failed, stopping relay", "error", err)
			s.fail(err)
			return
		}

		log.Warn("Worker crashed, restarting", "error", err, "retry_in", s.restartInterval)
		select {
		case <-ctx.Done():
		case <-time.After(s.restartInterval):
		}
	}
}

// runOnce turns a panic into ErrWorkerPanic.
func runOnce(ctx context.Context, log *slog.Logger, worker contract.Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Worker panic recovered", "panic", r)
			err = errors.ErrWorkerPanic
		}
	}()
	return worker.Run(ctx)
}

func (s *Supervisor) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fatal == nil {
		s.fatal = err
	}
	if s.Cancel != nil {
		s.Cancel()
	}
}

// Stop cancels every worker. Run returns once they are all done.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Cancel != nil {
		s.Cancel()
	}
}
