//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context) error
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Outbound is the write side of a registered peer.
type Outbound interface {
	Write(p []byte) (int, error)
	Close() error
}

// Publisher is the producer end of the event channel, shared by the acceptor and every ingestion loop.
type Publisher interface {
	Publish(ctx context.Context, evt event.DomainEvent) error
}

// IRegistry is owned by the dispatcher goroutine and must not be shared.
type IRegistry interface {
	Admit(conn domain.Connection) bool
	Remove(address domain.Address) (domain.Connection, bool)
	Recipients(sender domain.Address) []domain.Connection
	Drain() []domain.Connection
	Len() int
}

// Censor rewrites message text before it is broadcast.
type Censor interface {
	Censor(text string) (string, []string)
}
