package event

import (
	"chat-relay/domain"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is anything an ingestion loop or the acceptor hands to the dispatcher.
// Events are immutable once built.
type DomainEvent interface {
	Origin() domain.Address
	Control() bool
}

// ConnectionAdmitted registers a freshly accepted connection.
// The acceptor publishes it before the connection's ingestion loop starts.
type ConnectionAdmitted struct {
	Connection domain.Connection
}

func (c ConnectionAdmitted) Origin() domain.Address { return c.Connection.Address }
func (c ConnectionAdmitted) Control() bool          { return true }

// MessagePosted carries one chat line from a sender.
type MessagePosted struct {
	ID     uuid.UUID
	Sender domain.Address
	Name   string
	Text   string
	At     time.Time
}

func (m MessagePosted) Origin() domain.Address { return m.Sender }
func (m MessagePosted) Control() bool          { return false }

// Disconnected is the only way a connection leaves the registry.
type Disconnected struct {
	Address domain.Address
	Reason  string
	At      time.Time
}

func (d Disconnected) Origin() domain.Address { return d.Address }
func (d Disconnected) Control() bool          { return true }

func NewMessagePosted(sender domain.Address, name, text string) MessagePosted {
	return MessagePosted{
		ID:     uuid.New(),
		Sender: sender,
		Name:   name,
		Text:   text,
		At:     time.Now(),
	}
}

func NewDisconnected(address domain.Address, reason string) Disconnected {
	return Disconnected{Address: address, Reason: reason, At: time.Now()}
}
