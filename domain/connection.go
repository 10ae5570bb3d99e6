// Package domain contains core concepts of the relay.
// This file defines Connection entities and their lifecycle states.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"io"
	"log/slog"
	"time"
)

// Address is the transport-level identity of a peer and the registry key.
type Address string

func (a Address) String() string { return string(a) }

// ConnectionState follows a connection from accept to removal.
type ConnectionState int

const (
	Connecting ConnectionState = iota
	Registered
	Active
	Disconnected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Registered:
		return "registered"
	case Active:
		return "active"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// LogValue makes slog handlers write the state name instead of its number.
func (s ConnectionState) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

// Connection is a registered peer. The display name is not kept here,
// every MessagePosted carries it.
// Only the dispatcher writes to Outbound once the connection is admitted.
type Connection struct {
	Address    Address
	Outbound   io.WriteCloser
	AdmittedAt time.Time
}
