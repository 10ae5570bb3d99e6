package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"sort"

	"github.com/samber/lo"
)

var _ contract.IRegistry = (*Registry)(nil)

// Registry maps peer addresses to their admitted connection.
// It has no lock: the dispatcher goroutine is its only reader and writer.
type Registry struct {
	Connections map[domain.Address]domain.Connection
}

func NewRegistry() *Registry {
	return &Registry{Connections: make(map[domain.Address]domain.Connection)}
}

// Admit inserts conn unless its address is already registered.
// An address appears at most once, the first admission wins.
func (r *Registry) Admit(conn domain.Connection) bool {
	if _, ok := r.Connections[conn.Address]; ok {
		return false
	}
	r.Connections[conn.Address] = conn
	return true
}

// Remove deletes the entry for address. Removing an absent address is a no-op.
func (r *Registry) Remove(address domain.Address) (domain.Connection, bool) {
	conn, ok := r.Connections[address]
	if !ok {
		return domain.Connection{}, false
	}
	delete(r.Connections, address)
	return conn, true
}

// Recipients returns every registered connection except the sender, sorted by address
// so a broadcast visits peers in a stable order.
func (r *Registry) Recipients(sender domain.Address) []domain.Connection {
	addresses := lo.Filter(lo.Keys(r.Connections), func(addr domain.Address, _ int) bool {
		return addr != sender
	})
	sort.Slice(addresses, func(i, j int) bool { return addresses[i] < addresses[j] })
	return lo.Map(addresses, func(addr domain.Address, _ int) domain.Connection {
		return r.Connections[addr]
	})
}

func (r *Registry) Len() int {
	return len(r.Connections)
}

// Drain empties the registry and returns what it held.
func (r *Registry) Drain() []domain.Connection {
	conns := lo.Values(r.Connections)
	r.Connections = make(map[domain.Address]domain.Connection)
	return conns
}
