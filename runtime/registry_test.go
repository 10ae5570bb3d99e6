package runtime

import (
	"chat-relay/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistry_Admit_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := domain.Connection{Address: "10.0.0.1:4000"}

	// Given no peer is connected
	req.Empty(registry.Connections)

	// When a connection is admitted
	req.True(registry.Admit(conn))

	// Then
	req.Len(registry.Connections, 1)
	req.Equal(conn, registry.Connections[conn.Address])
	req.Equal(1, registry.Len())
}

func TestRegistry_Admit_Same_Address_Twice(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	admittedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first := domain.Connection{Address: "10.0.0.1:4000", AdmittedAt: admittedAt}
	second := domain.Connection{Address: "10.0.0.1:4000", AdmittedAt: admittedAt.Add(time.Minute)}

	req.True(registry.Admit(first))

	// When the same address is admitted again
	req.False(registry.Admit(second))

	// Then the address still appears once, with the first admission
	req.Equal(1, registry.Len())
	req.Equal(admittedAt, registry.Connections[first.Address].AdmittedAt)
}

func TestRegistry_Remove_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Admit(domain.Connection{Address: "a:1"})
	registry.Admit(domain.Connection{Address: "b:2"})

	// When the same address is removed twice
	removed, ok := registry.Remove("a:1")
	req.True(ok)
	req.Equal(domain.Address("a:1"), removed.Address)

	_, ok = registry.Remove("a:1")
	req.False(ok)

	// Then the registry shrank by exactly one
	req.Equal(1, registry.Len())
	req.Contains(registry.Connections, domain.Address("b:2"))
}

func TestRegistry_Recipients_Exclude_Sender(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	for _, addr := range []domain.Address{"c:3", "a:1", "b:2"} {
		registry.Admit(domain.Connection{Address: addr})
	}

	recipients := registry.Recipients("b:2")

	req.Len(recipients, 2)
	req.Equal(domain.Address("a:1"), recipients[0].Address)
	req.Equal(domain.Address("c:3"), recipients[1].Address)
}

func TestRegistry_Recipients_Unknown_Sender(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Admit(domain.Connection{Address: "a:1"})

	// A sender already removed still never matches anyone else
	req.Len(registry.Recipients("gone:9"), 1)
	req.Empty(NewRegistry().Recipients("a:1"))
}

func TestRegistry_Drain(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Admit(domain.Connection{Address: "a:1"})
	registry.Admit(domain.Connection{Address: "b:2"})

	drained := registry.Drain()

	req.Len(drained, 2)
	req.Zero(registry.Len())
}
