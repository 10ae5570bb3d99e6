package workers

import (
	"chat-relay/domain/event"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestChannelCapacityWorker_Sample(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	events := make(chan event.DomainEvent, 4)
	events <- event.NewDisconnected("a:1", "eof")
	events <- event.NewDisconnected("b:2", "eof")
	events <- event.NewDisconnected("c:3", "eof")

	worker := NewChannelCapacityWorker(log, []NamedChannel{
		{Name: "events", Channel: events},
		{Name: "not a channel", Channel: 42},
	}, time.Second, 80)

	// Then only the real channel is sampled
	usage := worker.Sample()
	req.Len(usage, 1)
	req.Equal(ChannelUsage{Name: "events", Capacity: 4, Length: 3}, usage[0])
	req.Equal(75, usage[0].Percent())
}

func TestChannelUsage_Percent_Unbuffered(t *testing.T) {
	require.Zero(t, ChannelUsage{Name: "sync"}.Percent())
}
