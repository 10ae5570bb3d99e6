package workers

import (
	"context"
	"log/slog"
	"reflect"
	"time"
)

// NamedChannel labels a channel of any element type for sampling.
type NamedChannel struct {
	Name    string
	Channel any
}

// ChannelUsage is one sample of a channel's fill level.
type ChannelUsage struct {
	Name     string
	Capacity int
	Length   int
}

// Percent is the share of the buffer in use, 0 for unbuffered channels.
func (u ChannelUsage) Percent() int {
	if u.Capacity == 0 {
		return 0
	}
	return u.Length * 100 / u.Capacity
}

// ChannelCapacityWorker samples len and cap of the given channels at every interval
// and warns once a buffer is filled past warnPercent. Sampling never receives
// from the channel, so the consumer is not disturbed.
type ChannelCapacityWorker struct {
	log         *slog.Logger
	channels    []NamedChannel
	interval    time.Duration
	warnPercent int
}

func NewChannelCapacityWorker(log *slog.Logger, channels []NamedChannel,
	interval time.Duration, warnPercent int) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{
		log:         log,
		channels:    channels,
		interval:    interval,
		warnPercent: warnPercent,
	}
}

func (w ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.report(w.Sample())
		}
	}
}

func (w ChannelCapacityWorker) report(usages []ChannelUsage) {
	for _, u := range usages {
		attrs := []any{"name", u.Name, "length", u.Length, "capacity", u.Capacity}
		if u.Capacity > 0 && u.Percent() >= w.warnPercent {
			w.log.Warn("Channel close to capacity", attrs...)
			continue
		}
		w.log.Debug("Channel usage", attrs...)
	}
}

// Sample reads the fill level of every channel. Values that are not channels are skipped.
func (w ChannelCapacityWorker) Sample() []ChannelUsage {
	var usages []ChannelUsage
	for _, nc := range w.channels {
		v := reflect.ValueOf(nc.Channel)
		if v.Kind() != reflect.Chan {
			w.log.Error("Provided object is not a channel", "name", nc.Name)
			continue
		}
		usages = append(usages, ChannelUsage{Name: nc.Name, Capacity: v.Cap(), Length: v.Len()})
	}
	return usages
}
