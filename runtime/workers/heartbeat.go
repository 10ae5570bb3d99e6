package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ConnectedCounter exposes the dispatcher counters to the heartbeat.
type ConnectedCounter interface {
	Connected() int
	Delivered() uint64
	FailedWrites() uint64
}

// selfStats is what the operating system reports about this process.
type selfStats struct {
	RSS    uint64
	CPU    float64
	Status string
}

// HeartbeatWorker logs one "Heartbeat" line per interval with process and relay figures.
type HeartbeatWorker struct {
	log      *slog.Logger
	counter  ConnectedCounter
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, counter ConnectedCounter, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, counter: counter, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.beat(self)
		}
	}
}

func (w *HeartbeatWorker) beat(self *process.Process) {
	stats, err := getSelfStats(self)
	if err != nil {
		w.log.Error("Failed to collect self stats", "error", err)
		return
	}
	w.log.Info("Heartbeat",
		"connected", w.counter.Connected(),
		"delivered", w.counter.Delivered(),
		"failed_writes", w.counter.FailedWrites(),
		"rss_bytes", stats.RSS,
		"cpu_percent", stats.CPU,
		"status", stats.Status)
}

func getSelfStats(p *process.Process) (selfStats, error) {
	mem, err := p.MemoryInfo()
	if err != nil {
		return selfStats{}, err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return selfStats{}, err
	}
	status, err := p.Status()
	if err != nil {
		return selfStats{}, err
	}
	return selfStats{RSS: mem.RSS, CPU: cpu, Status: status}, nil
}
