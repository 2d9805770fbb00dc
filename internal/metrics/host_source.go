package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hostpulse/internal/domain"
	"hostpulse/internal/metrics/collector/cpu"
	"hostpulse/internal/metrics/collector/disk"
	"hostpulse/internal/metrics/collector/memory"
	"hostpulse/internal/metrics/collector/network"
)

type HostSourceConfig struct {
	CPUWindow             time.Duration
	DiskPath              string
	DiskMaxThroughputMBps float64
}

// HostSource reads the local host. Any collector failure fails the whole
// sample so that a Snapshot is never partially filled.
type HostSource struct {
	mu      sync.Mutex
	cpu     *cpu.Collector
	memory  *memory.Collector
	disk    *disk.Collector
	network *network.Collector
}

func NewHostSource(cfg HostSourceConfig) *HostSource {
	if cfg.CPUWindow <= 0 {
		cfg.CPUWindow = 100 * time.Millisecond
	}

	return NewHostSourceFrom(
		cpu.NewCollector(cfg.CPUWindow),
		memory.NewCollector(),
		disk.NewCollector(disk.Config{
			Path:              cfg.DiskPath,
			MaxThroughputMBps: cfg.DiskMaxThroughputMBps,
		}),
		network.NewCollector(),
	)
}

func NewHostSourceFrom(c *cpu.Collector, m *memory.Collector, d *disk.Collector, n *network.Collector) *HostSource {
	return &HostSource{cpu: c, memory: m, disk: d, network: n}
}

func (h *HostSource) Sample(ctx context.Context, at time.Time) (domain.Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := domain.Snapshot{Timestamp: at}

	cpuPercent, err := h.cpu.Collect(ctx)
	if err != nil {
		return domain.Snapshot{}, sourceError("cpu", err)
	}
	snap.CPUPercent = cpuPercent

	mem, err := h.memory.Collect(ctx)
	if err != nil {
		return domain.Snapshot{}, sourceError("memory", err)
	}
	snap.MemoryPercent = mem.Percent
	snap.MemoryUsedMB = mem.UsedMB
	snap.MemoryTotalMB = mem.TotalMB

	dsk, err := h.disk.Collect(ctx, at)
	if err != nil {
		return domain.Snapshot{}, sourceError("disk", err)
	}
	snap.DiskPercent = dsk.Percent
	snap.DiskUsedGB = dsk.UsedGB
	snap.DiskTotalGB = dsk.TotalGB

	net, err := h.network.Collect(ctx, at)
	if err != nil {
		return domain.Snapshot{}, sourceError("network", err)
	}
	snap.NetworkSentMB = net.SentMB
	snap.NetworkRecvMB = net.RecvMB
	snap.NetworkSentRateMbps = net.SentRateMbps
	snap.NetworkRecvRateMbps = net.RecvRateMbps

	return snap, nil
}

func sourceError(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, name, err)
}
