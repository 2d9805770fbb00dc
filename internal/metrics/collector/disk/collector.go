// Package disk
package disk

import (
	"context"
	"strings"
	"time"

	"hostpulse/internal/metrics/collector/rate"

	"github.com/shirou/gopsutil/disk"
)

const (
	mib = 1024 * 1024
	gib = 1024 * 1024 * 1024
)

type DiskMetric struct {
	// Percent is I/O throughput relative to MaxThroughputMBps, capped at 100.
	Percent float64
	UsedGB  float64
	TotalGB float64
}

type UsageReader func(ctx context.Context, path string) (used, total uint64, err error)

// IOReader returns cumulative bytes read and written across whole disks.
type IOReader func(ctx context.Context) (read, written uint64, err error)

type Config struct {
	Path              string
	MaxThroughputMBps float64
}

type Collector struct {
	cfg   Config
	usage UsageReader
	io    IOReader
	bytes rate.Counter
}

func NewCollector(cfg Config) *Collector {
	return NewCollectorWithReaders(cfg, readUsage, readIO)
}

func NewCollectorWithReaders(cfg Config, usage UsageReader, io IOReader) *Collector {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.MaxThroughputMBps <= 0 {
		cfg.MaxThroughputMBps = 100
	}
	return &Collector{cfg: cfg, usage: usage, io: io}
}

func (c *Collector) Collect(ctx context.Context, at time.Time) (DiskMetric, error) {
	used, total, err := c.usage(ctx, c.cfg.Path)
	if err != nil {
		return DiskMetric{}, err
	}

	read, written, err := c.io(ctx)
	if err != nil {
		return DiskMetric{}, err
	}

	bytesPerSec := c.bytes.Update(read+written, at)
	percent := bytesPerSec / (c.cfg.MaxThroughputMBps * mib) * 100
	if percent > 100 {
		percent = 100
	}

	return DiskMetric{
		Percent: percent,
		UsedGB:  float64(used) / gib,
		TotalGB: float64(total) / gib,
	}, nil
}

func readUsage(ctx context.Context, path string) (uint64, uint64, error) {
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, 0, err
	}
	return u.Used, u.Total, nil
}

func readIO(ctx context.Context) (uint64, uint64, error) {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}

	var read, written uint64
	for name, c := range counters {
		if isPartition(name, counters) {
			continue
		}
		read += c.ReadBytes
		written += c.WriteBytes
	}
	return read, written, nil
}

// isPartition reports whether name extends another device name, as sda1
// extends sda and nvme0n1p2 extends nvme0n1. Partitions would otherwise
// be counted twice.
func isPartition(name string, counters map[string]disk.IOCountersStat) bool {
	for other := range counters {
		if other != name && strings.HasPrefix(name, other) {
			return true
		}
	}
	return false
}
