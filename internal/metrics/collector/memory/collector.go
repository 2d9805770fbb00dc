// Package memory
package memory

import (
	"context"

	"github.com/shirou/gopsutil/mem"
)

const mib = 1024 * 1024

type MemoryMetric struct {
	Percent float64
	UsedMB  float64
	TotalMB float64
}

type Reader func(ctx context.Context) (*mem.VirtualMemoryStat, error)

type Collector struct {
	read Reader
}

func NewCollector() *Collector {
	return &Collector{read: mem.VirtualMemoryWithContext}
}

func NewCollectorWithReader(read Reader) *Collector {
	return &Collector{read: read}
}

func (c *Collector) Collect(ctx context.Context) (MemoryMetric, error) {
	vm, err := c.read(ctx)
	if err != nil {
		return MemoryMetric{}, err
	}

	return MemoryMetric{
		Percent: vm.UsedPercent,
		UsedMB:  float64(vm.Used) / mib,
		TotalMB: float64(vm.Total) / mib,
	}, nil
}
