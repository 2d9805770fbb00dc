// Package cpu
package cpu

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/cpu"
)

type PercentReader func(ctx context.Context, interval time.Duration) (float64, error)

type Collector struct {
	window time.Duration
	read   PercentReader
}

// NewCollector measures overall CPU usage across window. The call blocks
// for the window's duration.
func NewCollector(window time.Duration) *Collector {
	return &Collector{window: window, read: readPercent}
}

func NewCollectorWithReader(window time.Duration, read PercentReader) *Collector {
	return &Collector{window: window, read: read}
}

func (c *Collector) Collect(ctx context.Context) (float64, error) {
	return c.read(ctx, c.window)
}

func readPercent(ctx context.Context, interval time.Duration) (float64, error) {
	return firstPercent(cpu.PercentWithContext(ctx, interval, false))
}

// firstPercent picks the aggregate figure out of a non-per-CPU reading.
func firstPercent(percents []float64, err error) (float64, error) {
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, fmt.Errorf("no cpu percent reported")
	}
	return percents[0], nil
}
