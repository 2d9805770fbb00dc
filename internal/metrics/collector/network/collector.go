// Package network
package network

import (
	"context"
	"fmt"
	"time"

	"hostpulse/internal/metrics/collector/rate"

	"github.com/shirou/gopsutil/net"
)

const mib = 1024 * 1024

// Rates are Mbit/s in binary units (2^20 bits), matching the MiB totals.
type NetworkMetric struct {
	SentMB       float64
	RecvMB       float64
	SentRateMbps float64
	RecvRateMbps float64
}

// TotalsReader returns cumulative bytes sent and received since boot.
type TotalsReader func(ctx context.Context) (sent, recv uint64, err error)

type Collector struct {
	read TotalsReader
	sent rate.Counter
	recv rate.Counter
}

func NewCollector() *Collector {
	return &Collector{read: readTotals}
}

func NewCollectorWithReader(read TotalsReader) *Collector {
	return &Collector{read: read}
}

// Collect is not safe for concurrent use; the counters belong to the one
// sampling goroutine.
func (c *Collector) Collect(ctx context.Context, at time.Time) (NetworkMetric, error) {
	sent, recv, err := c.read(ctx)
	if err != nil {
		return NetworkMetric{}, err
	}

	return NetworkMetric{
		SentMB:       float64(sent) / mib,
		RecvMB:       float64(recv) / mib,
		SentRateMbps: c.sent.Update(sent, at) / mib * 8,
		RecvRateMbps: c.recv.Update(recv, at) / mib * 8,
	}, nil
}

func readTotals(ctx context.Context) (uint64, uint64, error) {
	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return 0, 0, err
	}
	if len(counters) == 0 {
		return 0, 0, fmt.Errorf("no network counters reported")
	}
	return counters[0].BytesSent, counters[0].BytesRecv, nil
}
