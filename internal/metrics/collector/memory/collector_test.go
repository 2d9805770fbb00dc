package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectConvertsToMB(t *testing.T) {
	c := NewCollectorWithReader(func(ctx context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{
			Total:       8 << 30,
			Used:        2 << 30,
			UsedPercent: 25,
		}, nil
	})

	m, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MemoryMetric{Percent: 25, UsedMB: 2048, TotalMB: 8192}, m)
}

func TestCollectPropagatesReaderError(t *testing.T) {
	c := NewCollectorWithReader(func(ctx context.Context) (*mem.VirtualMemoryStat, error) {
		return nil, errors.New("meminfo unreadable")
	})

	m, err := c.Collect(context.Background())
	assert.EqualError(t, err, "meminfo unreadable")
	assert.Zero(t, m)
}
