package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/c2h5oh/datasize"
)

var (
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrSourceUnavailable = errors.New("metrics source unavailable")
	ErrStorage           = errors.New("storage failure")
	ErrStorageDisabled   = errors.New("durable storage is disabled")
)

// Snapshot is one point-in-time reading of host resources. Values are
// passed through exactly as the source produced them; nothing here clamps
// or validates ranges.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	CPUPercent float64 `json:"cpu_percent"`

	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`

	// DiskPercent is derived from I/O activity, not from space usage.
	DiskPercent float64 `json:"disk_percent"`
	DiskUsedGB  float64 `json:"disk_used_gb"`
	DiskTotalGB float64 `json:"disk_total_gb"`

	NetworkSentMB       float64 `json:"network_sent_mb"`
	NetworkRecvMB       float64 `json:"network_recv_mb"`
	NetworkSentRateMbps float64 `json:"network_sent_rate_mbps"`
	NetworkRecvRateMbps float64 `json:"network_recv_rate_mbps"`
}

// StoredRecord is a Snapshot as kept by a repository. ID never leaves the
// storage layer's callers that explicitly ask for records.
type StoredRecord struct {
	ID int64 `json:"id"`
	Snapshot
}

// StoreStats always carries every field; a store without records reports
// nil timestamps.
type StoreStats struct {
	TotalRecords    int64             `json:"total_records"`
	OldestTimestamp *time.Time        `json:"oldest_timestamp"`
	NewestTimestamp *time.Time        `json:"newest_timestamp"`
	ApproximateSize datasize.ByteSize `json:"approximate_size"`
}

// QueryOptions bounds a time-range scan. Nil bounds are open; a zero
// Limit means no limit.
type QueryOptions struct {
	Start *time.Time
	End   *time.Time
	Limit int
}

// MetricsSource produces a Snapshot stamped with the given instant.
type MetricsSource interface {
	Sample(ctx context.Context, at time.Time) (Snapshot, error)
}

type BatchSaver interface {
	SaveBatch(ctx context.Context, snapshots []Snapshot) (int, error)
}

type SnapshotRepository interface {
	BatchSaver

	InitSchema(ctx context.Context) error
	Save(ctx context.Context, s Snapshot) error
	Query(ctx context.Context, opts QueryOptions) ([]Snapshot, error)
	Latest(ctx context.Context, n int) ([]Snapshot, error)
	OldestTimestamp(ctx context.Context) (*time.Time, error)
	NewestTimestamp(ctx context.Context) (*time.Time, error)
	Count(ctx context.Context) (int64, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (StoreStats, error)
}

// MetricsService is the read side offered to consumers: live data from
// the in-memory history, historical data from the repository.
type MetricsService interface {
	Latest() (Snapshot, error)
	History() []Snapshot
	Query(ctx context.Context, opts QueryOptions) ([]Snapshot, error)
	Recent(ctx context.Context, n int) ([]Snapshot, error)
	Stats(ctx context.Context) (StoreStats, error)
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
	PruneAll(ctx context.Context) (int64, error)
}

// StoreError is returned by every repository operation that fails inside
// the storage engine.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStorage
}
