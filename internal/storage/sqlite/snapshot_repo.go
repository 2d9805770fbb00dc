package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"hostpulse/internal/domain"
	"hostpulse/internal/logger"

	"github.com/c2h5oh/datasize"
)

const insertQuery = `
INSERT INTO resource_metrics (
	timestamp, cpu_percent, memory_percent,
	memory_used_mb, memory_total_mb,
	disk_percent, disk_used_gb, disk_total_gb,
	network_sent_mb, network_recv_mb,
	network_sent_rate_mbps, network_recv_rate_mbps
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectColumns = `id, timestamp, cpu_percent, memory_percent,
	memory_used_mb, memory_total_mb,
	disk_percent, disk_used_gb, disk_total_gb,
	network_sent_mb, network_recv_mb,
	network_sent_rate_mbps, network_recv_rate_mbps`

// SnapshotRepository persists snapshots in a sqlite file. Every operation
// holds the repository lock, opens its own handle and runs as a single
// transaction or statement.
type SnapshotRepository struct {
	path string
	log  logger.Logger
	mu   sync.Mutex
}

// NewSnapshotRepository creates the schema at path, failing fast when the
// file cannot be opened.
func NewSnapshotRepository(ctx context.Context, path string, log logger.Logger) (*SnapshotRepository, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty database path", domain.ErrInvalidConfig)
	}
	// The path goes into a file: URI verbatim.
	if strings.ContainsAny(path, "?#") {
		return nil, fmt.Errorf("%w: database path %q contains '?' or '#'", domain.ErrInvalidConfig, path)
	}

	r := &SnapshotRepository{path: path, log: log}
	if err := r.InitSchema(ctx); err != nil {
		return nil, err
	}

	log.Info("sqlite snapshot store ready", "path", path)
	return r, nil
}

func (r *SnapshotRepository) Path() string {
	return r.path
}

func (r *SnapshotRepository) InitSchema(ctx context.Context) error {
	return r.withDB(ctx, "init_schema", func(db *sql.DB) error {
		return runMigration(ctx, db)
	})
}

func (r *SnapshotRepository) Save(ctx context.Context, s domain.Snapshot) error {
	return r.withTx(ctx, "save", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertQuery, snapshotArgs(s)...); err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}
		return nil
	})
}

// SaveBatch writes all snapshots in one transaction. On failure nothing is
// written and 0 is reported. Empty input never touches the database.
func (r *SnapshotRepository) SaveBatch(ctx context.Context, snapshots []domain.Snapshot) (int, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}

	err := r.withTx(ctx, "save_batch", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for i, s := range snapshots {
			if _, err := stmt.ExecContext(ctx, snapshotArgs(s)...); err != nil {
				return fmt.Errorf("failed to insert snapshot %d of %d: %w", i+1, len(snapshots), err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(snapshots), nil
}

func (r *SnapshotRepository) Query(ctx context.Context, opts domain.QueryOptions) ([]domain.Snapshot, error) {
	query := "SELECT " + selectColumns + " FROM resource_metrics WHERE 1=1"
	args := []any{}

	if opts.Start != nil {
		query += " AND timestamp >= ?"
		args = append(args, opts.Start.UnixNano())
	}

	if opts.End != nil {
		query += " AND timestamp <= ?"
		args = append(args, opts.End.UnixNano())
	}

	query += " ORDER BY timestamp ASC, id ASC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	var records []domain.StoredRecord
	err := r.withDB(ctx, "query", func(db *sql.DB) error {
		var err error
		records, err = queryRecords(ctx, db, query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}

	return toSnapshots(records), nil
}

// Latest returns the n most recent snapshots in chronological order.
func (r *SnapshotRepository) Latest(ctx context.Context, n int) ([]domain.Snapshot, error) {
	if n <= 0 {
		return []domain.Snapshot{}, nil
	}

	query := "SELECT " + selectColumns + " FROM resource_metrics ORDER BY timestamp DESC, id DESC LIMIT ?"

	var records []domain.StoredRecord
	err := r.withDB(ctx, "latest", func(db *sql.DB) error {
		var err error
		records, err = queryRecords(ctx, db, query, n)
		return err
	})
	if err != nil {
		return nil, err
	}

	slices.Reverse(records)
	return toSnapshots(records), nil
}

func (r *SnapshotRepository) OldestTimestamp(ctx context.Context) (*time.Time, error) {
	return r.boundary(ctx, "oldest_timestamp", "SELECT MIN(timestamp) FROM resource_metrics")
}

func (r *SnapshotRepository) NewestTimestamp(ctx context.Context) (*time.Time, error) {
	return r.boundary(ctx, "newest_timestamp", "SELECT MAX(timestamp) FROM resource_metrics")
}

func (r *SnapshotRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.withDB(ctx, "count", func(db *sql.DB) error {
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM resource_metrics").Scan(&total); err != nil {
			return fmt.Errorf("failed to count snapshots: %w", err)
		}
		return nil
	})
	return total, err
}

// DeleteBefore removes records strictly older than cutoff and then
// reclaims file space.
func (r *SnapshotRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deleteAndVacuum(ctx, "delete_before", "DELETE FROM resource_metrics WHERE timestamp < ?", cutoff.UnixNano())
}

func (r *SnapshotRepository) DeleteAll(ctx context.Context) (int64, error) {
	return r.deleteAndVacuum(ctx, "delete_all", "DELETE FROM resource_metrics")
}

func (r *SnapshotRepository) Stats(ctx context.Context) (domain.StoreStats, error) {
	var stats domain.StoreStats

	err := r.withDB(ctx, "stats", func(db *sql.DB) error {
		var oldest, newest sql.NullInt64
		row := db.QueryRowContext(ctx, "SELECT COUNT(*), MIN(timestamp), MAX(timestamp) FROM resource_metrics")
		if err := row.Scan(&stats.TotalRecords, &oldest, &newest); err != nil {
			return fmt.Errorf("failed to read record range: %w", err)
		}
		stats.OldestTimestamp = nullTime(oldest)
		stats.NewestTimestamp = nullTime(newest)

		var size int64
		row = db.QueryRowContext(ctx, "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
		if err := row.Scan(&size); err != nil {
			return fmt.Errorf("failed to read database size: %w", err)
		}
		stats.ApproximateSize = datasize.ByteSize(size)

		return nil
	})
	if err != nil {
		return domain.StoreStats{}, err
	}

	return stats, nil
}

func (r *SnapshotRepository) boundary(ctx context.Context, op, query string) (*time.Time, error) {
	var ts sql.NullInt64
	err := r.withDB(ctx, op, func(db *sql.DB) error {
		if err := db.QueryRowContext(ctx, query).Scan(&ts); err != nil {
			return fmt.Errorf("failed to read timestamp: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nullTime(ts), nil
}

func (r *SnapshotRepository) deleteAndVacuum(ctx context.Context, op, query string, args ...any) (int64, error) {
	var deleted int64

	err := r.withDB(ctx, op, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to delete snapshots: %w", err)
		}

		deleted, err = result.RowsAffected()
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to retrieve affected rows: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit delete: %w", err)
		}

		// VACUUM cannot run inside a transaction. The delete is already
		// committed, so a failed vacuum only costs disk space.
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			r.log.Warn("failed to vacuum after delete", "op", op, "error", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.Debug("snapshots deleted", "op", op, "count", deleted)
	return deleted, nil
}

func (r *SnapshotRepository) withDB(ctx context.Context, op string, fn func(db *sql.DB) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	db, err := openDB(ctx, r.path)
	if err != nil {
		return &domain.StoreError{Op: op, Err: err}
	}
	defer db.Close()

	if err := fn(db); err != nil {
		return &domain.StoreError{Op: op, Err: err}
	}
	return nil
}

func (r *SnapshotRepository) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	return r.withDB(ctx, op, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := fn(tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.log.Error("failed to roll back transaction", "op", op, "error", rbErr)
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

func queryRecords(ctx context.Context, db *sql.DB, query string, args ...any) ([]domain.StoredRecord, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var records []domain.StoredRecord
	for rows.Next() {
		var rec domain.StoredRecord
		var ts int64
		if err := rows.Scan(
			&rec.ID, &ts, &rec.CPUPercent, &rec.MemoryPercent,
			&rec.MemoryUsedMB, &rec.MemoryTotalMB,
			&rec.DiskPercent, &rec.DiskUsedGB, &rec.DiskTotalGB,
			&rec.NetworkSentMB, &rec.NetworkRecvMB,
			&rec.NetworkSentRateMbps, &rec.NetworkRecvRateMbps,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		rec.Timestamp = time.Unix(0, ts).UTC()
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func snapshotArgs(s domain.Snapshot) []any {
	return []any{
		s.Timestamp.UnixNano(),
		s.CPUPercent,
		s.MemoryPercent,
		s.MemoryUsedMB,
		s.MemoryTotalMB,
		s.DiskPercent,
		s.DiskUsedGB,
		s.DiskTotalGB,
		s.NetworkSentMB,
		s.NetworkRecvMB,
		s.NetworkSentRateMbps,
		s.NetworkRecvRateMbps,
	}
}

func toSnapshots(records []domain.StoredRecord) []domain.Snapshot {
	out := make([]domain.Snapshot, len(records))
	for i, rec := range records {
		out[i] = rec.Snapshot
	}
	return out
}

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}

var _ domain.SnapshotRepository = (*SnapshotRepository)(nil)
