// Package sqlite
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS resource_metrics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	cpu_percent REAL NOT NULL,
	memory_percent REAL NOT NULL,
	memory_used_mb REAL NOT NULL,
	memory_total_mb REAL NOT NULL,
	disk_percent REAL NOT NULL,
	disk_used_gb REAL NOT NULL,
	disk_total_gb REAL NOT NULL,
	network_sent_mb REAL NOT NULL,
	network_recv_mb REAL NOT NULL,
	network_sent_rate_mbps REAL NOT NULL,
	network_recv_rate_mbps REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resource_metrics_timestamp ON resource_metrics(timestamp);
`

// openDB opens a short-lived handle. Callers close it when their
// operation ends; no connection is held between operations.
func openDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database not responding: %w", err)
	}

	return db, nil
}

func runMigration(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate resource_metrics table: %w", err)
	}
	return nil
}
