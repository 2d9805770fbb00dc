package main

import (
	"context"
	"fmt"

	"hostpulse/internal/config"
	"hostpulse/internal/logger"
	"hostpulse/internal/storage/sqlite"

	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once flags and environment are
// resolved.
type app struct {
	cfg *config.Config
	log logger.Logger

	dbPath   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "hostpulse",
		Short: "Host metrics sampler with durable history",
		Long: `hostpulse samples CPU, memory, disk and network usage at a fixed
interval, keeps a bounded in-memory history and persists every snapshot
to a local SQLite database in batches.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (overrides DATABASE_PATH)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides LOG_LEVEL)")

	root.AddCommand(
		newRunCmd(a),
		newSnapshotCmd(a),
		newQueryCmd(a),
		newStatsCmd(a),
		newPruneCmd(a),
	)

	return root
}

func (a *app) load() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if a.dbPath != "" {
		cfg.DatabasePath = a.dbPath
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.log = logger.New(cfg)
	return nil
}

// openStore is used by the offline subcommands, which read the database
// directly without running a sampler.
func (a *app) openStore(ctx context.Context) (*sqlite.SnapshotRepository, error) {
	if a.cfg.DatabasePath == "" {
		return nil, fmt.Errorf("no database path configured")
	}
	return sqlite.NewSnapshotRepository(ctx, a.cfg.DatabasePath, a.log.With("component", "store"))
}
