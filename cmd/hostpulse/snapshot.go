package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"hostpulse/internal/metrics"

	"github.com/spf13/cobra"
)

func newSnapshotCmd(a *app) *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print a single metrics snapshot as JSON",
		Long: `Take one reading of the host and print it as JSON. Rates are derived
from two readings taken --window apart, so the command blocks for that long.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			source := metrics.NewHostSource(metrics.HostSourceConfig{
				DiskPath:              a.cfg.DiskPath,
				DiskMaxThroughputMBps: a.cfg.DiskMaxThroughputMBps,
			})

			ctx := cmd.Context()
			if _, err := source.Sample(ctx, time.Now()); err != nil {
				return err
			}

			select {
			case <-time.After(window):
			case <-ctx.Done():
				return ctx.Err()
			}

			snap, err := source.Sample(ctx, time.Now().UTC())
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), snap)
		},
	}

	cmd.Flags().DurationVar(&window, "window", time.Second, "Time between the baseline and the reported reading")

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
