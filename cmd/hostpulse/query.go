package main

import (
	"fmt"
	"time"

	"hostpulse/internal/domain"

	"github.com/spf13/cobra"
)

func newQueryCmd(a *app) *cobra.Command {
	var (
		start, end string
		limit      int
		recent     int
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print stored snapshots as JSON",
		Example: `  hostpulse query --start 2026-10-16T00:00:00Z --limit 100
  hostpulse query --recent 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("recent") {
				snaps, err := store.Latest(ctx, recent)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), snaps)
			}

			opts := domain.QueryOptions{Limit: limit}
			if opts.Start, err = parseTimeFlag("start", start); err != nil {
				return err
			}
			if opts.End, err = parseTimeFlag("end", end); err != nil {
				return err
			}

			snaps, err := store.Query(ctx, opts)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), snaps)
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Inclusive lower bound (RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "Inclusive upper bound (RFC3339)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of snapshots (0 for no limit)")
	cmd.Flags().IntVar(&recent, "recent", 0, "Print the N most recent snapshots instead of a range")
	cmd.MarkFlagsMutuallyExclusive("recent", "start")
	cmd.MarkFlagsMutuallyExclusive("recent", "end")

	return cmd
}

func parseTimeFlag(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("--%s must be an RFC3339 timestamp: %w", name, err)
	}
	return &t, nil
}
