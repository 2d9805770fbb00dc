package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPruneCmd(a *app) *cobra.Command {
	var (
		before    string
		olderThan time.Duration
		all       bool
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stored snapshots and reclaim space",
		Example: `  hostpulse prune --older-than 168h
  hostpulse prune --before 2026-10-01T00:00:00Z
  hostpulse prune --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}

			var deleted int64
			switch {
			case all:
				deleted, err = store.DeleteAll(ctx)

			default:
				cutoff := time.Now().Add(-olderThan)
				if before != "" {
					t, perr := parseTimeFlag("before", before)
					if perr != nil {
						return perr
					}
					cutoff = *t
				}
				deleted, err = store.DeleteBefore(ctx, cutoff)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d snapshots\n", deleted)
			return nil
		},
	}

	cmd.Flags().StringVar(&before, "before", "", "Delete snapshots strictly older than this RFC3339 instant")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Delete snapshots older than this duration")
	cmd.Flags().BoolVar(&all, "all", false, "Delete every snapshot")
	cmd.MarkFlagsMutuallyExclusive("before", "older-than", "all")
	cmd.MarkFlagsOneRequired("before", "older-than", "all")

	return cmd
}
