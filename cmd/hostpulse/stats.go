package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the stored history",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "database\t%s\n", store.Path())
			fmt.Fprintf(w, "records\t%d\n", stats.TotalRecords)
			fmt.Fprintf(w, "oldest\t%s\n", formatOptionalTime(stats.OldestTimestamp))
			fmt.Fprintf(w, "newest\t%s\n", formatOptionalTime(stats.NewestTimestamp))
			fmt.Fprintf(w, "size\t%s\n", stats.ApproximateSize.HumanReadable())
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}
