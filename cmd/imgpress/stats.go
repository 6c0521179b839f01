package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show totals and recent activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build(cmd)
			if err != nil {
				return err
			}
			summary, err := a.analytics.Summary(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			s := summary.Summary
			fmt.Fprintf(out, "Total images: %d\n", s.TotalImages)
			fmt.Fprintf(out, "Total size:   %s\n", humanSize(s.TotalSize))
			fmt.Fprintf(out, "Average size: %s\n", humanSize(int64(s.AverageSize)))
			if len(summary.RecentActivity) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Recent activity:")
			return renderTable(out, descriptorHeaders, descriptorRows(summary.RecentActivity))
		},
	}
}
