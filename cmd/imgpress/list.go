package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List compressed images in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build(cmd)
			if err != nil {
				return err
			}
			descs, err := a.scanner.Scan(cmd.Context())
			if err != nil {
				return err
			}
			if len(descs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No images")
				return nil
			}
			return renderTable(cmd.OutOrStdout(), descriptorHeaders, descriptorRows(descs))
		},
	}
}
