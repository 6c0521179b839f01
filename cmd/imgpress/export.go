package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sdko-org/imgpress/internal/models"
	"github.com/sdko-org/imgpress/internal/storage"
	"github.com/spf13/cobra"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <id> <dest>",
		Short: "Copy a compressed image out of the store",
		Long: "Copies compressed-<id> to dest. dest may be a file, an existing " +
			"directory, or - for standard output.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build(cmd)
			if err != nil {
				return err
			}

			id, dest := args[0], args[1]
			if !storage.ValidName(id) {
				return fmt.Errorf("invalid id %q", id)
			}
			name := id
			if !models.IsCompressed(name) {
				name = models.CompressedName(id)
			}

			rc, err := a.store.Get(cmd.Context(), name)
			if err != nil {
				return err
			}
			defer rc.Close()

			if dest == "-" {
				_, err = io.Copy(cmd.OutOrStdout(), rc)
				return err
			}

			if fi, err := os.Stat(dest); err == nil && fi.IsDir() {
				dest = filepath.Join(dest, name)
			}
			n, err := writeFile(dest, rc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s (%s) to %s\n", name, humanSize(n), dest)
			return nil
		},
	}
}

func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return n, nil
}
