package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sdko-org/imgpress/internal/ingest"
	"github.com/sdko-org/imgpress/internal/models"
	"github.com/spf13/cobra"
)

func newCompressCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compress <file>...",
		Short: "Ingest local images and store compressed derivatives",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build(cmd)
			if err != nil {
				return err
			}

			var rows [][]string
			failed := 0
			for _, path := range args {
				report, err := a.compressFile(cmd, path)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					continue
				}
				rows = append(rows, []string{
					filepath.Base(path),
					report.ID,
					humanSize(report.OriginalSize),
					humanSize(report.CompressedSize),
					fmt.Sprintf("%.0f%%", report.CompressionRatio),
					fmt.Sprintf("%dx%d", report.CompressedDimensions.Width, report.CompressedDimensions.Height),
				})
			}

			if len(rows) > 0 {
				headers := []string{"Source", "ID", "Original", "Compressed", "Saved", "Size"}
				if err := renderTable(cmd.OutOrStdout(), headers, rows); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}

func (a *app) compressFile(cmd *cobra.Command, path string) (*models.TransformationReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, _ := br.Peek(512)

	report, err := a.ingest.Ingest(cmd.Context(), &ingest.Upload{
		Filename: filepath.Base(path),
		MimeType: http.DetectContentType(head),
		Content:  br,
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}
