package main

import (
	"fmt"
	"io"
	"time"

	"github.com/inhies/go-bytesize"
	"github.com/pterm/pterm"
	"github.com/sdko-org/imgpress/internal/models"
)

func renderTable(out io.Writer, headers []string, rows [][]string) error {
	data := pterm.TableData{headers}
	data = append(data, rows...)
	s, err := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed(true).
		WithData(data).
		Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, s)
	return err
}

func humanSize(n int64) string {
	return bytesize.New(float64(n)).String()
}

func descriptorRows(descs []models.ImageDescriptor) [][]string {
	rows := make([][]string, 0, len(descs))
	for _, d := range descs {
		rows = append(rows, []string{
			d.Filename,
			humanSize(d.Size),
			d.CreatedAt.Local().Format(time.DateTime),
			d.URL,
		})
	}
	return rows
}

var descriptorHeaders = []string{"Filename", "Size", "Created", "URL"}
