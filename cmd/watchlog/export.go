package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	wsync "watchlog/internal/sync"
	"watchlog/pkg/models"
)

var exportHeader = []string{"id", "period", "title", "rating", "watched", "rewatch_count", "tags", "series", "studios"}

func (a *app) exportCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the collection as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *wsync.Session) error {
				if outPath == "" || outPath == "-" {
					return exportCSV(cmd.OutOrStdout(), s.Periods())
				}
				if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
					return err
				}
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()

				if err := exportCSV(f, s.Periods()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "✅ exported to %s\n", outPath)
				return f.Close()
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output CSV path (default stdout)")
	return cmd
}

// exportCSV writes one row per title in display order. List columns are
// joined with "|".
func exportCSV(w io.Writer, periods []models.Period) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, p := range periods {
		for _, t := range p.Titles {
			if err := cw.Write([]string{
				strconv.FormatInt(t.ID, 10),
				p.Label,
				t.Name,
				strconv.Itoa(t.Rating),
				strconv.FormatBool(t.Watched),
				strconv.Itoa(t.RewatchCount),
				strings.Join(t.Tags, "|"),
				t.SeriesName,
				strings.Join(t.Studios, "|"),
			}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
