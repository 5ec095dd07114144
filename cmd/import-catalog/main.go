package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"watchlog/internal/catalog"
	"watchlog/internal/logging"
	"watchlog/internal/period"
	"watchlog/pkg/database"
	"watchlog/pkg/models"
	"watchlog/pkg/utils"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		in         = flag.String("in", "data/catalog.csv", "input CSV path for catalog entries")
	)
	flag.Parse()

	cfg, err := utils.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: "console"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.Config{Path: cfg.DB.Path})
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logging.Fatal().Err(err).Msg("db migrate failed")
	}

	f, err := os.Open(*in)
	if err != nil {
		logging.Fatal().Err(err).Str("path", *in).Msg("open catalog csv")
	}
	defer f.Close()

	n, err := importCatalog(ctx, catalog.NewRepo(db), f)
	if err != nil {
		logging.Fatal().Err(err).Str("path", *in).Msg("import catalog failed")
	}
	logging.Info().Int("entries", n).Str("path", *in).Msg("imported catalog")
}

// importCatalog upserts every row of a CSV with the header
// id,title,season,studios,episodes,description,cover_url. studios is
// separated by "|". Rows without id or title are skipped.
func importCatalog(ctx context.Context, repo *catalog.Repo, src io.Reader) (int, error) {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}

	n := 0
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, err
		}
		if len(row) == 0 {
			continue
		}

		e := models.CatalogEntry{
			ID:          valueAt(header, row, "id"),
			Title:       valueAt(header, row, "title"),
			Season:      valueAt(header, row, "season"),
			Studios:     splitList(valueAt(header, row, "studios")),
			Description: valueAt(header, row, "description"),
			CoverURL:    valueAt(header, row, "cover_url"),
		}
		if e.ID == "" || e.Title == "" {
			logging.Warn().Int("line", line).Msg("skipping row without id or title")
			continue
		}
		if e.Season != "" {
			if _, ok := period.Parse(e.Season); !ok {
				logging.Warn().Int("line", line).Str("season", e.Season).Msg("season is not a period label")
			}
		}
		if raw := valueAt(header, row, "episodes"); raw != "" {
			eps, err := strconv.Atoi(raw)
			if err != nil {
				return n, fmt.Errorf("parse episodes for %s: %w", e.ID, err)
			}
			e.Episodes = eps
		}

		if err := repo.Upsert(ctx, e); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, "|") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
