package sync

import (
	"strings"

	"watchlog/internal/period"
	"watchlog/internal/record"
	"watchlog/pkg/models"
)

// BucketRows maps storage rows to titles and groups them by their period
// label in display order. Rows without a label land in period.Unclassified.
func BucketRows(rows []models.TitleRow) []models.Period {
	var out []models.Period
	index := make(map[string]int)
	for _, row := range rows {
		label := strings.TrimSpace(row.Season)
		if label == "" {
			label = period.Unclassified
		}
		i, ok := index[label]
		if !ok {
			i = len(out)
			index[label] = i
			out = append(out, models.Period{Label: label})
		}
		out[i].Titles = append(out[i].Titles, record.ToEntity(row))
	}
	period.Sort(out)
	return out
}

// normalize merges buckets sharing a label, drops empty ones, defaults every
// title through the record mapper and sorts the result.
func normalize(periods []models.Period) []models.Period {
	var rows []models.TitleRow
	for _, p := range periods {
		for _, t := range p.Titles {
			rows = append(rows, record.ToRow(t, p.Label, ""))
		}
	}
	return BucketRows(rows)
}
