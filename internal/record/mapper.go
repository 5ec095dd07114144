// Package record converts between the flat storage row of a title and the
// in-memory entity. Every function here is total: malformed input is
// defaulted, never rejected.
package record

import (
	"reflect"
	"strings"

	"watchlog/pkg/models"
)

// Column names of the titles table that may be written field-by-field.
const (
	ColSeason       = "season"
	ColTitle        = "title"
	ColImg          = "img"
	ColRating       = "rating"
	ColWatched      = "watched"
	ColRewatchCount = "rewatch_count"
	ColTags         = "tags"
	ColSongs        = "songs"
	ColQuotes       = "quotes"
	ColSeriesName   = "series_name"
	ColStudios      = "studios"
)

// WritableColumns lists the columns a partial update may touch, in a stable order.
var WritableColumns = []string{
	ColSeason, ColTitle, ColImg, ColRating, ColWatched, ColRewatchCount,
	ColTags, ColSongs, ColQuotes, ColSeriesName, ColStudios,
}

// ToEntity maps a stored row onto a Title. Absent rewatch counts become 0,
// absent tags become an empty slice and a null or out-of-range rating becomes 0.
func ToEntity(row models.TitleRow) models.Title {
	t := models.Title{
		ID:      row.ID,
		Name:    row.Title,
		Watched: row.Watched,
		Tags:    []string{},
	}
	if row.Img != nil {
		t.Poster = *row.Img
	}
	if row.Rating != nil && *row.Rating >= 1 && *row.Rating <= 5 {
		t.Rating = *row.Rating
	}
	if row.RewatchCount != nil && *row.RewatchCount > 0 {
		t.RewatchCount = *row.RewatchCount
	}
	if len(row.Tags) > 0 {
		t.Tags = append(t.Tags, row.Tags...)
	}
	if row.SeriesName != nil {
		t.SeriesName = strings.TrimSpace(*row.SeriesName)
	}
	if len(row.Studios) > 0 {
		t.Studios = append([]string{}, row.Studios...)
	}
	if row.Songs != nil && (row.Songs.OP != nil || row.Songs.ED != nil) {
		t.ThemeSongs = cloneSongs(row.Songs)
	}
	if len(row.Quotes) > 0 {
		t.Quotes = append([]models.Quote{}, row.Quotes...)
	}
	return t
}

// ToRow maps a Title onto its storage row for the given period and owner.
// Rating 0 is stored as null and empty sequences are stored as null to keep
// the table sparse.
func ToRow(t models.Title, periodLabel, ownerID string) models.TitleRow {
	row := models.TitleRow{
		ID:      t.ID,
		UserID:  ownerID,
		Season:  periodLabel,
		Title:   t.Name,
		Watched: t.Watched,
	}
	if t.Poster != "" {
		row.Img = ptr(t.Poster)
	}
	if t.Rating >= 1 && t.Rating <= 5 {
		row.Rating = ptr(t.Rating)
	}
	rewatch := t.RewatchCount
	if rewatch < 0 {
		rewatch = 0
	}
	row.RewatchCount = ptr(rewatch)
	if len(t.Tags) > 0 {
		row.Tags = append([]string{}, t.Tags...)
	}
	if name := strings.TrimSpace(t.SeriesName); name != "" {
		row.SeriesName = ptr(name)
	}
	if len(t.Studios) > 0 {
		row.Studios = append([]string{}, t.Studios...)
	}
	if t.ThemeSongs != nil && (t.ThemeSongs.OP != nil || t.ThemeSongs.ED != nil) {
		row.Songs = cloneSongs(t.ThemeSongs)
	}
	if len(t.Quotes) > 0 {
		row.Quotes = append([]models.Quote{}, t.Quotes...)
	}
	return row
}

// Columns returns the writable column values of row keyed by column name.
// Null columns map to nil.
func Columns(row models.TitleRow) map[string]any {
	cols := map[string]any{
		ColSeason:  row.Season,
		ColTitle:   row.Title,
		ColWatched: row.Watched,
	}
	cols[ColImg] = derefOrNil(row.Img)
	cols[ColRating] = derefOrNil(row.Rating)
	cols[ColRewatchCount] = derefOrNil(row.RewatchCount)
	cols[ColSeriesName] = derefOrNil(row.SeriesName)
	cols[ColTags] = sliceOrNil(row.Tags)
	cols[ColStudios] = sliceOrNil(row.Studios)
	cols[ColQuotes] = sliceOrNil(row.Quotes)
	if row.Songs != nil {
		cols[ColSongs] = row.Songs
	} else {
		cols[ColSongs] = nil
	}
	return cols
}

// Diff returns only the columns whose values differ between before and after.
// The result is the payload of a per-field remote update.
func Diff(before, after models.TitleRow) map[string]any {
	a, b := Columns(before), Columns(after)
	out := make(map[string]any)
	for _, col := range WritableColumns {
		if !reflect.DeepEqual(a[col], b[col]) {
			out[col] = b[col]
		}
	}
	return out
}

func cloneSongs(s *models.ThemeSongs) *models.ThemeSongs {
	out := &models.ThemeSongs{}
	if s.OP != nil {
		op := *s.OP
		out.OP = &op
	}
	if s.ED != nil {
		ed := *s.ED
		out.ED = &ed
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func derefOrNil[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func sliceOrNil[T any](s []T) any {
	if len(s) == 0 {
		return nil
	}
	return s
}
