package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"watchlog/internal/record"
	"watchlog/pkg/database"
	"watchlog/pkg/models"
)

var (
	ErrConflict = errors.New("title id already exists")
	ErrNotFound = errors.New("title not found")
)

// FieldError rejects one column of a partial update.
type FieldError struct {
	Column string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Column, e.Reason)
}

// Repo stores title rows. tags, songs, quotes and studios are JSON text
// columns; NULL means absent.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const titleColumns = `id, user_id, season, title, img, rating, watched, rewatch_count,
	tags, songs, quotes, series_name, studios, updated_at`

// SelectAll returns every row owned by ownerID in insertion order.
func (r *Repo) SelectAll(ctx context.Context, ownerID string) ([]models.TitleRow, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+titleColumns+`
		FROM titles
		WHERE user_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("select titles: %w", err)
	}
	defer rows.Close()

	out := make([]models.TitleRow, 0)
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) Get(ctx context.Context, id int64, ownerID string) (*models.TitleRow, error) {
	row, err := scanRow(r.DB.QueryRowContext(ctx, `
		SELECT `+titleColumns+`
		FROM titles
		WHERE user_id = ? AND id = ?
	`, ownerID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (models.TitleRow, error) {
	var (
		row                          models.TitleRow
		img, series                  sql.NullString
		rating                       sql.NullInt64
		rewatch                      int
		tags, songs, quotes, studios sql.NullString
		updated                      time.Time
	)
	if err := s.Scan(&row.ID, &row.UserID, &row.Season, &row.Title, &img, &rating, &row.Watched,
		&rewatch, &tags, &songs, &quotes, &series, &studios, &updated); err != nil {
		return row, fmt.Errorf("scan title row: %w", err)
	}
	if img.Valid {
		row.Img = &img.String
	}
	if series.Valid {
		row.SeriesName = &series.String
	}
	if rating.Valid {
		v := int(rating.Int64)
		row.Rating = &v
	}
	row.RewatchCount = &rewatch
	row.UpdatedAt = updated

	// Broken JSON in a column is dropped; the record mapper defaults it.
	decodeColumn(tags, &row.Tags)
	decodeColumn(studios, &row.Studios)
	decodeColumn(quotes, &row.Quotes)
	decodeColumn(songs, &row.Songs)
	return row, nil
}

func decodeColumn(s sql.NullString, v any) {
	if !s.Valid || s.String == "" {
		return
	}
	_ = json.Unmarshal([]byte(s.String), v)
}

// Insert stores a new row. The pair (user_id, id) must be unused.
func (r *Repo) Insert(ctx context.Context, row models.TitleRow) error {
	cols := record.Columns(row)
	args := []any{row.ID, row.UserID}
	for _, col := range record.WritableColumns {
		v, err := encode(col, cols[col])
		if err != nil {
			return err
		}
		args = append(args, v)
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO titles (id, user_id, `+strings.Join(record.WritableColumns, ", ")+`)
		VALUES (?, ?`+strings.Repeat(", ?", len(record.WritableColumns))+`)
	`, args...)
	if err != nil {
		if database.IsConflict(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert title: %w", err)
	}
	return nil
}

// Update writes only the given columns. Unknown columns or values of the
// wrong shape yield a *FieldError and nothing is written.
func (r *Repo) Update(ctx context.Context, id int64, ownerID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	var (
		sets []string
		args []any
	)
	for _, col := range record.WritableColumns {
		raw, ok := fields[col]
		if !ok {
			continue
		}
		v, err := encode(col, raw)
		if err != nil {
			return err
		}
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if len(sets) != len(fields) {
		for col := range fields {
			if !isWritable(col) {
				return &FieldError{Column: col, Reason: "not writable"}
			}
		}
	}
	args = append(args, ownerID, id)

	res, err := r.DB.ExecContext(ctx, `
		UPDATE titles
		SET `+strings.Join(sets, ", ")+`, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND id = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("update title: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id int64, ownerID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM titles
		WHERE user_id = ? AND id = ?
	`, ownerID, id)
	if err != nil {
		return false, fmt.Errorf("delete title: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func isWritable(col string) bool {
	for _, c := range record.WritableColumns {
		if c == col {
			return true
		}
	}
	return false
}

// encode turns a column value, either typed (from record.Columns) or decoded
// from a JSON body, into its SQL argument.
func encode(col string, v any) (any, error) {
	bad := func(reason string) error { return &FieldError{Column: col, Reason: reason} }

	switch col {
	case record.ColSeason:
		s, ok := v.(string)
		if !ok {
			return nil, bad("must be a string")
		}
		return strings.TrimSpace(s), nil

	case record.ColTitle:
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, bad("must be a non-empty string")
		}
		return s, nil

	case record.ColImg, record.ColSeriesName:
		if v == nil {
			return nil, nil
		}
		s, ok := v.(string)
		if !ok {
			return nil, bad("must be a string or null")
		}
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		return s, nil

	case record.ColRating:
		if v == nil {
			return nil, nil
		}
		n, ok := toInt(v)
		if !ok {
			return nil, bad("must be an integer or null")
		}
		if n == 0 {
			return nil, nil
		}
		if n < 1 || n > 5 {
			return nil, bad("must be between 1 and 5")
		}
		return n, nil

	case record.ColRewatchCount:
		if v == nil {
			return 0, nil
		}
		n, ok := toInt(v)
		if !ok || n < 0 {
			return nil, bad("must be a non-negative integer")
		}
		return n, nil

	case record.ColWatched:
		b, ok := v.(bool)
		if !ok {
			return nil, bad("must be a boolean")
		}
		return b, nil

	case record.ColTags, record.ColStudios, record.ColQuotes, record.ColSongs:
		return encodeJSON(col, v)
	}
	return nil, bad("not writable")
}

func encodeJSON(col string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, &FieldError{Column: col, Reason: "not encodable"}
	}
	if s := string(b); s == "null" || s == "[]" || s == "{}" {
		return nil, nil
	}
	if err := checkShape(col, b); err != nil {
		return nil, err
	}
	return string(b), nil
}

// checkShape makes sure JSON columns decode into their model types, so a
// bad PATCH cannot poison later reads.
func checkShape(col string, b []byte) error {
	var err error
	switch col {
	case record.ColTags, record.ColStudios:
		var out []string
		err = json.Unmarshal(b, &out)
	case record.ColQuotes:
		var out []models.Quote
		err = json.Unmarshal(b, &out)
	case record.ColSongs:
		var out models.ThemeSongs
		err = json.Unmarshal(b, &out)
	}
	if err != nil {
		return &FieldError{Column: col, Reason: "has the wrong shape"}
	}
	return nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}
