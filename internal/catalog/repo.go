package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"watchlog/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

type ListQuery struct {
	Q       string   // keyword search in title
	Studios []string // any-match
	Season  string   // exact period label
	Limit   int
	Offset  int
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const entryColumns = `id, title, season, studios, episodes, description, cover_url`

func scanEntry(s interface{ Scan(...any) error }) (models.CatalogEntry, error) {
	var (
		e           models.CatalogEntry
		season      sql.NullString
		studiosJSON string
		episodes    sql.NullInt64
		description sql.NullString
		coverURL    sql.NullString
	)
	if err := s.Scan(&e.ID, &e.Title, &season, &studiosJSON, &episodes, &description, &coverURL); err != nil {
		return e, err
	}
	e.Season = season.String
	if episodes.Valid {
		e.Episodes = int(episodes.Int64)
	}
	e.Description = description.String
	e.CoverURL = coverURL.String

	_ = json.Unmarshal([]byte(studiosJSON), &e.Studios)
	if e.Studios == nil {
		e.Studios = []string{}
	}
	return e, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.CatalogEntry, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM catalog WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan getByID: %w", err)
	}
	return &e, nil
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	var total int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.CatalogEntry, error) {
	sqlStr, args := buildListSQL(q, false)

	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.CatalogEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// Upsert inserts or replaces an entry by id.
func (r *Repo) Upsert(ctx context.Context, e models.CatalogEntry) error {
	studios := e.Studios
	if studios == nil {
		studios = []string{}
	}
	studiosJSON, err := json.Marshal(studios)
	if err != nil {
		return fmt.Errorf("encode studios: %w", err)
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO catalog (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			season = excluded.season,
			studios = excluded.studios,
			episodes = excluded.episodes,
			description = excluded.description,
			cover_url = excluded.cover_url
	`, e.ID, e.Title, nullIfEmpty(e.Season), string(studiosJSON), nullIfZero(e.Episodes),
		nullIfEmpty(e.Description), nullIfEmpty(e.CoverURL))
	if err != nil {
		return fmt.Errorf("upsert catalog entry: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func nullIfZero(n int) any {
	if n <= 0 {
		return nil
	}
	return n
}

// buildListSQL builds either COUNT(*) or SELECT list.
// The studio filter is any-match via LIKE on the stored JSON text.
func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	sqlStr := `SELECT ` + entryColumns + ` FROM catalog`
	if countOnly {
		sqlStr = `SELECT COUNT(*) FROM catalog`
	}

	var where []string
	var args []any

	if kw := strings.TrimSpace(q.Q); kw != "" {
		where = append(where, "LOWER(title) LIKE ?")
		args = append(args, "%"+strings.ToLower(kw)+"%")
	}

	if s := strings.TrimSpace(q.Season); s != "" {
		where = append(where, "season = ?")
		args = append(args, s)
	}

	var studioOr []string
	for _, s := range q.Studios {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		studioOr = append(studioOr, "LOWER(studios) LIKE ?")
		args = append(args, "%"+strings.ToLower(s)+"%")
	}
	if len(studioOr) > 0 {
		where = append(where, "("+strings.Join(studioOr, " OR ")+")")
	}

	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		limit := q.Limit
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		offset := max(q.Offset, 0)
		sqlStr += " ORDER BY title ASC LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	return sqlStr, args
}
