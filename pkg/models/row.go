package models

import "time"

// TitleRow is the flat storage shape of a title as the remote store keeps it.
// Nullable columns are pointers or nil slices.
type TitleRow struct {
	ID           int64       `json:"id"`
	UserID       string      `json:"user_id"`
	Season       string      `json:"season"`
	Title        string      `json:"title"`
	Img          *string     `json:"img"`
	Rating       *int        `json:"rating"`
	Watched      bool        `json:"watched"`
	RewatchCount *int        `json:"rewatch_count"`
	Tags         []string    `json:"tags"`
	Songs        *ThemeSongs `json:"songs"`
	Quotes       []Quote     `json:"quotes"`
	SeriesName   *string     `json:"series_name"`
	Studios      []string    `json:"studios"`
	UpdatedAt    time.Time   `json:"updated_at,omitzero"`
}
