package sync

import "time"

const (
	EventTitleCreate = "title.create"
	EventTitleUpdate = "title.update"
	EventTitleDelete = "title.delete"
)

// TitleEvent is pushed to live feed subscribers after a remote-store mutation.
type TitleEvent struct {
	Type    string         `json:"type"`
	UserID  string         `json:"user_id"`
	TitleID int64          `json:"title_id"`
	Season  string         `json:"season,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
	At      time.Time      `json:"at"`
}
