package models

// CatalogEntry is a title known to the shared catalog, used only to suggest
// entries the user has not registered yet.
type CatalogEntry struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Season      string   `json:"season,omitempty"`
	Studios     []string `json:"studios"`
	Episodes    int      `json:"episodes,omitempty"`
	Description string   `json:"description,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
}
