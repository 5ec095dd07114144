package models

// Title is one watched work in a user's log.
//
// Rating is 0..5 where 0 means "unrated". Tags is never nil once a title has
// passed through the record mapper.
type Title struct {
	ID           int64       `json:"id"`
	Name         string      `json:"title"`
	Poster       string      `json:"img,omitempty"` // URI or a short placeholder such as an emoji
	Rating       int         `json:"rating"`
	Watched      bool        `json:"watched"`
	RewatchCount int         `json:"rewatchCount"`
	Tags         []string    `json:"tags"`
	SeriesName   string      `json:"series,omitempty"`
	Studios      []string    `json:"studios,omitempty"`
	ThemeSongs   *ThemeSongs `json:"songs,omitempty"`
	Quotes       []Quote     `json:"quotes,omitempty"`
}

type ThemeSongs struct {
	OP *ThemeSong `json:"op,omitempty"`
	ED *ThemeSong `json:"ed,omitempty"`
}

type ThemeSong struct {
	Title    string `json:"title"`
	Artist   string `json:"artist,omitempty"`
	Rating   int    `json:"rating,omitempty"`
	Favorite bool   `json:"isFavorite,omitempty"`
}

type Quote struct {
	Text      string `json:"text"`
	Character string `json:"character,omitempty"`
}

// Period is a broadcast-quarter bucket such as "2024年冬".
type Period struct {
	Label  string  `json:"name"`
	Titles []Title `json:"animes"`
}

// Character is an entry of the favorite-character list. It shares the
// sample-data seeding scheme with titles.
type Character struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Source string `json:"anime,omitempty"`
	Image  string `json:"img,omitempty"`
	Note   string `json:"note,omitempty"`
}

// Flatten returns every title of every period in load order.
func Flatten(periods []Period) []Title {
	n := 0
	for _, p := range periods {
		n += len(p.Titles)
	}
	out := make([]Title, 0, n)
	for _, p := range periods {
		out = append(out, p.Titles...)
	}
	return out
}

// ClonePeriods copies the bucket structure and every title slice so callers
// can hand the result out without exposing the original backing arrays.
func ClonePeriods(periods []Period) []Period {
	out := make([]Period, len(periods))
	for i, p := range periods {
		titles := make([]Title, len(p.Titles))
		for j, t := range p.Titles {
			titles[j] = t.Clone()
		}
		out[i] = Period{Label: p.Label, Titles: titles}
	}
	return out
}

// Clone returns a deep copy of t.
func (t Title) Clone() Title {
	c := t
	if t.Tags != nil {
		c.Tags = append([]string{}, t.Tags...)
	}
	if t.Studios != nil {
		c.Studios = append([]string{}, t.Studios...)
	}
	if t.Quotes != nil {
		c.Quotes = append([]Quote{}, t.Quotes...)
	}
	if t.ThemeSongs != nil {
		songs := ThemeSongs{}
		if t.ThemeSongs.OP != nil {
			op := *t.ThemeSongs.OP
			songs.OP = &op
		}
		if t.ThemeSongs.ED != nil {
			ed := *t.ThemeSongs.ED
			songs.ED = &ed
		}
		c.ThemeSongs = &songs
	}
	return c
}
