// Package series groups a flat title collection into multi-season series and
// standalone entries.
//
// Grouping is a pure view: it is recomputed from the input on every call and
// never mutates it.
package series

import (
	"cmp"
	"slices"
	"strings"

	"watchlog/pkg/models"
)

// Series is a set of at least two titles sharing a series name, ordered by
// extracted ordinal and then by load order.
type Series struct {
	Key     string         `json:"key"`
	Members []models.Title `json:"members"`
}

type Result struct {
	Series     []Series       `json:"series"`
	Standalone []models.Title `json:"standalone"`
}

type entry struct {
	title  models.Title
	pos    int
	ord    int
	hasOrd bool
}

// Group partitions the titles of periods, using the period order and the
// position inside each period as load order.
func Group(periods []models.Period) Result {
	return GroupTitles(models.Flatten(periods))
}

// GroupTitles partitions titles given in load order.
func GroupTitles(titles []models.Title) Result {
	var (
		keys       []string
		buckets    = make(map[string][]entry)
		standalone []entry
	)

	for i, t := range titles {
		e := entry{title: t, pos: i}
		key := strings.TrimSpace(t.SeriesName)
		if key == "" {
			standalone = append(standalone, e)
			continue
		}
		if _, seen := buckets[key]; !seen {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], e)
	}

	res := Result{Series: []Series{}}
	for _, key := range keys {
		members := buckets[key]
		if len(members) < 2 {
			standalone = append(standalone, members...)
			continue
		}
		for i := range members {
			members[i].ord, members[i].hasOrd = Ordinal(members[i].title.Name)
		}
		slices.SortStableFunc(members, compareMembers)

		s := Series{Key: key, Members: make([]models.Title, len(members))}
		for i, m := range members {
			s.Members[i] = m.title
		}
		res.Series = append(res.Series, s)
	}

	slices.SortStableFunc(standalone, func(a, b entry) int { return cmp.Compare(a.pos, b.pos) })
	res.Standalone = make([]models.Title, len(standalone))
	for i, e := range standalone {
		res.Standalone[i] = e.title
	}
	return res
}

func compareMembers(a, b entry) int {
	switch {
	case a.hasOrd && b.hasOrd:
		return cmp.Compare(a.ord, b.ord)
	case a.hasOrd:
		return -1
	case b.hasOrd:
		return 1
	}
	return cmp.Compare(a.pos, b.pos)
}
