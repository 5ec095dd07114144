// Package stats derives aggregate figures from a title collection. All
// reducers are pure and accept an empty collection.
package stats

import (
	"slices"

	"watchlog/internal/period"
	"watchlog/pkg/models"
)

// Count is one entry of a frequency table.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Distribution counts titles per rating 1..5. Counts[0] is unused so that
// Counts[r] is the number of titles rated r.
type Distribution struct {
	Counts [6]int `json:"counts"`
	Max    int    `json:"max"`
}

// RatedAverage is the mean of all positive ratings, or 0 when none exist.
func RatedAverage(titles []models.Title) float64 {
	sum, n := 0, 0
	for _, t := range titles {
		if t.Rating > 0 {
			sum += t.Rating
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// TotalRewatches sums rewatch counts, ignoring negative values.
func TotalRewatches(titles []models.Title) int {
	total := 0
	for _, t := range titles {
		if t.RewatchCount > 0 {
			total += t.RewatchCount
		}
	}
	return total
}

// WatchedCount counts titles marked as watched.
func WatchedCount(titles []models.Title) int {
	n := 0
	for _, t := range titles {
		if t.Watched {
			n++
		}
	}
	return n
}

// TagFrequency counts tag occurrences, most frequent first.
func TagFrequency(titles []models.Title) []Count {
	return frequency(titles, func(t models.Title) []string { return t.Tags })
}

// TopTags returns at most k entries of TagFrequency.
func TopTags(titles []models.Title, k int) []Count {
	return truncate(TagFrequency(titles), k)
}

// StudioFrequency counts studio occurrences, most frequent first.
func StudioFrequency(titles []models.Title) []Count {
	return frequency(titles, func(t models.Title) []string { return t.Studios })
}

// TopStudios returns at most k entries of StudioFrequency.
func TopStudios(titles []models.Title, k int) []Count {
	return truncate(StudioFrequency(titles), k)
}

// RatingDistribution counts titles per rating, skipping unrated ones.
func RatingDistribution(titles []models.Title) Distribution {
	var d Distribution
	for _, t := range titles {
		if t.Rating >= 1 && t.Rating <= 5 {
			d.Counts[t.Rating]++
		}
	}
	for r := 1; r <= 5; r++ {
		d.Max = max(d.Max, d.Counts[r])
	}
	return d
}

// MostPopulousPeriod returns the label holding the most titles. Ties go to
// the period that comes first in display order. ok is false when no period
// holds any title.
func MostPopulousPeriod(periods []models.Period) (label string, count int, ok bool) {
	for _, p := range periods {
		n := len(p.Titles)
		if n == 0 {
			continue
		}
		if !ok || n > count || (n == count && period.Compare(p.Label, label) < 0) {
			label, count, ok = p.Label, n, true
		}
	}
	return label, count, ok
}

// frequency counts values with ties kept in first-seen order.
func frequency(titles []models.Title, values func(models.Title) []string) []Count {
	index := make(map[string]int)
	out := []Count{}
	for _, t := range titles {
		for _, v := range values(t) {
			if v == "" {
				continue
			}
			if i, ok := index[v]; ok {
				out[i].Count++
				continue
			}
			index[v] = len(out)
			out = append(out, Count{Name: v, Count: 1})
		}
	}
	sortStableDesc(out)
	return out
}

func sortStableDesc(counts []Count) {
	slices.SortStableFunc(counts, func(a, b Count) int { return b.Count - a.Count })
}

func truncate(counts []Count, k int) []Count {
	if k < 0 {
		k = 0
	}
	if len(counts) > k {
		return counts[:k]
	}
	return counts
}
