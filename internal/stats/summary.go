package stats

import "watchlog/pkg/models"

// Summary bundles every figure shown on the statistics page.
type Summary struct {
	Total          int          `json:"total"`
	Watched        int          `json:"watched"`
	RatedAverage   float64      `json:"rated_average"`
	TotalRewatches int          `json:"total_rewatches"`
	TopTags        []Count      `json:"top_tags"`
	TopStudios     []Count      `json:"top_studios"`
	Ratings        Distribution `json:"ratings"`
	BusiestPeriod  string       `json:"busiest_period,omitempty"`
	BusiestCount   int          `json:"busiest_count"`
}

// DefaultTopK is the list length used when callers pass k <= 0.
const DefaultTopK = 5

// Summarize computes a Summary over periods, keeping k entries per top list.
func Summarize(periods []models.Period, k int) Summary {
	if k <= 0 {
		k = DefaultTopK
	}
	titles := models.Flatten(periods)
	s := Summary{
		Total:          len(titles),
		Watched:        WatchedCount(titles),
		RatedAverage:   RatedAverage(titles),
		TotalRewatches: TotalRewatches(titles),
		TopTags:        TopTags(titles, k),
		TopStudios:     TopStudios(titles, k),
		Ratings:        RatingDistribution(titles),
	}
	if label, n, ok := MostPopulousPeriod(periods); ok {
		s.BusiestPeriod, s.BusiestCount = label, n
	}
	return s
}
