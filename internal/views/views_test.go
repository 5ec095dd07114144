package views

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchlog/internal/series"
	"watchlog/internal/stats"
	"watchlog/pkg/models"
)

func fixture() []models.Period {
	return []models.Period{
		{Label: "2024年春", Titles: []models.Title{
			{ID: 1700000000001, Name: "鬼滅の刃 第2期", SeriesName: "鬼滅の刃", Rating: 5, Tags: []string{"バトル"}},
			{ID: 1700000000002, Name: "ぼっち・ざ・ろっく！", Rating: 4, Tags: []string{"音楽"}},
		}},
		{Label: "2023年冬", Titles: []models.Title{
			{ID: 1700000000003, Name: "鬼滅の刃 第1期", SeriesName: "鬼滅の刃", Tags: []string{"バトル"}},
		}},
	}
}

func TestViews_MatchesDirectComputation(t *testing.T) {
	v := New()
	periods := fixture()

	assert.Equal(t, series.Group(periods), v.Series(periods))
	assert.Equal(t, stats.Summarize(periods, 3), v.Summary(periods, 3))
}

func TestViews_ReusesUntilChanged(t *testing.T) {
	v := New()
	periods := fixture()

	first := v.Series(periods)
	_ = v.Series(periods)
	_ = v.Summary(periods, 5)
	_ = v.Summary(periods, 5)
	assert.Equal(t, 2, v.Hits())

	periods[0].Titles[0].SeriesName = ""
	changed := v.Series(periods)
	assert.Equal(t, 2, v.Hits())
	require.Len(t, first.Series, 1)
	assert.Empty(t, changed.Series)
}

func TestFingerprint(t *testing.T) {
	a, b := fixture(), fixture()
	assert.Equal(t, Fingerprint(a), Fingerprint(b))

	b[1].Titles[0].Rating = 3
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestRegistry_PerOwner(t *testing.T) {
	r := NewRegistry()

	a := r.For("alice")
	assert.Same(t, a, r.For("alice"))
	assert.NotSame(t, a, r.For("bob"))

	r.Forget("alice")
	assert.NotSame(t, a, r.For("alice"))
}
