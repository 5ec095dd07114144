// Package views memoizes series and statistics views by a structural
// fingerprint of the collection. Results are identical to calling the
// series and stats packages directly; only repeated work is skipped.
package views

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"

	"watchlog/internal/series"
	"watchlog/internal/stats"
	"watchlog/pkg/models"
)

// Views holds the last computed results. Returned values are shared between
// callers and must be treated as read-only.
type Views struct {
	mu        sync.Mutex
	key       uint64
	valid     bool
	groups    *series.Result
	summaries map[int]stats.Summary
	hits      int
}

func New() *Views {
	return &Views{}
}

// Fingerprint hashes the JSON form of periods.
func Fingerprint(periods []models.Period) uint64 {
	b, err := json.Marshal(periods)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(b)
}

// Series returns series.Group(periods), reusing the previous result when the
// collection is unchanged.
func (v *Views) Series(periods []models.Period) series.Result {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.resetIfChanged(periods)
	if v.groups != nil {
		v.hits++
		return *v.groups
	}
	res := series.Group(periods)
	v.groups = &res
	return res
}

// Summary returns stats.Summarize(periods, k) with the same reuse rule.
func (v *Views) Summary(periods []models.Period, k int) stats.Summary {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.resetIfChanged(periods)
	if s, ok := v.summaries[k]; ok {
		v.hits++
		return s
	}
	s := stats.Summarize(periods, k)
	v.summaries[k] = s
	return s
}

// Hits reports how many calls were served from the memo.
func (v *Views) Hits() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hits
}

func (v *Views) resetIfChanged(periods []models.Period) {
	key := Fingerprint(periods)
	if v.valid && key == v.key {
		return
	}
	v.key, v.valid = key, true
	v.groups = nil
	v.summaries = make(map[int]stats.Summary)
}

// Registry keeps one Views per owner.
type Registry struct {
	mu    sync.Mutex
	views map[string]*Views
}

func NewRegistry() *Registry {
	return &Registry{views: make(map[string]*Views)}
}

// For returns the memo of owner, creating it on first use.
func (r *Registry) For(owner string) *Views {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[owner]
	if !ok {
		v = New()
		r.views[owner] = v
	}
	return v
}

// Forget drops the memo of owner.
func (r *Registry) Forget(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.views, owner)
}
