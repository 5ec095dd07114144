// Package period parses and orders broadcast-period labels of the form
// "<year>年<season>", for example "2024年冬".
package period

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"time"

	"watchlog/pkg/models"
)

// Unclassified is the label of the bucket for titles without a known period.
const Unclassified = "未分類"

// Seasons lists the glyphs in broadcast order: quarter 1 is 冬 (Jan-Mar)
// and quarter 4 is 秋 (Oct-Dec).
var Seasons = [4]string{"冬", "春", "夏", "秋"}

var ErrQuarterOutOfRange = errors.New("quarter out of range")

var labelRe = regexp.MustCompile(`^(\d{4})年(冬|春|夏|秋)$`)

// Period is a parsed label.
type Period struct {
	Year    int
	Quarter int // 1..4
}

// Parse parses a canonical label. ok is false for anything else, including
// Unclassified.
func Parse(label string) (Period, bool) {
	m := labelRe.FindStringSubmatch(label)
	if m == nil {
		return Period{}, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return Period{}, false
	}
	for i, s := range Seasons {
		if s == m[2] {
			return Period{Year: year, Quarter: i + 1}, true
		}
	}
	return Period{}, false
}

// Format builds the canonical label for year and quarter.
func Format(year, quarter int) (string, error) {
	if quarter < 1 || quarter > 4 {
		return "", fmt.Errorf("format period %d/%d: %w", year, quarter, ErrQuarterOutOfRange)
	}
	return fmt.Sprintf("%04d年%s", year, Seasons[quarter-1]), nil
}

// String returns the canonical label.
func (p Period) String() string {
	s, err := Format(p.Year, p.Quarter)
	if err != nil {
		return Unclassified
	}
	return s
}

// ForTime returns the label of the quarter containing t.
func ForTime(t time.Time) string {
	q := (int(t.Month())-1)/3 + 1
	s, _ := Format(t.Year(), q)
	return s
}

// Compare orders labels for display: newer years first, and within a year
// the last broadcast quarter first (秋, 夏, 春, 冬). Unparsable labels sort
// after every well-formed label and compare equal to each other, so a stable
// sort keeps their relative order.
func Compare(a, b string) int {
	pa, okA := Parse(a)
	pb, okB := Parse(b)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}
	if pa.Year != pb.Year {
		return pb.Year - pa.Year
	}
	return pb.Quarter - pa.Quarter
}

// SortLabels returns a display-ordered copy of labels.
func SortLabels(labels []string) []string {
	out := slices.Clone(labels)
	slices.SortStableFunc(out, Compare)
	return out
}

// Sort orders periods in place by their labels.
func Sort(periods []models.Period) {
	slices.SortStableFunc(periods, func(a, b models.Period) int {
		return Compare(a.Label, b.Label)
	})
}
