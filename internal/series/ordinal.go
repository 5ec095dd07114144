package series

import (
	"regexp"
	"strconv"
	"strings"
)

// ordinalRule pairs a pattern with the extractor for its submatches.
type ordinalRule struct {
	name    string
	re      *regexp.Regexp
	extract func(m []string) (int, bool)
}

func digits(m []string) (int, bool) {
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ordinalRules are tried in order; the first match wins.
var ordinalRules = []ordinalRule{
	{"dai-n-ki", regexp.MustCompile(`第\s*(\d+)\s*期`), digits},
	{"dai-kanji-ki", regexp.MustCompile(`第([一二三四五六七八九十]+)期`), kanjiDigits},
	{"dai-n-season", regexp.MustCompile(`第\s*(\d+)\s*(?:シーズン|クール|部|章|季)`), digits},
	{"season-n", regexp.MustCompile(`(?i)season\s*(\d+)`), digits},
	{"nth-season", regexp.MustCompile(`(?i)(\d+)(?:st|nd|rd|th)\s*season`), digits},
	{"s-n", regexp.MustCompile(`(?i)\bS(\d{1,2})\b`), digits},
	{"n-ki", regexp.MustCompile(`(\d+)\s*期`), digits},
}

// Ordinal extracts the season number from a display name.
func Ordinal(name string) (int, bool) {
	n, _, ok := match(name)
	return n, ok
}

// ExtractName strips the ordinal marker from a display name and returns what
// is left as a candidate series name. ok is false when no ordinal was found.
func ExtractName(name string) (string, bool) {
	_, loc, ok := match(name)
	if !ok {
		return "", false
	}
	rest := name[:loc[0]] + name[loc[1]:]
	rest = strings.TrimRight(strings.TrimSpace(rest), " 　:：-/")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", false
	}
	return rest, true
}

func match(name string) (int, []int, bool) {
	for _, r := range ordinalRules {
		loc := r.re.FindStringSubmatchIndex(name)
		if loc == nil {
			continue
		}
		m := make([]string, len(loc)/2)
		for i := range m {
			if loc[2*i] >= 0 {
				m[i] = name[loc[2*i]:loc[2*i+1]]
			}
		}
		if n, ok := r.extract(m); ok {
			return n, loc[:2], true
		}
	}
	return 0, nil, false
}

var kanjiValues = map[rune]int{
	'一': 1, '二': 2, '三': 3, '四': 4, '五': 5,
	'六': 6, '七': 7, '八': 8, '九': 9,
}

// kanjiDigits reads numerals up to 99 such as 二, 十, 十二 and 二十三.
func kanjiDigits(m []string) (int, bool) {
	s := []rune(m[1])
	total, cur := 0, 0
	for _, r := range s {
		if r == '十' {
			if cur == 0 {
				cur = 1
			}
			total += cur * 10
			cur = 0
			continue
		}
		v, ok := kanjiValues[r]
		if !ok {
			return 0, false
		}
		cur = v
	}
	total += cur
	return total, total > 0
}
