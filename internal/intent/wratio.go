package intent

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	unbaseScale = 0.95
	partialHigh = 0.9
	partialLow  = 0.6
)

// Preprocess lowercases with Turkish rules, replaces everything that is not
// a letter or digit with a space, and trims. Turkish letters are kept.
func Preprocess(s string) string {
	// A Caser carries state and is not safe for concurrent use.
	lower := cases.Lower(language.Turkish).String(s)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// WRatio is a weighted similarity score in [0, 100] combining plain,
// partial and token-based ratios. Inputs should already be preprocessed.
func WRatio(s1, s2 string) int {
	a, b := []rune(s1), []rune(s2)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	short, long := len(a), len(b)
	if short > long {
		short, long = long, short
	}
	lenRatio := float64(long) / float64(short)

	best := ratio(a, b)
	if lenRatio < 1.5 {
		best = math.Max(best, tokenRatio(s1, s2)*unbaseScale)
		return int(math.RoundToEven(best))
	}

	scale := partialHigh
	if lenRatio >= 8 {
		scale = partialLow
	}
	best = math.Max(best, partialRatio(a, b)*scale)
	best = math.Max(best, partialTokenRatio(s1, s2)*unbaseScale*scale)
	return int(math.RoundToEven(best))
}

// ratio is the normalized indel similarity 2*LCS/(len(a)+len(b)) in [0, 100].
func ratio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 0
	}
	return 200 * float64(lcs(a, b)) / float64(total)
}

func lcs(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// partialRatio is the best ratio of the shorter string against every window
// of the longer one, including windows that overhang either end.
func partialRatio(a, b []rune) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	m, n := len(a), len(b)
	if m == 0 {
		return 0
	}

	best := 0.0
	consider := func(w []rune) bool {
		r := ratio(a, w)
		if r > best {
			best = r
		}
		return best == 100
	}
	for i := 1; i < m; i++ {
		if consider(b[:i]) {
			return best
		}
	}
	for i := 0; i+m <= n; i++ {
		if consider(b[i : i+m]) {
			return best
		}
	}
	for i := n - m + 1; i < n; i++ {
		if consider(b[i:]) {
			return best
		}
	}
	if m == n {
		// Equal lengths: the overhanging windows are not symmetric.
		for i := 1; i < n; i++ {
			if r := ratio(b, a[:i]); r > best {
				best = r
			}
			if r := ratio(b, a[i:]); r > best {
				best = r
			}
		}
	}
	return best
}

func sortedTokens(s string) []string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return tokens
}

func tokenSet(s string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, t := range strings.Fields(s) {
		set[t] = struct{}{}
	}
	return set
}

func joinSorted(set map[string]struct{}) string {
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return strings.Join(out, " ")
}

func tokenSortRatio(s1, s2 string) float64 {
	return ratio(
		[]rune(strings.Join(sortedTokens(s1), " ")),
		[]rune(strings.Join(sortedTokens(s2), " ")),
	)
}

func tokenSetRatio(s1, s2 string) float64 {
	setA, setB := tokenSet(s1), tokenSet(s2)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	sect := map[string]struct{}{}
	onlyA := map[string]struct{}{}
	onlyB := map[string]struct{}{}
	for t := range setA {
		if _, ok := setB[t]; ok {
			sect[t] = struct{}{}
		} else {
			onlyA[t] = struct{}{}
		}
	}
	for t := range setB {
		if _, ok := setA[t]; !ok {
			onlyB[t] = struct{}{}
		}
	}
	if len(sect) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	t0 := joinSorted(sect)
	t1 := strings.TrimSpace(t0 + " " + joinSorted(onlyA))
	t2 := strings.TrimSpace(t0 + " " + joinSorted(onlyB))

	best := ratio([]rune(t1), []rune(t2))
	if t0 != "" {
		best = math.Max(best, ratio([]rune(t0), []rune(t1)))
		best = math.Max(best, ratio([]rune(t0), []rune(t2)))
	}
	return best
}

func tokenRatio(s1, s2 string) float64 {
	return math.Max(tokenSortRatio(s1, s2), tokenSetRatio(s1, s2))
}

func partialTokenRatio(s1, s2 string) float64 {
	setA, setB := tokenSet(s1), tokenSet(s2)
	for t := range setA {
		if _, ok := setB[t]; ok {
			return 100
		}
	}

	best := partialRatio(
		[]rune(strings.Join(sortedTokens(s1), " ")),
		[]rune(strings.Join(sortedTokens(s2), " ")),
	)
	// Repeated tokens collapse in the set form.
	return math.Max(best, partialRatio([]rune(joinSorted(setA)), []rune(joinSorted(setB))))
}
