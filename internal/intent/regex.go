package intent

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/timeutil"
)

// wordPattern compiles a case-insensitive alternation that only matches on
// whole words. RE2's \b is ASCII-only, so letter boundaries are spelled out.
// The alternation is capture group 1.
func wordPattern(alts string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(` + alts + `)(?:[^\p{L}\p{N}_]|$)`)
}

var (
	coursePattern   = wordPattern(`algoritma|algorithm|veri yap[ıi]lar[ıi]|game programming|matematik|physics`)
	diningPattern   = wordPattern(`yemekhane|yemek|men[üu]|menusu|menüsü|program[ıi]`)
	tomorrowPattern = wordPattern(`yar[ıi]n|yarin`)
	classPattern    = wordPattern(`dersi|dersi\s*var\s*m[ıi]|ders|lab|s[ıi]nav`)
)

// RegexClassifier evaluates ordered pattern groups: dining first, then
// course and class keywords. Anything else is Fallback.
type RegexClassifier struct {
	clock timeutil.Clock
	loc   *time.Location
}

// NewRegexClassifier creates a regex-priority classifier. clock and loc
// determine "tomorrow" for the teams date slot.
func NewRegexClassifier(clock timeutil.Clock, loc *time.Location) *RegexClassifier {
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RegexClassifier{clock: clock, loc: loc}
}

// Policy implements Classifier.
func (c *RegexClassifier) Policy() string { return PolicyRegex }

// Classify implements Classifier.
func (c *RegexClassifier) Classify(text string) Intent {
	t := strings.TrimSpace(norm.NFC.String(text))
	if t == "" {
		return Intent{Name: Fallback}
	}

	tomorrow := tomorrowPattern.MatchString(t)

	if diningPattern.MatchString(t) {
		rel := Today
		if tomorrow {
			rel = Tomorrow
		}
		return Intent{Name: Dining, DateRel: rel}
	}

	if classPattern.MatchString(t) || tomorrow {
		in := Intent{Name: TeamsAnnouncement}
		if m := coursePattern.FindStringSubmatch(t); m != nil {
			in.Course = m[1]
		}
		if tomorrow {
			in.Date = timeutil.Tomorrow(c.clock, c.loc)
		}
		return in
	}

	return Intent{Name: Fallback}
}
