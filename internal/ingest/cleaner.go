package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	apperrors "github.com/akdenizcse/akdeniz-chatbot-go/internal/errors"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/timeutil"
)

var (
	invisibleRe  = regexp.MustCompile("[\u200b-\u200f\u202a-\u202e\ufeff]")
	turkishDayRe = regexp.MustCompile(`^(\d{1,2})\s+(\p{L}+)\s+(\d{4})$`)
)

// CleanText strips zero-width and bidi control characters, normalizes to NFC
// and collapses runs of whitespace into single spaces.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = invisibleRe.ReplaceAllString(text, "")
	text = norm.NFC.String(text)
	return strings.Join(strings.Fields(text), " ")
}

// CleanItems cleans every item and drops the ones left empty.
func CleanItems(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = CleanText(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"2006/01/02",
	"02-01-2006",
	"2 January 2006",
}

// NormalizeDate parses s in one of the common numeric layouts, an English
// "2 January 2006" form, or a Turkish "20 Ekim 2025" form, and returns it as
// YYYY-MM-DD.
func NormalizeDate(s string) (string, bool) {
	s = CleanText(s)
	if s == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return timeutil.DateKey(t), true
		}
	}

	m := turkishDayRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	month, ok := timeutil.MonthFromTurkish(m[2])
	if !ok {
		return "", false
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return "", false
	}
	return timeutil.DateKey(t), true
}

// validateMenu rejects menus that cannot be stored.
func validateMenu(date string, items []string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return apperrors.NewValidationError("date", fmt.Sprintf("%q is not YYYY-MM-DD", date))
	}
	if len(items) == 0 {
		return apperrors.NewValidationError("items", fmt.Sprintf("menu for %s has no items", date))
	}
	return nil
}

// validateAnnouncement rejects announcements missing a title or link.
func validateAnnouncement(title, url string) error {
	if title == "" || url == "" {
		return apperrors.NewValidationError("announcement", fmt.Sprintf("missing title or url (title=%q url=%q)", title, url))
	}
	return nil
}
