// Package timeutil provides the clock abstraction and Turkish date formatting
// used for "today"/"tomorrow" questions and user-facing dates.
package timeutil

import (
	"fmt"
	"time"
)

// DateLayout is the storage key format for calendar dates.
const DateLayout = "2006-01-02"

// Clock supplies the current instant. Tests inject a fixed clock.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns time.Now.
func SystemClock() Clock { return ClockFunc(time.Now) }

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

// Today returns midnight of the current calendar day in loc.
func Today(c Clock, loc *time.Location) time.Time {
	now := c.Now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
}

// Tomorrow returns midnight of the next calendar day in loc.
func Tomorrow(c Clock, loc *time.Location) time.Time {
	return Today(c, loc).AddDate(0, 0, 1)
}

// DateKey formats t as YYYY-MM-DD in its own location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

var trMonths = [...]string{
	"Ocak", "Şubat", "Mart", "Nisan", "Mayıs", "Haziran",
	"Temmuz", "Ağustos", "Eylül", "Ekim", "Kasım", "Aralık",
}

var trWeekdays = [...]string{
	"Pazar", "Pazartesi", "Salı", "Çarşamba", "Perşembe", "Cuma", "Cumartesi",
}

// FormatDateTR renders a date the way Turkish users read it, e.g.
// "20 Ekim 2025 Pazartesi".
func FormatDateTR(t time.Time) string {
	return fmt.Sprintf("%d %s %d %s", t.Day(), TurkishMonth(t.Month()), t.Year(), trWeekdays[t.Weekday()])
}

// TurkishMonth returns the Turkish name of m.
func TurkishMonth(m time.Month) string {
	return trMonths[m-1]
}

// MonthFromTurkish maps a Turkish month name (any case, with or without
// Turkish letters) to its time.Month.
func MonthFromTurkish(name string) (time.Month, bool) {
	key := foldASCII(name)
	for i, m := range trMonths {
		if foldASCII(m) == key {
			return time.Month(i + 1), true
		}
	}
	return 0, false
}

// foldASCII lowercases and maps Turkish letters to their ASCII look-alikes so
// "ŞUBAT", "şubat" and "subat" compare equal.
func foldASCII(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case 'ş', 'Ş':
			r = 's'
		case 'ğ', 'Ğ':
			r = 'g'
		case 'ı', 'I', 'İ':
			r = 'i'
		case 'ü', 'Ü':
			r = 'u'
		case 'ö', 'Ö':
			r = 'o'
		case 'ç', 'Ç':
			r = 'c'
		default:
			if r >= 'A' && r <= 'Z' {
				r += 'a' - 'A'
			}
		}
		out = append(out, r)
	}
	return string(out)
}
