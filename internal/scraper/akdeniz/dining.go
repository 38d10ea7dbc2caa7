package akdeniz

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/timeutil"
)

// DiningLocation is where every menu is served.
const DiningLocation = "Akdeniz Üniversitesi Yemekhanesi"

// Menu sources.
const (
	MenuSourceWebsite  = "website"
	MenuSourceFallback = "fallback"
)

// maxMenuItems bounds a parsed menu.
const maxMenuItems = 10

// Menu is one day's menu.
type Menu struct {
	Date     string // YYYY-MM-DD
	Items    []string
	Location string
	Source   string
}

// fallbackMenus rotate by weekday, Monday first.
var fallbackMenus = [7][]string{
	{"Mercimek Çorbası", "Tavuk Sote", "Bulgur Pilavı", "Mevsim Salata", "Ayran", "Meyve"},
	{"Ezogelin Çorbası", "Püreli Hasanpaşa Köfte", "Bulgur Pilavı", "Mevsim Salata", "Revani"},
	{"Yayla Çorbası", "Tavuk Döner", "Patates Kızartması", "Turşu", "Ayran", "Hoşaf"},
	{"Tarhana Çorbası", "İzmir Köfte", "Pirinç Pilavı", "Cacık", "Turşu", "Meyve"},
	{"Domates Çorbası", "Karışık Izgara", "Kuru Fasulye", "Pilav", "Salata", "Sütlaç"},
	{"Şehriye Çorbası", "Fırın Tavuk", "Makarna", "Yoğurt", "Ayran", "Komposto"},
	{"Sebze Çorbası", "Köri Soslu Tavuk", "Pirinç Pilavı", "Mevsim Salata", "Kek"},
}

// FallbackMenu returns the rotating menu for day's weekday.
func FallbackMenu(day time.Time) []string {
	idx := (int(day.Weekday()) + 6) % 7
	return append([]string(nil), fallbackMenus[idx]...)
}

// FetchWeek returns menus for days consecutive dates starting at from. The
// page is fetched once. Dates the page does not cover, or every date when the
// page cannot be fetched, get the fallback menu; the fetch error is logged
// and not returned.
func (s *Scraper) FetchWeek(ctx context.Context, from time.Time, days int) []Menu {
	doc, err := s.client.GetDocument(ctx, moduleDining, s.diningURL)
	if err != nil {
		slog.WarnContext(ctx, "dining page unavailable, using fallback menus", "url", s.diningURL, "error", err)
	}

	menus := make([]Menu, 0, days)
	for i := range days {
		day := from.AddDate(0, 0, i)
		var items []string
		if doc != nil {
			items = ParseMenu(doc, day)
		}
		menu := Menu{
			Date:     timeutil.DateKey(day),
			Items:    items,
			Location: DiningLocation,
			Source:   MenuSourceWebsite,
		}
		if len(items) == 0 {
			menu.Items = FallbackMenu(day)
			menu.Source = MenuSourceFallback
		}
		menus = append(menus, menu)
	}
	return menus
}

var skipCellWords = []string{"Tarih", "Kalori"}

// ParseMenu finds the block mentioning day (day number and Turkish month
// name), then collects its list items, or its table cells when it has no
// list. Returns nil when the page does not mention day.
func ParseMenu(doc *goquery.Document, day time.Time) []string {
	block := findDateBlock(doc, day)
	if block == nil {
		return nil
	}

	var items []string
	add := func(text string) {
		text = strings.Join(strings.Fields(text), " ")
		if len([]rune(text)) > 1 && len(items) < maxMenuItems {
			items = append(items, text)
		}
	}

	month := timeutil.TurkishMonth(day.Month())
	block.Find("li").Each(func(_ int, li *goquery.Selection) {
		add(li.Text())
	})
	if len(items) == 0 {
		block.Find("td").Each(func(_ int, td *goquery.Selection) {
			text := td.Text()
			if containsAnyWord(text, skipCellWords) || strings.Contains(text, month) {
				return
			}
			add(text)
		})
	}
	return items
}

// findDateBlock returns the nearest ancestor (at most three levels up) of the
// first element whose own text mentions day and that also holds list items or
// table cells.
func findDateBlock(doc *goquery.Document, day time.Time) *goquery.Selection {
	dayRe := regexp.MustCompile(`(^|\D)0?` + strconv.Itoa(day.Day()) + `(\D|$)`)
	month := timeutil.TurkishMonth(day.Month())

	var found *goquery.Selection
	doc.Find("body *").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		own := sel.Contents().FilterFunction(func(_ int, c *goquery.Selection) bool {
			return goquery.NodeName(c) == "#text"
		}).Text()
		if strings.Contains(own, month) && dayRe.MatchString(own) {
			found = sel
			return false
		}
		return true
	})
	if found == nil {
		return nil
	}

	block := found
	for range 3 {
		if block.Find("li, td").NotNodes(found.Nodes...).Length() > 0 {
			break
		}
		parent := block.Parent()
		if parent.Length() == 0 || goquery.NodeName(parent) == "html" {
			break
		}
		block = parent
	}
	return block
}

func containsAnyWord(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
