// Package akdeniz crawls the Akdeniz University department and dining pages.
package akdeniz

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/scraper"
)

const (
	moduleCSE    = "cse"
	moduleDining = "dining"
)

// Announcement is one entry of the department announcement list.
type Announcement struct {
	Title string
	URL   string
}

// Scraper fetches announcement and dining pages through a shared client.
type Scraper struct {
	client           *scraper.Client
	announcementsURL string
	diningURL        string
}

// NewScraper creates a Scraper for the given list and menu pages.
func NewScraper(client *scraper.Client, announcementsURL, diningURL string) *Scraper {
	return &Scraper{client: client, announcementsURL: announcementsURL, diningURL: diningURL}
}

// FetchAnnouncements returns the announcement list in page order.
func (s *Scraper) FetchAnnouncements(ctx context.Context) ([]Announcement, error) {
	doc, err := s.client.GetDocument(ctx, moduleCSE, s.announcementsURL)
	if err != nil {
		return nil, fmt.Errorf("fetch announcement list: %w", err)
	}
	items, err := ParseAnnouncements(doc, s.announcementsURL)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ParseAnnouncements extracts `div.list-announcement a.list-group-item`
// entries. Relative links are resolved against pageURL; entries without a
// title or link are skipped. A page without the list container is an error,
// since it means the markup changed.
func ParseAnnouncements(doc *goquery.Document, pageURL string) ([]Announcement, error) {
	list := doc.Find("div.list-announcement")
	if list.Length() == 0 {
		return nil, fmt.Errorf("announcement list container not found on %s", pageURL)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page URL: %w", err)
	}

	var out []Announcement
	seen := make(map[string]bool)
	list.Find("a.list-group-item").Each(func(_ int, a *goquery.Selection) {
		title := strings.Join(strings.Fields(a.Text()), " ")
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if title == "" || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		link := base.ResolveReference(ref).String()
		if seen[link] {
			return
		}
		seen[link] = true
		out = append(out, Announcement{Title: title, URL: link})
	})
	return out, nil
}

// contentSelectors are tried in order for an announcement's body.
var contentSelectors = []string{
	"div.announcement-detail",
	"div.page-content",
	"div.content",
	"article",
	"main",
}

// FetchAnnouncementContent returns the plain text body of an announcement
// detail page.
func (s *Scraper) FetchAnnouncementContent(ctx context.Context, pageURL string) (string, error) {
	doc, err := s.client.GetDocument(ctx, moduleCSE, pageURL)
	if err != nil {
		return "", fmt.Errorf("fetch announcement %s: %w", pageURL, err)
	}
	return ParseAnnouncementContent(doc), nil
}

// ParseAnnouncementContent returns the text of the first matching content
// block, or the body text when none matches. Scripts and styles are dropped.
func ParseAnnouncementContent(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer").Remove()
	for _, sel := range contentSelectors {
		if block := doc.Find(sel).First(); block.Length() > 0 {
			if text := strings.TrimSpace(block.Text()); text != "" {
				return text
			}
		}
	}
	return strings.TrimSpace(doc.Find("body").Text())
}
