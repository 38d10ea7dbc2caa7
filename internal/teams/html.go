package teams

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLToText flattens a Graph message body to plain text, one line per text
// node. Input that cannot be parsed is returned unchanged.
func HTMLToText(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}

	var parts []string
	collectText(doc.Selection, &parts)
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func collectText(s *goquery.Selection, parts *[]string) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		switch goquery.NodeName(c) {
		case "#text":
			if t := strings.TrimSpace(c.Text()); t != "" {
				*parts = append(*parts, t)
			}
		case "script", "style":
		default:
			collectText(c, parts)
		}
	})
}
