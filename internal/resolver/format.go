package resolver

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/intent"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/storage"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/teams"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/timeutil"
)

// ClarifyCourse asks the user which course they mean.
const ClarifyCourse = "Hangi ders için kontrol etmemi istersin? (Örn: Algoritma, Veri Yapıları)"

var (
	teamsKeywords    = []string{"duyuru", "ders", "sınav", "quiz", "lab"}
	tomorrowKeywords = []string{"yarın", "yarin"}
)

func (r *Resolver) resolveDining(ctx context.Context, in intent.Intent) Payload {
	day := timeutil.Today(r.clock, r.loc)
	if in.DateRel == intent.Tomorrow {
		day = timeutil.Tomorrow(r.clock, r.loc)
	}
	key := timeutil.DateKey(day)
	when := timeutil.FormatDateTR(day)

	if r.dining == nil {
		return Payload{Text: fmt.Sprintf("Yemekhane menüsüne şu anda ulaşılamıyor (%s): depo yapılandırılmamış.", when)}
	}

	var rec *storage.DiningRecord
	err := r.observe(ctx, collabDining, r.storageTimeout, func(ctx context.Context) (bool, error) {
		var err error
		rec, err = r.dining.FindDiningByDate(ctx, key)
		return rec != nil, err
	})
	switch {
	case err != nil:
		return Payload{Text: fmt.Sprintf("Yemekhane menüsüne şu anda ulaşılamıyor (%s): %v", when, err)}
	case rec == nil:
		return Payload{Text: fmt.Sprintf("%s (%s) için yemekhane menüsü bulunamadı.", when, key)}
	case len(rec.Items) == 0:
		return Payload{Text: fmt.Sprintf("%s (%s) için yemekhane menüsü boş.", when, key)}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Yemekhane Menüsü — %s**", when)
	for _, item := range rec.Items {
		b.WriteString("\n- ")
		b.WriteString(item)
	}
	if rec.Location != "" {
		fmt.Fprintf(&b, "\nKonum: %s", rec.Location)
	}
	return Payload{Text: b.String(), Found: true}
}

func (r *Resolver) resolveTeams(ctx context.Context, in intent.Intent) Payload {
	clarify := Payload{Text: ClarifyCourse, Direct: true}

	key, ok := r.courses.ResolveKey(in.Course)
	if !ok {
		return clarify
	}
	channel, ok := r.courses.Lookup(key)
	if !ok {
		return clarify
	}
	if r.channels == nil {
		return Payload{Text: fmt.Sprintf("Teams erişiminde sorun var: %v", teams.ErrNotConfigured)}
	}

	var msgs []teams.Message
	err := r.observe(ctx, collabTeams, r.channelTimeout, func(ctx context.Context) (bool, error) {
		var err error
		msgs, err = r.channels.FetchRecentMessages(ctx, channel.TeamID, channel.ChannelID, TeamsScanWindow)
		return len(msgs) > 0, err
	})
	if err != nil {
		return Payload{Text: fmt.Sprintf("Teams erişiminde sorun var: %v", err)}
	}

	keywords := teamsKeywords
	if in.HasDate() {
		keywords = append(append([]string{}, teamsKeywords...), tomorrowKeywords...)
	}

	if len(msgs) > TeamsScanWindow {
		msgs = msgs[:TeamsScanWindow]
	}
	for _, m := range msgs {
		if containsAny(m.Text, keywords) {
			return Payload{
				Text: fmt.Sprintf("• **%s** için en alakalı Teams duyurusu (%s, %s):\n\n%s\n\nİstersen daha eski duyurulara da bakabilirim.",
					key, m.Author, m.Timestamp, m.Text),
				Found: true,
			}
		}
	}

	when := "ilgili tarih"
	if in.HasDate() {
		when = timeutil.FormatDateTR(in.Date)
	}
	return Payload{Text: fmt.Sprintf(
		"Teams kanalında %s için %s ile ilgili bir duyuru bulamadım. Hocanın paylaşımlarını tekrar kontrol edebilirim ya da netleştirmek için hoca/öğrenci temsilcisine yazabilirsin.",
		key, when)}
}

func (r *Resolver) resolveAnnouncements(ctx context.Context) Payload {
	if r.announcements == nil {
		return Payload{Text: "Error fetching announcements: store not configured"}
	}

	var recs []storage.AnnouncementRecord
	err := r.observe(ctx, collabAnnouncements, r.storageTimeout, func(ctx context.Context) (bool, error) {
		var err error
		recs, err = r.announcements.FindRecentAnnouncements(ctx, RecentAnnouncementLimit)
		return len(recs) > 0, err
	})
	if err != nil {
		return Payload{Text: fmt.Sprintf("Error fetching announcements: %v", err)}
	}
	if len(recs) == 0 {
		return Payload{Text: "No recent announcements."}
	}
	if len(recs) > RecentAnnouncementLimit {
		recs = recs[:RecentAnnouncementLimit]
	}

	lines := make([]string, 0, len(recs)+1)
	lines = append(lines, "Recent Announcements:")
	for i, a := range recs {
		lines = append(lines, fmt.Sprintf("%d. [%s] %s\n   %s...",
			i+1, orNA(a.Source), orNA(a.Title), truncate(a.Content, ExcerptRunes)))
	}
	return Payload{Text: strings.Join(lines, "\n"), Found: true}
}

// containsAny matches keywords against both Turkish and plain lowercasing:
// "SINAV" only becomes "sınav" under Turkish rules, while "QUIZ" only
// becomes "quiz" without them.
func containsAny(text string, keywords []string) bool {
	turkish := cases.Lower(language.Turkish).String(text)
	plain := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(turkish, kw) || strings.Contains(plain, kw) {
			return true
		}
	}
	return false
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
