package webhook

import (
	"cmp"
	"slices"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// isBotMentioned reports whether any mentionee is the bot itself.
func isBotMentioned(msg webhook.TextMessageContent) bool {
	return len(selfMentions(msg.Mention)) > 0
}

type mentionSpan struct {
	index, length int
}

func selfMentions(mention *webhook.Mention) []mentionSpan {
	if mention == nil {
		return nil
	}
	var spans []mentionSpan
	for _, m := range mention.Mentionees {
		if u, ok := m.(webhook.UserMentionee); ok && u.IsSelf {
			spans = append(spans, mentionSpan{index: int(u.Index), length: int(u.Length)})
		}
	}
	return spans
}

// removeBotMentions cuts every bot mention out of text and collapses the
// remaining whitespace. LINE indexes mentions by character, so the cut is
// done on runes, last mention first.
func removeBotMentions(text string, mention *webhook.Mention) string {
	spans := selfMentions(mention)
	if len(spans) == 0 {
		return text
	}
	slices.SortFunc(spans, func(a, b mentionSpan) int { return cmp.Compare(b.index, a.index) })

	runes := []rune(text)
	for _, s := range spans {
		start := max(s.index, 0)
		end := min(s.index+s.length, len(runes))
		if start >= end {
			continue
		}
		runes = append(runes[:start], runes[end:]...)
	}
	return strings.Join(strings.Fields(string(runes)), " ")
}
