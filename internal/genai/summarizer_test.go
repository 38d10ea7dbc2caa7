package genai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSummarizer(t *testing.T) {
	t.Parallel()

	var got Prompt
	ok := &mockGenerator{provider: ProviderGemini, generateFunc: func(_ context.Context, p Prompt) (string, error) {
		got = p
		return " Staj başvuruları 1 Kasım'da kapanıyor. ", nil
	}}
	failing := &mockGenerator{provider: ProviderGemini, generateFunc: func(context.Context, Prompt) (string, error) {
		return "", errors.New("quota exceeded")
	}}

	t.Run("summary is trimmed", func(t *testing.T) {
		s := NewSummarizer(ok)
		assert.Equal(t, "Staj başvuruları 1 Kasım'da kapanıyor.", s.Summarize(context.Background(), "Staj duyurusu ..."))
		assert.Equal(t, SummaryInstruction, got.SystemInstruction)
		assert.Equal(t, "Staj duyurusu ...", got.Context)
	})

	t.Run("long content is bounded", func(t *testing.T) {
		s := NewSummarizer(ok)
		s.Summarize(context.Background(), strings.Repeat("ğ", summaryInputRunes+50))
		assert.Equal(t, summaryInputRunes, utf8.RuneCountInString(got.Context))
	})

	t.Run("failures degrade", func(t *testing.T) {
		assert.Equal(t, SummaryUnavailable, NewSummarizer(failing).Summarize(context.Background(), "x"))
		assert.Equal(t, SummaryUnavailable, NewSummarizer(nil).Summarize(context.Background(), "x"))
		assert.Equal(t, SummaryUnavailable, NewSummarizer(ok).Summarize(context.Background(), "  "))

		var nilSummarizer *Summarizer
		assert.Equal(t, SummaryUnavailable, nilSummarizer.Summarize(context.Background(), "x"))
	})
}
