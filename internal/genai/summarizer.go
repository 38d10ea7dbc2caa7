package genai

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// SummaryInstruction asks for a one-sentence student-facing summary.
	SummaryInstruction = "Summarize this for students in 1 sentence"

	// SummaryUnavailable is stored when no summary could be produced.
	SummaryUnavailable = "Summary unavailable."

	summaryInputRunes = 4000
)

// Summarizer condenses announcement bodies for ingestion.
type Summarizer struct {
	gen Generator
}

// NewSummarizer wraps gen. A nil gen makes every summary SummaryUnavailable.
func NewSummarizer(gen Generator) *Summarizer {
	return &Summarizer{gen: gen}
}

// Summarize never fails; errors degrade to SummaryUnavailable.
func (s *Summarizer) Summarize(ctx context.Context, content string) string {
	content = strings.TrimSpace(content)
	if s == nil || s.gen == nil || content == "" {
		return SummaryUnavailable
	}
	if r := []rune(content); len(r) > summaryInputRunes {
		content = string(r[:summaryInputRunes])
	}

	text, err := s.gen.Generate(ctx, Prompt{
		SystemInstruction: SummaryInstruction,
		Context:           content,
		Query:             SummaryInstruction,
	})
	if err != nil {
		slog.WarnContext(ctx, "announcement summary failed", "error", err)
		return SummaryUnavailable
	}
	if text = strings.TrimSpace(text); text == "" {
		return SummaryUnavailable
	}
	return text
}
