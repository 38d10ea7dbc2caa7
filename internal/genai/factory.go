package genai

import (
	"context"
	"log/slog"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/config"
)

// ConfigFrom maps application configuration to a generator Config. Unknown
// provider names are logged and skipped.
func ConfigFrom(cfg *config.Config) Config {
	out := Config{
		Gemini: ProviderConfig{APIKey: cfg.GeminiAPIKey},
		Groq:   ProviderConfig{APIKey: cfg.GroqAPIKey},
		Retry:  DefaultRetryConfig(),
	}
	if cfg.GeminiModel != "" {
		out.Gemini.Models = []string{cfg.GeminiModel}
	}
	if cfg.GroqModel != "" {
		out.Groq.Models = []string{cfg.GroqModel}
	}
	for _, name := range cfg.LLMProviders {
		p, err := ParseProvider(name)
		if err != nil {
			slog.Warn("ignoring LLM provider", "error", err)
			continue
		}
		out.Providers = append(out.Providers, p)
	}
	return out
}

// NewGenerator builds the fallback chain from cfg: every model of every
// configured provider, in provider order. It returns nil, nil when no provider
// has an API key.
func NewGenerator(ctx context.Context, cfg Config, recorder Recorder) (Generator, error) {
	var chain []Generator

	for _, p := range cfg.ConfiguredProviders() {
		pc := cfg.provider(p)
		models := pc.Models
		if len(models) == 0 {
			models = defaultModels(p)
		}
		for _, m := range models {
			g, err := newProviderGenerator(ctx, p, pc.APIKey, m)
			if err != nil {
				slog.WarnContext(ctx, "failed to create generator", "provider", p, "model", m, "error", err)
				continue
			}
			chain = append(chain, g)
		}
	}

	if len(chain) == 0 {
		slog.InfoContext(ctx, "no LLM provider configured for generation")
		return nil, nil //nolint:nilnil // generation disabled
	}

	slog.InfoContext(ctx, "generator configured",
		"primary", chain[0].Provider(),
		"chainSize", len(chain))

	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}
	return NewFallbackGenerator(retry, recorder, chain...), nil
}

func newProviderGenerator(ctx context.Context, p Provider, apiKey, model string) (Generator, error) {
	if p.IsOpenAICompatible() {
		return newOpenAIGenerator(p, apiKey, model, "")
	}
	return newGeminiGenerator(ctx, apiKey, model)
}

func defaultModels(p Provider) []string {
	switch p {
	case ProviderGemini:
		return DefaultGeminiModels
	case ProviderGroq:
		return DefaultGroqModels
	default:
		return nil
	}
}
