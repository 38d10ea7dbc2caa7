package genai

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// modeler is implemented by generators bound to a single model.
type modeler interface {
	Model() string
}

// FallbackGenerator tries each generator in order, retrying transient errors
// on the same generator before moving on.
type FallbackGenerator struct {
	chain    []Generator
	retry    RetryConfig
	recorder Recorder
}

// NewFallbackGenerator chains generators. The first is the primary.
func NewFallbackGenerator(retry RetryConfig, recorder Recorder, chain ...Generator) *FallbackGenerator {
	return &FallbackGenerator{chain: chain, retry: retry, recorder: recorder}
}

// Generate returns the first successful reply. When every generator fails the
// error is a *GenerationError naming the last one tried.
func (f *FallbackGenerator) Generate(ctx context.Context, prompt Prompt) (string, error) {
	if f == nil || len(f.chain) == 0 {
		return "", &GenerationError{Err: ErrNotConfigured}
	}

	start := time.Now()
	var lastErr error
	var last Generator

	for i, g := range f.chain {
		last = g
		var text string
		err := WithRetry(ctx, f.retry, func() error {
			var genErr error
			text, genErr = g.Generate(ctx, prompt)
			f.record(g.Provider(), genErr)
			return genErr
		})
		if err == nil {
			if i > 0 {
				slog.InfoContext(ctx, "generation served by fallback",
					"provider", g.Provider(),
					"model", modelOf(g),
					"position", i,
					"duration", time.Since(start))
			}
			return text, nil
		}
		lastErr = err

		action := ClassifyError(err)
		slog.WarnContext(ctx, "generator failed",
			"provider", g.Provider(),
			"model", modelOf(g),
			"action", action,
			"error", err)

		// A canceled or expired request cannot be served by any other model.
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			break
		}
	}

	return "", &GenerationError{Provider: last.Provider(), Model: modelOf(last), Err: lastErr}
}

// Provider returns the primary provider.
func (f *FallbackGenerator) Provider() Provider {
	if f == nil || len(f.chain) == 0 {
		return ""
	}
	return f.chain[0].Provider()
}

// Len returns the number of generators in the chain.
func (f *FallbackGenerator) Len() int {
	if f == nil {
		return 0
	}
	return len(f.chain)
}

func (f *FallbackGenerator) record(p Provider, err error) {
	if f.recorder != nil {
		f.recorder.RecordGeneration(string(p), statusLabel(err))
	}
}

func modelOf(g Generator) string {
	if m, ok := g.(modeler); ok {
		return m.Model()
	}
	return ""
}
