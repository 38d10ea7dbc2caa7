// Package genai produces chat replies and announcement summaries with hosted
// LLM APIs (Gemini and Groq).
//
// Failures are handled in three layers:
//  1. Retry with full-jitter backoff on the same model
//  2. Next model of the same provider
//  3. Next provider in LLM_PROVIDERS order
//
// Callers get either text or a *GenerationError; they decide what the user sees.
package genai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider represents an LLM provider.
type Provider string

const (
	// ProviderGemini is Google's Gemini API.
	ProviderGemini Provider = "gemini"
	// ProviderGroq is Groq's OpenAI-compatible API.
	ProviderGroq Provider = "groq"
)

// ProviderEndpoint defines the base URL for OpenAI-compatible providers.
var ProviderEndpoint = map[Provider]string{
	ProviderGroq: "https://api.groq.com/openai/v1/",
}

// IsOpenAICompatible reports whether p is served through the OpenAI client.
func (p Provider) IsOpenAICompatible() bool {
	_, ok := ProviderEndpoint[p]
	return ok
}

func (p Provider) String() string {
	return string(p)
}

// ParseProvider maps a configuration value to a Provider.
func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderGemini:
		return ProviderGemini, nil
	case ProviderGroq:
		return ProviderGroq, nil
	default:
		return "", fmt.Errorf("unknown LLM provider %q", s)
	}
}

// Prompt is one generation request. SystemInstruction and Query are required;
// an empty Context is rendered as N/A.
type Prompt struct {
	SystemInstruction string
	Context           string
	Query             string
}

// Render flattens the prompt into the single text block sent as the user turn.
func (p Prompt) Render() string {
	ctx := strings.TrimSpace(p.Context)
	if ctx == "" {
		ctx = "N/A"
	}
	return "System instruction:\n" + p.SystemInstruction +
		"\n\nContext data:\n" + ctx +
		"\n\nUser query:\n" + p.Query
}

// Generator turns a prompt into reply text.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
	// Provider returns the provider type for metrics.
	Provider() Provider
}

// Recorder receives one observation per generation attempt.
type Recorder interface {
	RecordGeneration(provider, status string)
}

// RetryConfig configures retry behavior for a single model.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts per model.
	// Default: 2 (1 initial + 1 retry)
	MaxAttempts int

	// InitialDelay is the initial backoff delay.
	// Default: 500ms
	InitialDelay time.Duration

	// MaxDelay caps a single backoff delay.
	// Default: 3s
	MaxDelay time.Duration
}

// ProviderConfig holds configuration for a single LLM provider.
type ProviderConfig struct {
	APIKey string
	// Models are tried in order.
	Models []string
}

// Config configures the generator chain.
type Config struct {
	// Providers is the ordered list of providers to try. Providers without an
	// API key are skipped.
	Providers []Provider

	Gemini ProviderConfig
	Groq   ProviderConfig

	Retry RetryConfig
}

// ConfiguredProviders returns Providers filtered to those with an API key,
// defaulting to gemini then groq when Providers is empty.
func (c Config) ConfiguredProviders() []Provider {
	order := c.Providers
	if len(order) == 0 {
		order = []Provider{ProviderGemini, ProviderGroq}
	}
	seen := make(map[Provider]bool, len(order))
	var out []Provider
	for _, p := range order {
		if seen[p] || c.provider(p).APIKey == "" {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func (c Config) provider(p Provider) ProviderConfig {
	switch p {
	case ProviderGemini:
		return c.Gemini
	case ProviderGroq:
		return c.Groq
	default:
		return ProviderConfig{}
	}
}

// Default model chains.
var (
	DefaultGeminiModels = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}
	DefaultGroqModels   = []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant"}
)

const (
	DefaultMaxRetryAttempts  = 2
	DefaultInitialRetryDelay = 500 * time.Millisecond
	DefaultMaxRetryDelay     = 3 * time.Second
)

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultMaxRetryAttempts,
		InitialDelay: DefaultInitialRetryDelay,
		MaxDelay:     DefaultMaxRetryDelay,
	}
}
