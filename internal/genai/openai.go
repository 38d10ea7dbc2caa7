package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// openaiGenerator generates replies through an OpenAI-compatible endpoint.
type openaiGenerator struct {
	client   openai.Client
	model    string
	provider Provider
}

// newOpenAIGenerator builds a generator for provider. baseURL overrides the
// provider's registered endpoint when non-empty.
func newOpenAIGenerator(provider Provider, apiKey, model, baseURL string) (*openaiGenerator, error) {
	if baseURL == "" {
		var ok bool
		baseURL, ok = ProviderEndpoint[provider]
		if !ok {
			return nil, fmt.Errorf("unsupported OpenAI-compatible provider: %s", provider)
		}
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		// Retries are driven by WithRetry.
		option.WithMaxRetries(0),
	)
	return &openaiGenerator{client: client, model: model, provider: provider}, nil
}

func (g *openaiGenerator) Generate(ctx context.Context, prompt Prompt) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.SystemInstruction),
			openai.UserMessage(prompt.Render()),
		},
		Temperature: openai.Float(0.4),
		MaxTokens:   openai.Int(512),
	}

	start := time.Now()
	resp, err := g.client.Chat.Completions.New(ctx, params)
	duration := time.Since(start)
	if err != nil {
		slog.WarnContext(ctx, "chat completion failed",
			"provider", g.provider,
			"model", g.model,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return "", WrapError(fmt.Errorf("chat completion: %w", err), g.provider)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyReply
	}

	if resp.Usage.TotalTokens > 0 {
		slog.DebugContext(ctx, "chat completion completed",
			"provider", g.provider,
			"model", g.model,
			"input_tokens", resp.Usage.PromptTokens,
			"output_tokens", resp.Usage.CompletionTokens,
			"duration_ms", duration.Milliseconds())
	}
	return text, nil
}

func (g *openaiGenerator) Provider() Provider {
	return g.provider
}

func (g *openaiGenerator) Model() string {
	return g.model
}
