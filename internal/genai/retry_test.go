package genai

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errUpstream503 = &LLMError{Err: errors.New("model overloaded"), StatusCode: http.StatusServiceUnavailable, Provider: ProviderGemini}
	errUpstream401 = &LLMError{Err: errors.New("api key rejected"), StatusCode: http.StatusUnauthorized, Provider: ProviderGemini}
	errQuota       = errors.New("daily limit reached for this project")
)

func TestCalculateBackoff_StaysUnderCeiling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		attempt int
		initial time.Duration
		max     time.Duration
		ceiling time.Duration
	}{
		{"before first retry", 0, 500 * time.Millisecond, 5 * time.Second, 0},
		{"first retry", 1, 500 * time.Millisecond, 5 * time.Second, 500 * time.Millisecond},
		{"doubles", 3, 500 * time.Millisecond, 5 * time.Second, 2 * time.Second},
		{"capped", 12, 500 * time.Millisecond, 5 * time.Second, 5 * time.Second},
		{"no initial delay", 2, 0, 5 * time.Second, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			for range 20 {
				d := CalculateBackoff(tt.attempt, tt.initial, tt.max)
				assert.GreaterOrEqual(t, d, time.Duration(0))
				assert.LessOrEqual(t, d, tt.ceiling)
			}
		})
	}
}

func TestSleep_ReturnsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, Sleep(ctx, 0), "non-positive durations never wait")
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestWithRetry_OnlyRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		maxAttempts  int
		errs         []error
		wantAttempts int
		wantErr      error
	}{
		{"transient then success", 3, []error{errUpstream503, nil}, 2, nil},
		{"transient until exhausted", 3, []error{errUpstream503}, 3, errUpstream503},
		{"auth failure is final", 3, []error{errUpstream401}, 1, errUpstream401},
		{"quota moves to the next model", 3, []error{errQuota}, 1, errQuota},
		{"empty reply moves to the next model", 3, []error{ErrEmptyReply}, 1, ErrEmptyReply},
		{"zero attempts still calls once", 0, []error{errUpstream503}, 1, errUpstream503},
		{"negative attempts still calls once", -2, []error{errUpstream503}, 1, errUpstream503},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := RetryConfig{MaxAttempts: tt.maxAttempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
			attempts := 0
			err := WithRetry(context.Background(), cfg, func() error {
				// The last scripted error repeats.
				e := tt.errs[min(attempts, len(tt.errs)-1)]
				attempts++
				return e
			})

			assert.Equal(t, tt.wantAttempts, attempts)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestWithRetry_StopsWhenBudgetIsShorterThanBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour}
	attempts := 0
	start := time.Now()
	err := WithRetry(ctx, cfg, func() error {
		attempts++
		return errUpstream503
	})

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, errUpstream503, "the upstream error is kept instead of a deadline error")
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithRetry_CanceledBeforeFirstCall(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := WithRetry(ctx, fastRetry, func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestHasSufficientBudget(t *testing.T) {
	t.Parallel()

	short, cancelShort := context.WithTimeout(context.Background(), time.Second)
	defer cancelShort()

	tests := []struct {
		name     string
		ctx      context.Context
		required time.Duration
		want     bool
	}{
		{"no deadline", context.Background(), time.Hour, true},
		{"fits", short, 10 * time.Millisecond, true},
		{"too long", short, time.Minute, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HasSufficientBudget(tt.ctx, tt.required), tt.name)
	}
}

func TestFallbackGenerator_RetryAcrossChain(t *testing.T) {
	t.Parallel()

	answer := func(context.Context, Prompt) (string, error) { return "yanıt", nil }
	always := func(err error) func(context.Context, Prompt) (string, error) {
		return func(context.Context, Prompt) (string, error) { return "", err }
	}

	t.Run("transient primary is retried then replaced", func(t *testing.T) {
		t.Parallel()
		primary := &mockGenerator{provider: ProviderGemini, model: "g1", generateFunc: always(errUpstream503)}
		secondary := &mockGenerator{provider: ProviderGroq, model: "l1", generateFunc: answer}

		text, err := NewFallbackGenerator(fastRetry, nil, primary, secondary).Generate(context.Background(), testPrompt)
		require.NoError(t, err)
		assert.Equal(t, "yanıt", text)
		assert.Equal(t, fastRetry.MaxAttempts, primary.Calls())
		assert.Equal(t, 1, secondary.Calls())
	})

	t.Run("quota on primary skips its retries", func(t *testing.T) {
		t.Parallel()
		primary := &mockGenerator{provider: ProviderGemini, model: "g1", generateFunc: always(errQuota)}
		secondary := &mockGenerator{provider: ProviderGroq, model: "l1", generateFunc: answer}

		_, err := NewFallbackGenerator(fastRetry, nil, primary, secondary).Generate(context.Background(), testPrompt)
		require.NoError(t, err)
		assert.Equal(t, 1, primary.Calls())
	})

	t.Run("exhausted chain wraps the upstream error", func(t *testing.T) {
		t.Parallel()
		primary := &mockGenerator{provider: ProviderGemini, model: "g1", generateFunc: always(errUpstream401)}
		secondary := &mockGenerator{provider: ProviderGroq, model: "l1", generateFunc: always(errUpstream503)}

		_, err := NewFallbackGenerator(fastRetry, nil, primary, secondary).Generate(context.Background(), testPrompt)

		var genErr *GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.Equal(t, ProviderGroq, genErr.Provider)
		assert.Equal(t, "l1", genErr.Model)

		var llmErr *LLMError
		require.ErrorAs(t, err, &llmErr)
		assert.Equal(t, http.StatusServiceUnavailable, llmErr.StatusCode)
		assert.Equal(t, 1, primary.Calls(), "auth failures are not retried")
		assert.Equal(t, fastRetry.MaxAttempts, secondary.Calls())
	})
}
