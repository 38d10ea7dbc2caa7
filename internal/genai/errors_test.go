package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected ErrorAction
	}{
		{name: "nil error", err: nil, expected: ActionFail},

		// Context errors
		{name: "context canceled", err: context.Canceled, expected: ActionFail},
		{name: "context deadline exceeded", err: context.DeadlineExceeded, expected: ActionRetry},
		{name: "wrapped deadline", err: fmt.Errorf("generate: %w", context.DeadlineExceeded), expected: ActionRetry},

		{name: "empty reply", err: ErrEmptyReply, expected: ActionFallback},

		// Wrapped LLMError
		{name: "LLMError 429", err: &LLMError{Err: errors.New("rate limited"), StatusCode: http.StatusTooManyRequests}, expected: ActionRetry},
		{name: "LLMError 500", err: &LLMError{Err: errors.New("server error"), StatusCode: http.StatusInternalServerError}, expected: ActionRetry},
		{name: "LLMError 400", err: &LLMError{Err: errors.New("bad request"), StatusCode: http.StatusBadRequest}, expected: ActionFail},
		{name: "LLMError 401", err: &LLMError{Err: errors.New("unauthorized"), StatusCode: http.StatusUnauthorized}, expected: ActionFail},
		{name: "LLMError without status falls through to message", err: &LLMError{Err: errors.New("quota exceeded")}, expected: ActionFallback},

		// Message patterns
		{name: "quota exhausted", err: errors.New("quota exceeded"), expected: ActionFallback},
		{name: "resource exhausted with quota", err: errors.New("RESOURCE_EXHAUSTED: quota limit"), expected: ActionFallback},
		{name: "daily limit", err: errors.New("daily limit reached"), expected: ActionFallback},
		{name: "rate limit", err: errors.New("rate limit exceeded temporarily"), expected: ActionRetry},
		{name: "too many requests", err: errors.New("too many requests"), expected: ActionRetry},
		{name: "service unavailable", err: errors.New("service temporarily unavailable"), expected: ActionRetry},
		{name: "bad gateway", err: errors.New("bad gateway"), expected: ActionRetry},
		{name: "overloaded", err: errors.New("server overloaded"), expected: ActionRetry},
		{name: "invalid request", err: errors.New("invalid request format"), expected: ActionFail},
		{name: "invalid api key", err: errors.New("invalid api key"), expected: ActionFail},
		{name: "forbidden", err: errors.New("forbidden"), expected: ActionFail},
		{name: "not found", err: errors.New("model not found"), expected: ActionFail},

		{name: "unknown error", err: errors.New("something unexpected happened"), expected: ActionRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := ClassifyError(tt.err)
			if result != tt.expected {
				t.Errorf("ClassifyError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestClassifyStatusCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code     int
		expected ErrorAction
	}{
		{http.StatusTooManyRequests, ActionRetry},
		{http.StatusRequestTimeout, ActionRetry},
		{http.StatusConflict, ActionRetry},
		{http.StatusInternalServerError, ActionRetry},
		{http.StatusServiceUnavailable, ActionRetry},
		{http.StatusBadRequest, ActionFail},
		{http.StatusUnauthorized, ActionFail},
		{http.StatusForbidden, ActionFail},
		{http.StatusNotFound, ActionFail},
		{http.StatusTeapot, ActionFail},
		{0, ActionRetry},
	}
	for _, tt := range tests {
		if got := classifyStatusCode(tt.code); got != tt.expected {
			t.Errorf("classifyStatusCode(%d) = %v, want %v", tt.code, got, tt.expected)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		headers  map[string]string
		expected time.Duration
	}{
		{name: "no headers", headers: nil, expected: 0},
		{name: "milliseconds", headers: map[string]string{"retry-after-ms": "1500"}, expected: 1500 * time.Millisecond},
		{name: "seconds", headers: map[string]string{"retry-after": "3"}, expected: 3 * time.Second},
		{name: "ms wins over seconds", headers: map[string]string{"retry-after-ms": "200", "retry-after": "3"}, expected: 200 * time.Millisecond},
		{name: "groq reset", headers: map[string]string{"x-ratelimit-reset-tokens": "7.5s"}, expected: 7500 * time.Millisecond},
		{name: "garbage", headers: map[string]string{"retry-after": "soon"}, expected: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			if got := ParseRetryAfter(h); got != tt.expected {
				t.Errorf("ParseRetryAfter() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	if WrapError(nil, ProviderGemini) != nil {
		t.Error("WrapError(nil) should be nil")
	}

	base := errors.New("service unavailable")
	err := WrapError(base, ProviderGroq)

	var llmErr *LLMError
	if !errors.As(err, &llmErr) {
		t.Fatalf("expected *LLMError, got %T", err)
	}
	if llmErr.Provider != ProviderGroq {
		t.Errorf("Provider = %q, want groq", llmErr.Provider)
	}
	if !llmErr.Retryable {
		t.Error("service unavailable should be retryable")
	}
	if !errors.Is(err, base) {
		t.Error("WrapError should keep the cause in the chain")
	}
}

func TestGenerationError(t *testing.T) {
	t.Parallel()

	err := &GenerationError{Provider: ProviderGemini, Model: "gemini-2.5-flash", Err: context.DeadlineExceeded}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("GenerationError should unwrap to its cause")
	}
	want := "generation failed (gemini/gemini-2.5-flash): context deadline exceeded"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestStatusLabel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{context.DeadlineExceeded, "timeout"},
		{context.Canceled, "canceled"},
		{&LLMError{Err: errors.New("x"), StatusCode: 429}, "rate_limit"},
		{&LLMError{Err: errors.New("x"), StatusCode: 503}, "server_error"},
		{&LLMError{Err: errors.New("x"), StatusCode: 401}, "auth_error"},
		{ErrEmptyReply, "exhausted"},
		{errors.New("weird"), "transient_error"},
		{errors.New("bad request"), "error"},
	}
	for _, tt := range tests {
		if got := statusLabel(tt.err); got != tt.want {
			t.Errorf("statusLabel(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestErrorActionString(t *testing.T) {
	t.Parallel()
	for action, want := range map[ErrorAction]string{
		ActionRetry:     "retry",
		ActionFallback:  "fallback",
		ActionFail:      "fail",
		ErrorAction(42): "unknown",
	} {
		if got := action.String(); got != want {
			t.Errorf("ErrorAction(%d).String() = %q, want %q", action, got, want)
		}
	}
}
