package genai

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// ErrorAction defines the action to take based on error type.
type ErrorAction int

const (
	// ActionRetry indicates the request should be retried with the same model.
	ActionRetry ErrorAction = iota
	// ActionFallback indicates the next model or provider should be tried.
	ActionFallback
	// ActionFail indicates the request should fail immediately.
	ActionFail
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFallback:
		return "fallback"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// ErrEmptyReply is returned when a provider answers with no text.
var ErrEmptyReply = errors.New("empty reply")

// ErrNotConfigured is returned when no provider has an API key.
var ErrNotConfigured = errors.New("no LLM provider configured")

// LLMError wraps a provider error with its HTTP status.
type LLMError struct {
	Err        error
	StatusCode int
	Provider   Provider
	Retryable  bool
}

func (e *LLMError) Error() string {
	if e.StatusCode > 0 {
		return e.Err.Error() + " (status: " + strconv.Itoa(e.StatusCode) + ")"
	}
	return e.Err.Error()
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// GenerationError is the only error a Generator chain returns to callers once
// every model has been tried.
type GenerationError struct {
	Provider Provider
	Model    string
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Model != "" {
		return "generation failed (" + string(e.Provider) + "/" + e.Model + "): " + e.Err.Error()
	}
	return "generation failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ClassifyError determines the action for err:
//   - Transient errors (429, 5xx, network) → Retry
//   - Quota exhaustion and empty replies → Fallback
//   - Permanent errors (400, 401, 403, 404) → Fail
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionFail
	}

	if errors.Is(err, context.Canceled) {
		return ActionFail
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ActionRetry
	}
	if errors.Is(err, ErrEmptyReply) {
		return ActionFallback
	}

	var llmErr *LLMError
	if errors.As(err, &llmErr) && llmErr.StatusCode > 0 {
		return classifyStatusCode(llmErr.StatusCode)
	}

	errStr := strings.ToLower(err.Error())

	if containsAny(errStr, "quota", "daily limit", "monthly limit", "billing") {
		return ActionFallback
	}
	if containsAny(errStr, "rate limit", "too many requests", "resource_exhausted", "429") {
		return ActionRetry
	}
	if containsAny(errStr, "unavailable", "503", "502", "500", "504",
		"internal server error", "bad gateway", "gateway timeout", "overloaded", "capacity") {
		return ActionRetry
	}
	if containsAny(errStr, "408", "409", "timeout", "deadline", "connection") {
		return ActionRetry
	}
	if containsAny(errStr, "400", "invalid", "bad request", "malformed",
		"401", "unauthorized", "unauthenticated",
		"403", "forbidden", "permission denied",
		"404", "not found", "422", "unprocessable") {
		return ActionFail
	}

	// Unknown errors are retried.
	return ActionRetry
}

func classifyStatusCode(statusCode int) ErrorAction {
	switch {
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusConflict,
		statusCode >= 500 && statusCode < 600:
		return ActionRetry
	case statusCode >= 400 && statusCode < 500:
		return ActionFail
	default:
		return ActionRetry
	}
}

// ParseRetryAfter parses retry hints from response headers.
// Returns 0 if no usable header is present.
func ParseRetryAfter(headers http.Header) time.Duration {
	if msStr := headers.Get("retry-after-ms"); msStr != "" {
		if ms, err := strconv.Atoi(msStr); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}

	if secStr := headers.Get("retry-after"); secStr != "" {
		if sec, err := strconv.Atoi(secStr); err == nil && sec > 0 {
			return time.Duration(sec) * time.Second
		}
		if t, err := http.ParseTime(secStr); err == nil {
			return time.Until(t)
		}
	}

	// Groq-specific
	if resetStr := headers.Get("x-ratelimit-reset-tokens"); resetStr != "" {
		if d, err := time.ParseDuration(resetStr); err == nil {
			return d
		}
	}

	return 0
}

// WrapError attaches provider and HTTP status to err. The status is taken
// from the SDK error types when present.
func WrapError(err error, provider Provider) error {
	if err == nil {
		return nil
	}
	status := 0
	var oaErr *openai.Error
	var gErr genai.APIError
	switch {
	case errors.As(err, &oaErr):
		status = oaErr.StatusCode
	case errors.As(err, &gErr):
		status = gErr.Code
	}
	wrapped := &LLMError{Err: err, StatusCode: status, Provider: provider}
	wrapped.Retryable = ClassifyError(wrapped) == ActionRetry
	return wrapped
}

// statusLabel maps an attempt outcome to a metric status label.
func statusLabel(err error) string {
	if err == nil {
		return "success"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var llmErr *LLMError
	if errors.As(err, &llmErr) {
		switch {
		case llmErr.StatusCode == http.StatusTooManyRequests:
			return "rate_limit"
		case llmErr.StatusCode >= 500:
			return "server_error"
		case llmErr.StatusCode == http.StatusUnauthorized || llmErr.StatusCode == http.StatusForbidden:
			return "auth_error"
		}
	}
	switch ClassifyError(err) {
	case ActionFallback:
		return "exhausted"
	case ActionRetry:
		return "transient_error"
	default:
		return "error"
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
