// Package sentry reports errors to Better Stack through the Sentry SDK.
// Reporting is a no-op until Initialize is called with a token.
package sentry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/ctxutil"
	apperrors "github.com/akdenizcse/akdeniz-chatbot-go/internal/errors"
)

// Config holds Better Stack error tracking settings.
type Config struct {
	// Token is the Better Stack Errors application token.
	Token string

	// Host is the ingesting host, e.g. "errors.betterstack.com".
	Host string

	Environment string
	Release     string

	// SampleRate is in (0, 1]; zero means 1.
	SampleRate float64

	Debug bool
}

// Initialize sets up the SDK. An empty Token leaves reporting disabled.
// The DSN has the form https://$TOKEN@$HOST/1; Better Stack ignores the
// project ID but the SDK requires one.
func Initialize(cfg Config) error {
	if cfg.Token == "" {
		return nil
	}
	if cfg.Host == "" {
		return errors.New("sentry host is required when token is provided")
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1.0
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              fmt.Sprintf("https://%s@%s/1", cfg.Token, cfg.Host),
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
	})
}

// Flush waits up to timeout for buffered events. It reports whether all
// events were sent.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled reports whether a client is bound to the current hub.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureError reports err with the request's tracing values and, for
// collaborator failures, the collaborator and operation as tags. Canceled
// requests are not reported.
func CaptureError(ctx context.Context, err error) {
	if err == nil || errors.Is(err, context.Canceled) || !IsEnabled() {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range Tags(ctx, err) {
			scope.SetTag(k, v)
		}
		if userID := ctxutil.GetUserID(ctx); userID != "" {
			scope.SetUser(sentry.User{ID: userID})
		}
		hub.CaptureException(err)
	})
}

// Tags returns the tags CaptureError attaches to err.
func Tags(ctx context.Context, err error) map[string]string {
	tags := make(map[string]string)
	var collab *apperrors.CollaboratorError
	if errors.As(err, &collab) {
		tags["collaborator"] = collab.Collaborator
		tags["op"] = collab.Op
	}
	if errors.Is(err, apperrors.ErrTimeout) {
		tags["timeout"] = "true"
	}
	if requestID, ok := ctxutil.GetRequestID(ctx); ok {
		tags["request_id"] = requestID
	}
	if chatID := ctxutil.GetChatID(ctx); chatID != "" {
		tags["chat_id"] = chatID
	}
	return tags
}
