// Package ctxutil provides type-safe context value management for request
// tracing values. Private key types prevent collisions with other packages.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	userIDKey    contextKey = "ctxutil.userID"
	chatIDKey    contextKey = "ctxutil.chatID"
	requestIDKey contextKey = "ctxutil.requestID"
	isGroupKey   contextKey = "ctxutil.isGroup"
)

// WithUserID adds the caller's user identifier to the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID returns the user identifier, or an empty string when absent.
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDKey).(string); ok {
		return userID
	}
	return ""
}

// WithChatID adds the conversation identifier (direct chat or group) to the context.
func WithChatID(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, chatIDKey, chatID)
}

// GetChatID returns the chat identifier, or an empty string when absent.
func GetChatID(ctx context.Context) string {
	if chatID, ok := ctx.Value(chatIDKey).(string); ok {
		return chatID
	}
	return ""
}

// WithRequestID adds a request ID for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request ID and whether one was set.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok && requestID != ""
}

// WithIsGroup marks whether the message came from a group conversation.
func WithIsGroup(ctx context.Context, isGroup bool) context.Context {
	return context.WithValue(ctx, isGroupKey, isGroup)
}

// IsGroup reports whether the context was marked as a group conversation.
func IsGroup(ctx context.Context) bool {
	v, _ := ctx.Value(isGroupKey).(bool)
	return v
}

// PreserveTracing creates a detached context carrying only tracing values.
// The result does not inherit the parent's cancellation or deadline, so it
// can be used for work that outlives an HTTP response (LINE replies, archive
// uploads) without retaining the parent context.
func PreserveTracing(ctx context.Context) context.Context {
	newCtx := context.Background()

	if userID := GetUserID(ctx); userID != "" {
		newCtx = WithUserID(newCtx, userID)
	}
	if chatID := GetChatID(ctx); chatID != "" {
		newCtx = WithChatID(newCtx, chatID)
	}
	if requestID, ok := GetRequestID(ctx); ok {
		newCtx = WithRequestID(newCtx, requestID)
	}
	if IsGroup(ctx) {
		newCtx = WithIsGroup(newCtx, true)
	}

	return newCtx
}
