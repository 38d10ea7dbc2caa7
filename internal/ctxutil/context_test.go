package ctxutil

import (
	"context"
	"testing"
	"time"
)

func TestTracingValues(t *testing.T) {
	t.Parallel()

	t.Run("empty context", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		if got := GetUserID(ctx); got != "" {
			t.Errorf("GetUserID() = %q, want empty", got)
		}
		if got := GetChatID(ctx); got != "" {
			t.Errorf("GetChatID() = %q, want empty", got)
		}
		if _, ok := GetRequestID(ctx); ok {
			t.Error("GetRequestID() reported a value on an empty context")
		}
		if IsGroup(ctx) {
			t.Error("IsGroup() = true on an empty context")
		}
	})

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		ctx := WithUserID(context.Background(), "905551112233")
		ctx = WithChatID(ctx, "chat-42")
		ctx = WithRequestID(ctx, "req-1")
		ctx = WithIsGroup(ctx, true)

		if got := GetUserID(ctx); got != "905551112233" {
			t.Errorf("GetUserID() = %q", got)
		}
		if got := GetChatID(ctx); got != "chat-42" {
			t.Errorf("GetChatID() = %q", got)
		}
		if got, ok := GetRequestID(ctx); !ok || got != "req-1" {
			t.Errorf("GetRequestID() = %q, %v", got, ok)
		}
		if !IsGroup(ctx) {
			t.Error("IsGroup() = false, want true")
		}
	})

	t.Run("empty request id is absent", func(t *testing.T) {
		t.Parallel()
		ctx := WithRequestID(context.Background(), "")
		if _, ok := GetRequestID(ctx); ok {
			t.Error("empty request ID should report absent")
		}
	})
}

func TestPreserveTracing(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	parent = WithUserID(parent, "u1")
	parent = WithChatID(parent, "c1")
	parent = WithRequestID(parent, "r1")
	parent = WithIsGroup(parent, true)
	cancel()

	detached := PreserveTracing(parent)

	if detached.Err() != nil {
		t.Errorf("detached context inherited cancellation: %v", detached.Err())
	}
	if _, ok := detached.Deadline(); ok {
		t.Error("detached context inherited a deadline")
	}
	if GetUserID(detached) != "u1" || GetChatID(detached) != "c1" || !IsGroup(detached) {
		t.Error("tracing values were not preserved")
	}
	if id, _ := GetRequestID(detached); id != "r1" {
		t.Errorf("request ID = %q, want r1", id)
	}
}
