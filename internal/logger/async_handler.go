package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultAsyncBufferSize   = 1024
	defaultAsyncFlushTimeout = 5 * time.Second
)

// AsyncOptions configures the async log queue.
type AsyncOptions struct {
	BufferSize   int
	FlushTimeout time.Duration
}

type queued struct {
	ctx     context.Context
	record  slog.Record
	handler slog.Handler
}

// queue is shared by an AsyncHandler and every handler derived from it.
type queue struct {
	ch           chan queued
	flushTimeout time.Duration
	mu           sync.RWMutex
	closed       bool
	dropped      atomic.Uint64
	done         chan struct{}
}

// AsyncHandler forwards records to a slow handler (network log shipping) on a
// single background goroutine. When the queue is full, records are dropped
// rather than blocking the caller.
type AsyncHandler struct {
	q       *queue
	handler slog.Handler
}

// NewAsyncHandler starts the background worker for handler.
func NewAsyncHandler(handler slog.Handler, opts AsyncOptions) *AsyncHandler {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultAsyncBufferSize
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = defaultAsyncFlushTimeout
	}

	q := &queue{
		ch:           make(chan queued, opts.BufferSize),
		flushTimeout: opts.FlushTimeout,
		done:         make(chan struct{}),
	}
	go func() {
		defer close(q.done)
		for item := range q.ch {
			_ = item.handler.Handle(item.ctx, item.record)
		}
	}()

	return &AsyncHandler{q: q, handler: handler}
}

// Enabled reports whether the wrapped handler accepts level.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle enqueues a clone of r. It never blocks.
func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	h.q.mu.RLock()
	defer h.q.mu.RUnlock()
	if h.q.closed {
		return nil
	}
	select {
	case h.q.ch <- queued{ctx: context.WithoutCancel(ctx), record: r.Clone(), handler: h.handler}:
	default:
		h.q.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a handler sharing the same queue.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{q: h.q, handler: h.handler.WithAttrs(attrs)}
}

// WithGroup returns a handler sharing the same queue.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{q: h.q, handler: h.handler.WithGroup(name)}
}

// Dropped returns how many records were discarded because the queue was full.
func (h *AsyncHandler) Dropped() uint64 {
	if h == nil {
		return 0
	}
	return h.q.dropped.Load()
}

// Shutdown stops accepting records and waits for the queue to drain, bounded
// by ctx or the configured flush timeout when ctx has no deadline.
func (h *AsyncHandler) Shutdown(ctx context.Context) error {
	if h == nil {
		return nil
	}
	h.q.mu.Lock()
	if !h.q.closed {
		h.q.closed = true
		close(h.q.ch)
	}
	h.q.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.q.flushTimeout)
		defer cancel()
	}

	select {
	case <-h.q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
