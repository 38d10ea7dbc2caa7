package scraper

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Group collapses concurrent fetches of the same key into one call.
type Group struct {
	group    singleflight.Group
	recorder Recorder
}

// NewGroup creates a Group. recorder may be nil.
func NewGroup(recorder Recorder) *Group {
	return &Group{recorder: recorder}
}

// Do runs fn once per key among concurrent callers. Callers that joined an
// in-flight call are counted as deduplicated.
func Do[T any](ctx context.Context, g *Group, module, key string, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	v, err, shared := g.group.Do(key, func() (any, error) {
		return fn()
	})
	if shared && g.recorder != nil {
		g.recorder.RecordSingleflightDedup(module)
	}
	if err != nil {
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

// Forget drops key so the next caller starts a fresh call.
func (g *Group) Forget(key string) {
	g.group.Forget(key)
}
