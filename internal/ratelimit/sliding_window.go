package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindowCounter caps requests over a rolling window using two fixed
// windows and a weighted count:
//
//	effective = current + previous × (time left in current window / window)
//
// A nil counter allows everything.
type SlidingWindowCounter struct {
	mu          sync.Mutex
	curr, prev  int
	windowStart time.Time
	window      time.Duration
	max         int
	now         func() time.Time
}

// NewSlidingWindowCounter returns nil when maxRequests <= 0.
func NewSlidingWindowCounter(maxRequests int, window time.Duration, now func() time.Time) *SlidingWindowCounter {
	if maxRequests <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &SlidingWindowCounter{
		windowStart: now(),
		window:      window,
		max:         maxRequests,
		now:         now,
	}
}

// Allow consumes one request if the window has room.
func (c *SlidingWindowCounter) Allow() bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.effective() >= float64(c.max) {
		return false
	}
	c.curr++
	return true
}

// Remaining returns the approximate requests left, -1 when unlimited.
func (c *SlidingWindowCounter) Remaining() int {
	if c == nil {
		return -1
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return max(0, int(float64(c.max)-c.effective()))
}

// Idle reports whether no request counts toward the window any more.
func (c *SlidingWindowCounter) Idle() bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.effective() == 0
}

// effective rotates expired windows and returns the weighted count. Callers
// hold mu.
func (c *SlidingWindowCounter) effective() float64 {
	now := c.now()
	if elapsed := now.Sub(c.windowStart); elapsed >= c.window {
		passed := int(elapsed / c.window)
		if passed == 1 {
			c.prev = c.curr
		} else {
			c.prev = 0
		}
		c.curr = 0
		c.windowStart = c.windowStart.Add(time.Duration(passed) * c.window)
	}

	overlap := float64(c.window-now.Sub(c.windowStart)) / float64(c.window)
	overlap = min(max(overlap, 0), 1)
	return float64(c.curr) + float64(c.prev)*overlap
}
