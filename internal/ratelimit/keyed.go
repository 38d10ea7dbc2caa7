// Package ratelimit throttles callers per key (user ID or client IP) with a
// token bucket and an optional rolling daily cap.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Recorder receives dropped-request events.
type Recorder interface {
	RecordRateLimiterDrop(surface string)
}

// KeyedConfig configures a KeyedLimiter.
type KeyedConfig struct {
	// Name labels drops in metrics, e.g. "answer" or "webhook".
	Name string

	RequestsPerSecond float64
	Burst             int

	// DailyLimit caps requests per key over a rolling 24h window; 0 disables it.
	DailyLimit int

	// CleanupPeriod is how often keys idle for at least one period are evicted.
	CleanupPeriod time.Duration

	Recorder Recorder

	// Now overrides the clock in tests.
	Now func() time.Time
}

// KeyedLimiter holds one bucket per key. It is safe for concurrent use.
type KeyedLimiter struct {
	cfg     KeyedConfig
	mu      sync.Mutex
	entries map[string]*keyedEntry
	stopCh  chan struct{}
	stop    sync.Once
}

type keyedEntry struct {
	mu       sync.Mutex
	bucket   *rate.Limiter
	daily    *SlidingWindowCounter
	lastSeen time.Time
}

// NewKeyedLimiter starts the cleanup loop when CleanupPeriod is positive.
// Call Stop to end it.
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	kl := &KeyedLimiter{
		cfg:     cfg,
		entries: make(map[string]*keyedEntry),
		stopCh:  make(chan struct{}),
	}
	if cfg.CleanupPeriod > 0 {
		go kl.cleanupLoop()
	}
	return kl
}

// Allow reports whether key may make a request now, consuming a token and a
// daily slot when it may. An empty key is never limited.
func (kl *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	entry := kl.entry(key)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := kl.cfg.Now()
	entry.lastSeen = now

	// Reserve first so a daily rejection does not burn a token.
	res := entry.bucket.ReserveN(now, 1)
	if !res.OK() || res.DelayFrom(now) > 0 {
		res.CancelAt(now)
		kl.drop()
		return false
	}
	if !entry.daily.Allow() {
		res.CancelAt(now)
		kl.drop()
		return false
	}
	return true
}

// DailyRemaining returns the rolling quota left for key, -1 when disabled.
func (kl *KeyedLimiter) DailyRemaining(key string) int {
	if kl.cfg.DailyLimit <= 0 {
		return -1
	}
	kl.mu.Lock()
	entry, ok := kl.entries[key]
	kl.mu.Unlock()
	if !ok {
		return kl.cfg.DailyLimit
	}
	return entry.daily.Remaining()
}

// ActiveCount returns the number of tracked keys.
func (kl *KeyedLimiter) ActiveCount() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.entries)
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (kl *KeyedLimiter) Stop() {
	kl.stop.Do(func() { close(kl.stopCh) })
}

func (kl *KeyedLimiter) entry(key string) *keyedEntry {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if e, ok := kl.entries[key]; ok {
		return e
	}
	e := &keyedEntry{
		bucket: rate.NewLimiter(rate.Limit(kl.cfg.RequestsPerSecond), kl.cfg.Burst),
		daily:  NewSlidingWindowCounter(kl.cfg.DailyLimit, 24*time.Hour, kl.cfg.Now),
	}
	kl.entries[key] = e
	return e
}

func (kl *KeyedLimiter) drop() {
	if kl.cfg.Recorder != nil {
		kl.cfg.Recorder.RecordRateLimiterDrop(kl.cfg.Name)
	}
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.cfg.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.Cleanup()
		}
	}
}

// Cleanup evicts keys idle for a full cleanup period whose daily window is
// also empty.
func (kl *KeyedLimiter) Cleanup() {
	now := kl.cfg.Now()
	kl.mu.Lock()
	defer kl.mu.Unlock()

	for key, e := range kl.entries {
		e.mu.Lock()
		idle := now.Sub(e.lastSeen) >= kl.cfg.CleanupPeriod && e.daily.Idle()
		e.mu.Unlock()
		if idle {
			delete(kl.entries, key)
		}
	}
}
