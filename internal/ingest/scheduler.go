package ingest

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/archive"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/config"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/logger"
)

// Runner performs one ingestion pass.
type Runner interface {
	Run(ctx context.Context) (*Stats, error)
}

// Lock serializes passes across replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// StateStore remembers when the last pass finished.
type StateStore interface {
	Load(ctx context.Context) (archive.SyncState, string, bool, error)
	Update(ctx context.Context, fn func(*archive.SyncState)) error
}

// SchedulerOptions configures a Scheduler. Lock and State are optional and
// only matter when several replicas share a bucket.
type SchedulerOptions struct {
	Interval   time.Duration
	RunTimeout time.Duration
	Lock       Lock
	State      StateStore
	Logger     *logger.Logger
	Now        func() time.Time
}

// Scheduler runs a pass at startup and then every Interval. Passes never
// overlap within a process.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	timeout  time.Duration
	lock     Lock
	state    StateStore
	log      *logger.Logger
	now      func() time.Time

	running sync.Mutex
	mu      sync.RWMutex
	lastRun time.Time
	lastErr error
}

// NewScheduler creates a Scheduler for runner.
func NewScheduler(runner Runner, opts SchedulerOptions) *Scheduler {
	s := &Scheduler{
		runner:   runner,
		interval: opts.Interval,
		timeout:  opts.RunTimeout,
		lock:     opts.Lock,
		state:    opts.State,
		log:      opts.Logger,
		now:      opts.Now,
	}
	if s.interval <= 0 {
		s.interval = config.DefaultSyncInterval
	}
	if s.timeout <= 0 {
		s.timeout = config.SyncRunTimeout
	}
	if s.log == nil {
		s.log = logger.NewWithWriter("error", io.Discard)
	}
	s.log = s.log.WithModule("scheduler")
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Start runs the schedule until ctx is canceled. It blocks.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.WithField("interval", s.interval.String()).InfoContext(ctx, "Ingestion scheduler started")
	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "Ingestion scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one scheduled pass unless another replica holds the lock or
// finished a pass less than half an interval ago. It reports whether a pass
// ran.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if !s.running.TryLock() {
		s.log.DebugContext(ctx, "Previous pass still running, skipping tick")
		return false
	}
	defer s.running.Unlock()

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx)
		if err != nil {
			s.log.WithError(err).WarnContext(ctx, "Ingestion lock unavailable, running without it")
		} else if !acquired {
			s.log.InfoContext(ctx, "Another replica is ingesting, skipping tick")
			return false
		} else {
			defer func() {
				if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
					s.log.WithError(err).WarnContext(ctx, "Failed to release ingestion lock")
				}
			}()
		}
	}

	if s.ranRecently(ctx) {
		return false
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.runner.Run(runCtx)

	finished := s.now()
	s.mu.Lock()
	s.lastRun, s.lastErr = finished, err
	s.mu.Unlock()
	if err != nil {
		s.log.WithError(err).WarnContext(ctx, "Ingestion pass finished with errors")
	}

	if s.state != nil && ctx.Err() == nil {
		if err := s.state.Update(ctx, func(st *archive.SyncState) {
			st.LastIngest = finished.UTC().Unix()
		}); err != nil {
			s.log.WithError(err).WarnContext(ctx, "Failed to record ingestion state")
		}
	}
	return true
}

func (s *Scheduler) ranRecently(ctx context.Context) bool {
	if s.state == nil {
		return false
	}
	state, _, exists, err := s.state.Load(ctx)
	if err != nil {
		s.log.WithError(err).WarnContext(ctx, "Failed to load ingestion state")
		return false
	}
	if !exists {
		return false
	}
	since := s.now().Sub(state.LastIngestTime())
	if since < s.interval/2 {
		s.log.WithField("since", since.String()).InfoContext(ctx, "Recent pass found, skipping tick")
		return true
	}
	return false
}

// LastRun returns when the last local pass finished and its error.
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun, s.lastErr
}
