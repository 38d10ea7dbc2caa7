package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/r2client"
)

// SyncState records when the last ingestion pass finished so replicas
// sharing a bucket do not crawl more often than the interval.
type SyncState struct {
	LastIngest int64 `json:"last_ingest"`
	UpdatedAt  int64 `json:"updated_at"`
}

// LastIngestTime returns LastIngest as a time, zero when never run.
func (s SyncState) LastIngestTime() time.Time {
	if s.LastIngest == 0 {
		return time.Time{}
	}
	return time.Unix(s.LastIngest, 0).UTC()
}

// StateStore keeps SyncState in the bucket with ETag compare-and-swap.
type StateStore struct {
	objects        r2client.ObjectStore
	key            string
	requestTimeout time.Duration
}

// NewStateStore creates a state store on key.
func NewStateStore(objects r2client.ObjectStore, key string, requestTimeout time.Duration) (*StateStore, error) {
	if objects == nil {
		return nil, errors.New("archive: object store is required")
	}
	if key == "" {
		return nil, errors.New("archive: state key is required")
	}
	return &StateStore{objects: objects, key: key, requestTimeout: requestTimeout}, nil
}

// Load returns the state and its ETag; exists is false before the first
// update. Transient errors are retried three times, cancellation is not.
func (s *StateStore) Load(ctx context.Context) (state SyncState, etag string, exists bool, err error) {
	const attempts = 3
	for attempt := range attempts {
		state, etag, exists, err = s.loadOnce(ctx)
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return state, etag, exists, err
		}
		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return SyncState{}, "", false, ctx.Err()
			case <-time.After(100 * time.Millisecond * time.Duration(attempt+1)):
			}
		}
	}
	return SyncState{}, "", false, err
}

func (s *StateStore) loadOnce(ctx context.Context) (SyncState, string, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rc, etag, err := s.objects.Download(ctx, s.key)
	if errors.Is(err, r2client.ErrNotFound) {
		return SyncState{}, "", false, nil
	}
	if err != nil {
		return SyncState{}, "", false, fmt.Errorf("archive: download state: %w", err)
	}
	defer func() { _ = rc.Close() }()

	var state SyncState
	if err := json.NewDecoder(rc).Decode(&state); err != nil {
		return SyncState{}, "", false, fmt.Errorf("archive: decode state: %w", err)
	}
	return state, etag, true, nil
}

// Update applies fn and writes the result, retrying when another replica
// wrote in between.
func (s *StateStore) Update(ctx context.Context, fn func(*SyncState)) error {
	for range 3 {
		state, etag, exists, err := s.Load(ctx)
		if err != nil {
			return err
		}

		fn(&state)
		state.UpdatedAt = time.Now().UTC().Unix()
		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("archive: marshal state: %w", err)
		}

		writeCtx, cancel := s.withTimeout(ctx)
		var written bool
		if exists {
			written, _, err = s.objects.PutObjectIfMatch(writeCtx, s.key, bytes.NewReader(data), etag, "application/json")
		} else {
			written, _, err = s.objects.PutObjectIfNotExists(writeCtx, s.key, bytes.NewReader(data), "application/json")
		}
		cancel()
		if err != nil {
			return fmt.Errorf("archive: write state: %w", err)
		}
		if written {
			return nil
		}
	}
	return errors.New("archive: state changed concurrently, giving up after retries")
}

func (s *StateStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.requestTimeout)
}
