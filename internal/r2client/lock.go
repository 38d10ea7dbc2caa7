package r2client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// LockInfo is the lock object's body.
type LockInfo struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DistributedLock is a TTL lock built on conditional writes. A holder that
// stops renewing loses the lock once ExpiresAt passes.
type DistributedLock struct {
	store   ObjectStore
	key     string
	ttl     time.Duration
	ownerID string
	etag    string
	now     func() time.Time
}

// NewDistributedLock creates a lock on key with a fresh owner ID.
func NewDistributedLock(store ObjectStore, key string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		store:   store,
		key:     key,
		ttl:     ttl,
		ownerID: uuid.NewString(),
		now:     time.Now,
	}
}

// OwnerID identifies this lock instance.
func (l *DistributedLock) OwnerID() string { return l.ownerID }

// Acquire takes the lock. It returns false without error when another owner
// holds an unexpired lock or wins the race for an expired one.
func (l *DistributedLock) Acquire(ctx context.Context) (bool, error) {
	body, err := l.body()
	if err != nil {
		return false, err
	}

	created, etag, err := l.store.PutObjectIfNotExists(ctx, l.key, bytes.NewReader(body), "application/json")
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if created {
		l.etag = etag
		return true, nil
	}

	info, current, err := l.read(ctx)
	if errors.Is(err, ErrNotFound) {
		// Released between our write and read; retry once from the top.
		created, etag, err = l.store.PutObjectIfNotExists(ctx, l.key, bytes.NewReader(body), "application/json")
		if err != nil {
			return false, fmt.Errorf("acquire lock: %w", err)
		}
		if created {
			l.etag = etag
		}
		return created, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if info != nil && l.now().Before(info.ExpiresAt) {
		return false, nil
	}

	stolen, etag, err := l.store.PutObjectIfMatch(ctx, l.key, bytes.NewReader(body), current, "application/json")
	if err != nil {
		return false, fmt.Errorf("acquire lock: take over expired lock: %w", err)
	}
	if stolen {
		l.etag = etag
	}
	return stolen, nil
}

// Renew pushes the expiry forward. It returns false when the lock was lost.
func (l *DistributedLock) Renew(ctx context.Context) (bool, error) {
	if l.etag == "" {
		return false, nil
	}
	body, err := l.body()
	if err != nil {
		return false, err
	}
	updated, etag, err := l.store.PutObjectIfMatch(ctx, l.key, bytes.NewReader(body), l.etag, "application/json")
	if err != nil {
		return false, fmt.Errorf("renew lock: %w", err)
	}
	if !updated {
		l.etag = ""
		return false, nil
	}
	l.etag = etag
	return true, nil
}

// Release deletes the lock if this instance still owns it.
func (l *DistributedLock) Release(ctx context.Context) error {
	defer func() { l.etag = "" }()

	info, _, err := l.read(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if info != nil && info.Owner != l.ownerID {
		return nil
	}
	return l.store.DeleteObject(ctx, l.key)
}

func (l *DistributedLock) body() ([]byte, error) {
	data, err := json.Marshal(LockInfo{Owner: l.ownerID, ExpiresAt: l.now().Add(l.ttl)})
	if err != nil {
		return nil, fmt.Errorf("marshal lock: %w", err)
	}
	return data, nil
}

// read returns the stored lock and its ETag. A body that does not decode is
// reported as a nil LockInfo, which callers treat as expired.
func (l *DistributedLock) read(ctx context.Context) (*LockInfo, string, error) {
	rc, etag, err := l.store.Download(ctx, l.key)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", fmt.Errorf("read lock: %w", err)
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, etag, nil
	}
	return &info, etag, nil
}
