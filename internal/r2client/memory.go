package r2client

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
)

// MemoryStore is an in-process ObjectStore with the same conditional write
// semantics as R2. It backs tests and local runs without a bucket.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]memoryObject
	version int
}

type memoryObject struct {
	data []byte
	etag string
}

var _ ObjectStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// Upload implements ObjectStore.
func (m *MemoryStore) Upload(ctx context.Context, key string, body io.Reader, _ string) (string, error) {
	data, err := readAll(ctx, body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(key, data), nil
}

// Download implements ObjectStore.
func (m *MemoryStore) Download(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.etag, nil
}

// PutObjectIfNotExists implements ObjectStore.
func (m *MemoryStore) PutObjectIfNotExists(ctx context.Context, key string, body io.Reader, _ string) (bool, string, error) {
	data, err := readAll(ctx, body)
	if err != nil {
		return false, "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; ok {
		return false, "", nil
	}
	return true, m.put(key, data), nil
}

// PutObjectIfMatch implements ObjectStore.
func (m *MemoryStore) PutObjectIfMatch(ctx context.Context, key string, body io.Reader, etag string, _ string) (bool, string, error) {
	data, err := readAll(ctx, body)
	if err != nil {
		return false, "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok || obj.etag != etag {
		return false, "", nil
	}
	return true, m.put(key, data), nil
}

// DeleteObject implements ObjectStore.
func (m *MemoryStore) DeleteObject(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func (m *MemoryStore) put(key string, data []byte) string {
	m.version++
	sum := md5.Sum(data)
	etag := fmt.Sprintf("%s-%d", hex.EncodeToString(sum[:]), m.version)
	m.objects[key] = memoryObject{data: data, etag: etag}
	return etag
}

func readAll(ctx context.Context, body io.Reader) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}
