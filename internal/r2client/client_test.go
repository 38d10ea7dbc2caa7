package r2client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/smithy-go"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	full := Config{Endpoint: "https://r2.example", AccessKeyID: "id", SecretKey: "secret", BucketName: "bucket"}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"complete", func(*Config) {}, false},
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, true},
		{"missing key", func(c *Config) { c.AccessKeyID = "" }, true},
		{"missing secret", func(c *Config) { c.SecretKey = "" }, true},
		{"missing bucket", func(c *Config) { c.BucketName = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := full
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	if !isNotFound(&smithy.GenericAPIError{Code: "NoSuchKey"}) {
		t.Error("NoSuchKey should be not found")
	}
	if isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}) {
		t.Error("AccessDenied should not be not found")
	}
	if !isPreconditionFailed(&smithy.GenericAPIError{Code: "PreconditionFailed"}) {
		t.Error("PreconditionFailed should be detected")
	}
	if isPreconditionFailed(errors.New("boom")) {
		t.Error("plain errors are not precondition failures")
	}
}

// fakeS3 answers path-style GET and PUT for one bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/bucket/")
	switch r.Method {
	case http.MethodPut:
		if r.Header.Get("If-None-Match") == "*" {
			if _, ok := f.objects[key]; ok {
				w.WriteHeader(http.StatusPreconditionFailed)
				_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>PreconditionFailed</Code><Message>exists</Message></Error>`))
				return
			}
		}
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = string(body)
		w.Header().Set("ETag", `"etag-`+key+`"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
			return
		}
		w.Header().Set("ETag", `"etag-`+key+`"`)
		_, _ = w.Write([]byte(body))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestClient_AgainstS3API(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	srv := httptest.NewServer(&fakeS3{objects: map[string]string{}})
	defer srv.Close()

	ctx := context.Background()
	c, err := New(ctx, Config{Endpoint: srv.URL, AccessKeyID: "id", SecretKey: "secret", BucketName: "bucket"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if _, _, err := c.Download(ctx, "missing.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Download(missing) error = %v, want ErrNotFound", err)
	}

	etag, err := c.Upload(ctx, "archive.json", bytes.NewReader([]byte(`{"ok":true}`)), "application/json")
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if etag != "etag-archive.json" {
		t.Errorf("Upload() etag = %q, want unquoted etag", etag)
	}

	rc, gotETag, err := c.Download(ctx, "archive.json")
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	defer func() { _ = rc.Close() }()
	body, _ := io.ReadAll(rc)
	if string(body) != `{"ok":true}` || gotETag != etag {
		t.Errorf("Download() = %q, %q", body, gotETag)
	}

	created, _, err := c.PutObjectIfNotExists(ctx, "archive.json", bytes.NewReader([]byte(`{}`)), "application/json")
	if err != nil {
		t.Fatalf("PutObjectIfNotExists() error: %v", err)
	}
	if created {
		t.Error("PutObjectIfNotExists() must not overwrite an existing object")
	}
}

func TestMemoryStore_ConditionalWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemoryStore()

	created, etag, err := m.PutObjectIfNotExists(ctx, "k", strings.NewReader("v1"), "")
	if err != nil || !created {
		t.Fatalf("first create = %v, %v", created, err)
	}
	if created, _, _ := m.PutObjectIfNotExists(ctx, "k", strings.NewReader("v2"), ""); created {
		t.Error("second create must fail")
	}
	if ok, _, _ := m.PutObjectIfMatch(ctx, "k", strings.NewReader("v2"), "stale", ""); ok {
		t.Error("stale etag must not match")
	}
	ok, newETag, _ := m.PutObjectIfMatch(ctx, "k", strings.NewReader("v1"), etag, "")
	if !ok || newETag == etag {
		t.Errorf("matching write = %v, etag %q (old %q); every write needs a new etag", ok, newETag, etag)
	}
	if err := m.DeleteObject(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := m.Download(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Download after delete = %v, want ErrNotFound", err)
	}
}

func TestDistributedLock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	a := NewDistributedLock(store, "locks/ingest", time.Minute)
	b := NewDistributedLock(store, "locks/ingest", time.Minute)
	if a.OwnerID() == b.OwnerID() {
		t.Fatal("owner IDs must be unique")
	}

	if ok, err := a.Acquire(ctx); err != nil || !ok {
		t.Fatalf("a.Acquire() = %v, %v", ok, err)
	}
	if ok, err := b.Acquire(ctx); err != nil || ok {
		t.Fatalf("b.Acquire() while held = %v, %v", ok, err)
	}
	if ok, err := a.Renew(ctx); err != nil || !ok {
		t.Fatalf("a.Renew() = %v, %v", ok, err)
	}

	// b releasing a lock it does not own leaves it in place.
	if err := b.Release(ctx); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 1 {
		t.Fatal("lock must survive a release by a non-owner")
	}

	if err := a.Release(ctx); err != nil {
		t.Fatal(err)
	}
	if ok, err := b.Acquire(ctx); err != nil || !ok {
		t.Fatalf("b.Acquire() after release = %v, %v", ok, err)
	}
}

func TestDistributedLock_TakesOverExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	stale := NewDistributedLock(store, "lock", time.Minute)
	if ok, _ := stale.Acquire(ctx); !ok {
		t.Fatal("initial acquire failed")
	}

	fresh := NewDistributedLock(store, "lock", time.Minute)
	fresh.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if ok, err := fresh.Acquire(ctx); err != nil || !ok {
		t.Fatalf("Acquire() of expired lock = %v, %v", ok, err)
	}

	if ok, _ := stale.Renew(ctx); ok {
		t.Error("the previous owner must not renew a taken-over lock")
	}
}
