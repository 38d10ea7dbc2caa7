package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/r2client"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/storage"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/timeutil"
)

// Wednesday 2025-10-22 10:00 UTC.
var now = time.Date(2025, 10, 22, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestArchive(t *testing.T, objects r2client.ObjectStore, db *storage.DB) *Archive {
	t.Helper()
	a, err := New(objects, db, Config{
		Key:      "archive/latest.json.zst",
		Location: time.FixedZone("UTC+3", 3*3600),
		Clock:    timeutil.FixedClock(now),
	}, nil)
	require.NoError(t, err)
	return a
}

func seed(t *testing.T, db *storage.DB) {
	t.Helper()
	ctx := context.Background()
	for _, date := range []string{"2025-10-19", "2025-10-20", "2025-10-22"} {
		require.NoError(t, db.UpsertDining(ctx, &storage.DiningRecord{
			Date: date, Items: []string{"Mercimek Çorbası"}, Location: "Akdeniz Üniversitesi Yemekhanesi", Source: "website",
		}))
	}
	for i, title := range []string{"Eski duyuru", "Yeni duyuru"} {
		require.NoError(t, db.UpsertAnnouncement(ctx, &storage.AnnouncementRecord{
			URL:       "https://cse.akdeniz.edu.tr/tr/duyuru/" + strings.Fields(title)[0],
			Title:     title,
			Source:    storage.SourceWebsite,
			CreatedAt: now.Add(time.Duration(i) * time.Hour),
		}))
	}
}

func TestExportRestore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	objects := r2client.NewMemoryStore()

	src := newTestDB(t)
	seed(t, src)
	require.NoError(t, newTestArchive(t, objects, src).Export(ctx))
	assert.Equal(t, 1, objects.Len())

	dst := newTestDB(t)
	restored, err := newTestArchive(t, objects, dst).RestoreIfEmpty(ctx, dst)
	require.NoError(t, err)
	require.True(t, restored)

	menus, err := dst.ListDiningSince(ctx, "2000-01-01")
	require.NoError(t, err)
	require.Len(t, menus, 2, "menus before the current week are not exported")
	assert.Equal(t, "2025-10-20", menus[0].Date)

	recent, err := dst.FindRecentAnnouncements(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "Yeni duyuru", recent[0].Title, "creation order survives a round trip")
}

func TestRestoreIfEmpty_SkipsPopulatedStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	objects := r2client.NewMemoryStore()

	db := newTestDB(t)
	seed(t, db)
	a := newTestArchive(t, objects, db)
	require.NoError(t, a.Export(ctx))

	restored, err := a.RestoreIfEmpty(ctx, db)
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestRestore_NoSnapshot(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	restored, err := newTestArchive(t, r2client.NewMemoryStore(), db).Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	_, err := Decode(bytes.NewReader([]byte("not zstd")))
	require.Error(t, err)

	data, err := Encode(&Snapshot{Version: FormatVersion + 1})
	require.NoError(t, err)
	_, err = Decode(bytes.NewReader(data))
	require.ErrorContains(t, err, "unsupported snapshot version")
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	_, err := New(nil, db, Config{Key: "k"}, nil)
	require.Error(t, err)
	_, err = New(r2client.NewMemoryStore(), db, Config{}, nil)
	require.Error(t, err)
}

type failingObjects struct {
	*r2client.MemoryStore
	err error
}

func (f failingObjects) Upload(context.Context, string, io.Reader, string) (string, error) {
	return "", f.err
}

func TestExport_UploadError(t *testing.T) {
	t.Parallel()

	boom := errors.New("bucket unavailable")
	db := newTestDB(t)
	err := newTestArchive(t, failingObjects{MemoryStore: r2client.NewMemoryStore(), err: boom}, db).Export(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestStateStore_Update(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := NewStateStore(r2client.NewMemoryStore(), "state/sync.json", time.Second)
	require.NoError(t, err)

	_, _, exists, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Update(ctx, func(st *SyncState) { st.LastIngest = now.Unix() }))
	require.NoError(t, s.Update(ctx, func(st *SyncState) {
		assert.Equal(t, now.Unix(), st.LastIngest, "updates see the stored state")
		st.LastIngest += 60
	}))

	state, etag, exists, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NotEmpty(t, etag)
	assert.Equal(t, now.Add(time.Minute), state.LastIngestTime())
	assert.True(t, SyncState{}.LastIngestTime().IsZero())
}

func TestStateStore_LoadCanceled(t *testing.T) {
	t.Parallel()

	s, err := NewStateStore(r2client.NewMemoryStore(), "state/sync.json", 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, _, err = s.Load(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}
