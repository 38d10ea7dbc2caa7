// Package archive exports stored records to an R2 bucket as zstd-compressed
// JSON and restores them into an empty store at startup.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/logger"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/r2client"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/storage"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/timeutil"
)

// FormatVersion is bumped when Snapshot changes incompatibly.
const FormatVersion = 1

// DefaultAnnouncementLimit is how many recent announcements an export holds.
const DefaultAnnouncementLimit = 50

// maxSnapshotBytes bounds a decompressed snapshot.
const maxSnapshotBytes = 32 << 20

// Snapshot is the archived document.
type Snapshot struct {
	Version       int                          `json:"version"`
	ExportedAt    time.Time                    `json:"exported_at"`
	Dining        []storage.DiningRecord       `json:"dining"`
	Announcements []storage.AnnouncementRecord `json:"announcements"`
}

// Store is the storage surface the archive reads and restores into.
type Store interface {
	storage.DiningRepository
	storage.AnnouncementRepository
}

// Config configures an Archive.
type Config struct {
	Key               string // object key, e.g. archive/latest.json.zst
	AnnouncementLimit int
	Location          *time.Location
	Clock             timeutil.Clock
}

// Archive moves snapshots between a Store and an object store.
type Archive struct {
	objects r2client.ObjectStore
	store   Store
	cfg     Config
	log     *logger.Logger
}

// New creates an Archive.
func New(objects r2client.ObjectStore, store Store, cfg Config, log *logger.Logger) (*Archive, error) {
	if objects == nil || store == nil {
		return nil, errors.New("archive: object store and store are required")
	}
	if cfg.Key == "" {
		return nil, errors.New("archive: key is required")
	}
	if cfg.AnnouncementLimit <= 0 {
		cfg.AnnouncementLimit = DefaultAnnouncementLimit
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.SystemClock()
	}
	if log == nil {
		log = logger.NewWithWriter("error", io.Discard)
	}
	return &Archive{objects: objects, store: store, cfg: cfg, log: log.WithModule("archive")}, nil
}

// Export uploads the menus from the start of the current week onward and the
// most recent announcements.
func (a *Archive) Export(ctx context.Context) error {
	snap, err := a.collect(ctx)
	if err != nil {
		return err
	}
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	etag, err := a.objects.Upload(ctx, a.cfg.Key, bytes.NewReader(data), "application/zstd")
	if err != nil {
		return fmt.Errorf("archive: upload: %w", err)
	}
	a.log.WithFields(map[string]any{
		"key":           a.cfg.Key,
		"etag":          etag,
		"dining":        len(snap.Dining),
		"announcements": len(snap.Announcements),
		"bytes":         len(data),
	}).InfoContext(ctx, "Archive exported")
	return nil
}

// Restore downloads the latest snapshot and upserts every record. It returns
// restored=false when no snapshot exists yet.
func (a *Archive) Restore(ctx context.Context) (bool, error) {
	rc, _, err := a.objects.Download(ctx, a.cfg.Key)
	if errors.Is(err, r2client.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("archive: download: %w", err)
	}
	defer func() { _ = rc.Close() }()

	snap, err := Decode(rc)
	if err != nil {
		return false, err
	}

	for i := range snap.Dining {
		if err := a.store.UpsertDining(ctx, &snap.Dining[i]); err != nil {
			return false, fmt.Errorf("archive: restore menu %s: %w", snap.Dining[i].Date, err)
		}
	}
	// Oldest first so insertion order matches creation order.
	for i := len(snap.Announcements) - 1; i >= 0; i-- {
		if err := a.store.UpsertAnnouncement(ctx, &snap.Announcements[i]); err != nil {
			return false, fmt.Errorf("archive: restore announcement %s: %w", snap.Announcements[i].URL, err)
		}
	}

	a.log.WithFields(map[string]any{
		"exported_at":   snap.ExportedAt,
		"dining":        len(snap.Dining),
		"announcements": len(snap.Announcements),
	}).InfoContext(ctx, "Archive restored")
	return true, nil
}

// RestoreIfEmpty restores only when store holds no records.
func (a *Archive) RestoreIfEmpty(ctx context.Context, store storage.Store) (bool, error) {
	empty, err := storage.IsEmpty(ctx, store)
	if err != nil {
		return false, fmt.Errorf("archive: check store: %w", err)
	}
	if !empty {
		return false, nil
	}
	return a.Restore(ctx)
}

func (a *Archive) collect(ctx context.Context) (*Snapshot, error) {
	today := timeutil.Today(a.cfg.Clock, a.cfg.Location)
	monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))

	dining, err := a.store.ListDiningSince(ctx, timeutil.DateKey(monday))
	if err != nil {
		return nil, fmt.Errorf("archive: list menus: %w", err)
	}
	announcements, err := a.store.FindRecentAnnouncements(ctx, a.cfg.AnnouncementLimit)
	if err != nil {
		return nil, fmt.Errorf("archive: list announcements: %w", err)
	}
	return &Snapshot{
		Version:       FormatVersion,
		ExportedAt:    a.cfg.Clock.Now().UTC(),
		Dining:        dining,
		Announcements: announcements,
	}, nil
}

// Encode serializes snap as zstd-compressed JSON.
func Encode(snap *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("archive: create encoder: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(snap); err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("archive: encode snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("archive: close encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads a snapshot written by Encode, streaming the decompression.
func Decode(r io.Reader) (*Snapshot, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("archive: create decoder: %w", err)
	}
	defer dec.Close()

	var snap Snapshot
	if err := json.NewDecoder(io.LimitReader(dec, maxSnapshotBytes)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("archive: decode snapshot: %w", err)
	}
	if snap.Version != FormatVersion {
		return nil, fmt.Errorf("archive: unsupported snapshot version %d", snap.Version)
	}
	return &snap, nil
}
