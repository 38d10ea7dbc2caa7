// Package storage persists dining menus and announcements. Two backends
// implement Store: SQLite (default, embedded) and MongoDB.
package storage

import "context"

// DiningRepository reads and writes dining records.
type DiningRepository interface {
	// FindDiningByDate returns the record for date (YYYY-MM-DD), or nil with a
	// nil error when none is stored.
	FindDiningByDate(ctx context.Context, date string) (*DiningRecord, error)
	// ListDiningSince returns records dated on or after date, oldest first.
	ListDiningSince(ctx context.Context, date string) ([]DiningRecord, error)
	// UpsertDining inserts rec or replaces the record with the same date.
	// CreatedAt of an existing record is preserved.
	UpsertDining(ctx context.Context, rec *DiningRecord) error
	CountDining(ctx context.Context) (int, error)
}

// AnnouncementRepository reads and writes announcement records.
type AnnouncementRepository interface {
	// FindAnnouncementByURL returns the record for url, or nil with a nil error.
	FindAnnouncementByURL(ctx context.Context, url string) (*AnnouncementRecord, error)
	// FindRecentAnnouncements returns up to limit records, newest first.
	FindRecentAnnouncements(ctx context.Context, limit int) ([]AnnouncementRecord, error)
	// UpsertAnnouncement inserts rec or updates the record with the same URL.
	// An empty Summary keeps the stored one. CreatedAt of an existing record
	// is preserved.
	UpsertAnnouncement(ctx context.Context, rec *AnnouncementRecord) error
	CountAnnouncements(ctx context.Context) (int, error)
}

// Store is the full storage surface used by the service.
type Store interface {
	DiningRepository
	AnnouncementRepository

	// Driver names the backend for logs and readiness output.
	Driver() string
	Ping(ctx context.Context) error
	Close() error
}

// IsEmpty reports whether s holds no records at all.
func IsEmpty(ctx context.Context, s Store) (bool, error) {
	dining, err := s.CountDining(ctx)
	if err != nil {
		return false, err
	}
	announcements, err := s.CountAnnouncements(ctx)
	if err != nil {
		return false, err
	}
	return dining == 0 && announcements == 0, nil
}
