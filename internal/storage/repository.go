package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const slowQuery = 100 * time.Millisecond

func warnIfSlow(ctx context.Context, op string, start time.Time) {
	if d := time.Since(start); d > slowQuery {
		slog.WarnContext(ctx, "slow database operation",
			"operation", op,
			"duration_ms", d.Milliseconds())
	}
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// UpsertDining inserts or replaces the menu for rec.Date.
func (db *DB) UpsertDining(ctx context.Context, rec *DiningRecord) error {
	if rec.Date == "" {
		return errors.New("upsert dining: empty date")
	}
	items, err := json.Marshal(nonNil(rec.Items))
	if err != nil {
		return fmt.Errorf("encode dining items: %w", err)
	}

	now := time.Now()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	query := `
		INSERT INTO dining (date, items, location, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			items = excluded.items,
			location = excluded.location,
			source = excluded.source,
			updated_at = excluded.updated_at
	`
	start := time.Now()
	_, err = db.writer.ExecContext(ctx, query,
		rec.Date, string(items), rec.Location, rec.Source, toMillis(createdAt), toMillis(updatedAt))
	if err != nil {
		slog.ErrorContext(ctx, "failed to save dining record",
			"date", rec.Date,
			"error", err)
		return fmt.Errorf("failed to save dining record: %w", err)
	}
	warnIfSlow(ctx, "UpsertDining", start)
	return nil
}

// FindDiningByDate returns the menu for date, or nil when none is stored.
func (db *DB) FindDiningByDate(ctx context.Context, date string) (*DiningRecord, error) {
	query := `SELECT date, items, location, source, created_at, updated_at FROM dining WHERE date = ?`

	rec, err := scanDining(db.reader.QueryRowContext(ctx, query, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to query dining record",
			"date", date,
			"error", err)
		return nil, fmt.Errorf("query dining record: %w", err)
	}
	return rec, nil
}

// ListDiningSince returns menus dated on or after date, oldest first.
func (db *DB) ListDiningSince(ctx context.Context, date string) ([]DiningRecord, error) {
	query := `SELECT date, items, location, source, created_at, updated_at FROM dining WHERE date >= ? ORDER BY date`

	rows, err := db.reader.QueryContext(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("list dining records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []DiningRecord
	for rows.Next() {
		rec, err := scanDining(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dining record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// CountDining returns the number of stored menus.
func (db *DB) CountDining(ctx context.Context) (int, error) {
	return db.count(ctx, "dining")
}

// UpsertAnnouncement inserts or updates the announcement at rec.URL.
func (db *DB) UpsertAnnouncement(ctx context.Context, rec *AnnouncementRecord) error {
	if rec.URL == "" {
		return errors.New("upsert announcement: empty url")
	}
	source := rec.Source
	if source == "" {
		source = SourceWebsite
	}

	now := time.Now()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	var summary sql.NullString
	if rec.Summary != "" {
		summary = sql.NullString{String: rec.Summary, Valid: true}
	}

	query := `
		INSERT INTO announcements (url, title, content, summary, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			summary = COALESCE(excluded.summary, announcements.summary),
			source = excluded.source,
			updated_at = excluded.updated_at
	`
	start := time.Now()
	_, err := db.writer.ExecContext(ctx, query,
		rec.URL, rec.Title, rec.Content, summary, source, toMillis(createdAt), toMillis(updatedAt))
	if err != nil {
		slog.ErrorContext(ctx, "failed to save announcement",
			"url", rec.URL,
			"error", err)
		return fmt.Errorf("failed to save announcement: %w", err)
	}
	warnIfSlow(ctx, "UpsertAnnouncement", start)
	return nil
}

// FindAnnouncementByURL returns the announcement at url, or nil when none is stored.
func (db *DB) FindAnnouncementByURL(ctx context.Context, url string) (*AnnouncementRecord, error) {
	query := `SELECT url, title, content, summary, source, created_at, updated_at FROM announcements WHERE url = ?`

	rec, err := scanAnnouncement(db.reader.QueryRowContext(ctx, query, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query announcement: %w", err)
	}
	return rec, nil
}

// FindRecentAnnouncements returns up to limit announcements, newest first.
// Records created in the same millisecond keep insertion order reversed.
func (db *DB) FindRecentAnnouncements(ctx context.Context, limit int) ([]AnnouncementRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := `
		SELECT url, title, content, summary, source, created_at, updated_at
		FROM announcements
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	start := time.Now()
	rows, err := db.reader.QueryContext(ctx, query, limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to query recent announcements", "error", err)
		return nil, fmt.Errorf("query recent announcements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]AnnouncementRecord, 0, limit)
	for rows.Next() {
		rec, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate announcements: %w", err)
	}
	warnIfSlow(ctx, "FindRecentAnnouncements", start)
	return out, nil
}

// CountAnnouncements returns the number of stored announcements.
func (db *DB) CountAnnouncements(ctx context.Context) (int, error) {
	return db.count(ctx, "announcements")
}

// count is only called with the fixed table names above.
func (db *DB) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := db.reader.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDining(row rowScanner) (*DiningRecord, error) {
	var (
		rec                  DiningRecord
		items                string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&rec.Date, &items, &rec.Location, &rec.Source, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(items), &rec.Items); err != nil {
		return nil, fmt.Errorf("decode dining items for %s: %w", rec.Date, err)
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return &rec, nil
}

func scanAnnouncement(row rowScanner) (*AnnouncementRecord, error) {
	var (
		rec                  AnnouncementRecord
		summary              sql.NullString
		createdAt, updatedAt int64
	)
	if err := row.Scan(&rec.URL, &rec.Title, &rec.Content, &summary, &rec.Source, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec.Summary = summary.String
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return &rec, nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
